package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/relaynet/gateway/persistence/objectstore"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ObjectStore is an implementation of [objectstore.Store] that stores objects
// in memory.
type ObjectStore struct {
	m       sync.RWMutex
	objects map[string]objectstore.Object

	beforeGet func(key string) error
	beforePut func(key string) error
}

// Get returns the object associated with key.
func (s *ObjectStore) Get(ctx context.Context, key string) (objectstore.Object, bool, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	if s.beforeGet != nil {
		if err := s.beforeGet(key); err != nil {
			return objectstore.Object{}, false, err
		}
	}

	obj, ok := s.objects[key]
	if !ok {
		return objectstore.Object{}, false, ctx.Err()
	}

	return cloneObject(obj), true, ctx.Err()
}

// Put associates obj with key, replacing any existing object.
func (s *ObjectStore) Put(ctx context.Context, key string, obj objectstore.Object) error {
	obj = cloneObject(obj)

	s.m.Lock()
	defer s.m.Unlock()

	if s.beforePut != nil {
		if err := s.beforePut(key); err != nil {
			return err
		}
	}

	if s.objects == nil {
		s.objects = map[string]objectstore.Object{}
	}

	s.objects[key] = obj

	return ctx.Err()
}

// Delete removes the object associated with key.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	s.m.Lock()
	defer s.m.Unlock()

	delete(s.objects, key)

	return ctx.Err()
}

// List invokes fn for each key that begins with prefix, in lexical order.
func (s *ObjectStore) List(
	ctx context.Context,
	prefix string,
	fn objectstore.ListFunc,
) error {
	s.m.RLock()
	keys := maps.Keys(s.objects)
	s.m.RUnlock()

	slices.Sort(keys)

	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}

		ok, err := fn(ctx, k)
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

// Keys returns the keys of all objects in the store, in lexical order.
func (s *ObjectStore) Keys() []string {
	s.m.RLock()
	keys := maps.Keys(s.objects)
	s.m.RUnlock()

	slices.Sort(keys)

	return keys
}

func cloneObject(obj objectstore.Object) objectstore.Object {
	return objectstore.Object{
		Body:     slices.Clone(obj.Body),
		Metadata: maps.Clone(obj.Metadata),
	}
}
