package instrumentedpersistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/persistence/objectstore"
)

// ObjectStore is a decorator that adds instrumentation to an
// [objectstore.Store].
type ObjectStore struct {
	Next      objectstore.Store
	Telemetry *telemetry.Provider

	once     sync.Once
	recorder *telemetry.Recorder
	dataIO   telemetry.Instrument[int64]
}

func (s *ObjectStore) init() *telemetry.Recorder {
	s.once.Do(func() {
		s.recorder = s.Telemetry.Recorder(
			"github.com/relaynet/gateway/persistence",
			"objectstore",
			telemetry.String("store", fmt.Sprintf("%T", s.Next)),
		)
		s.dataIO = s.recorder.Counter("io", "By", "The cumulative size of the object bodies that have been read and written.")
	})

	return s.recorder
}

// Get returns the object associated with key.
func (s *ObjectStore) Get(ctx context.Context, key string) (objectstore.Object, bool, error) {
	ctx, span := s.init().StartSpan(
		ctx,
		"objectstore.get",
		telemetry.If(isShortASCII(key), telemetry.String("key", key)),
	)
	defer span.End()

	obj, ok, err := s.Next.Get(ctx, key)
	if err != nil {
		span.Error("could not fetch object", err)
		return objectstore.Object{}, false, err
	}

	span.SetAttributes(
		telemetry.Bool("object_present", ok),
		telemetry.Int("body_size", len(obj.Body)),
	)
	s.dataIO(ctx, int64(len(obj.Body)), telemetry.ReadDirection)

	span.Debug("fetched object")

	return obj, ok, nil
}

// Put associates obj with key, replacing any existing object.
func (s *ObjectStore) Put(ctx context.Context, key string, obj objectstore.Object) error {
	ctx, span := s.init().StartSpan(
		ctx,
		"objectstore.put",
		telemetry.If(isShortASCII(key), telemetry.String("key", key)),
		telemetry.Int("body_size", len(obj.Body)),
	)
	defer span.End()

	s.dataIO(ctx, int64(len(obj.Body)), telemetry.WriteDirection)

	if err := s.Next.Put(ctx, key, obj); err != nil {
		span.Error("could not store object", err)
		return err
	}

	span.Debug("stored object")

	return nil
}

// Delete removes the object associated with key.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	ctx, span := s.init().StartSpan(
		ctx,
		"objectstore.delete",
		telemetry.If(isShortASCII(key), telemetry.String("key", key)),
	)
	defer span.End()

	if err := s.Next.Delete(ctx, key); err != nil {
		span.Error("could not delete object", err)
		return err
	}

	span.Debug("deleted object")

	return nil
}

// List invokes fn for each key that begins with prefix, in lexical order.
func (s *ObjectStore) List(ctx context.Context, prefix string, fn objectstore.ListFunc) error {
	ctx, span := s.init().StartSpan(
		ctx,
		"objectstore.list",
		telemetry.String("prefix", prefix),
	)
	defer span.End()

	count := 0
	err := s.Next.List(
		ctx,
		prefix,
		func(ctx context.Context, key string) (bool, error) {
			count++
			return fn(ctx, key)
		},
	)

	span.SetAttributes(telemetry.Int("keys_listed", count))

	if err != nil {
		span.Error("could not list objects", err)
		return err
	}

	span.Debug("listed objects")

	return nil
}
