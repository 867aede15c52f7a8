package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relaynet/gateway/persistence/kv"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// KeyValueStore is an implementation of [kv.Store] that stores keyspaces in
// memory.
type KeyValueStore struct {
	keyspaces sync.Map // map[string]*keyspaceState
}

var _ kv.Purger = (*KeyValueStore)(nil)

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	state, ok := s.keyspaces.Load(name)

	if !ok {
		state, _ = s.keyspaces.LoadOrStore(
			name,
			&keyspaceState{},
		)
	}

	return &keyspaceHandle{
		state: state.(*keyspaceState),
	}, ctx.Err()
}

// Purge removes all pairs in all keyspaces that have expired.
func (s *KeyValueStore) Purge(ctx context.Context) (int, error) {
	now := time.Now()
	count := 0

	s.keyspaces.Range(
		func(_, v any) bool {
			state := v.(*keyspaceState)

			state.Lock()
			defer state.Unlock()

			for k, p := range state.Pairs {
				if kv.IsExpired(p.ExpiresAt, now) {
					delete(state.Pairs, k)
					count++
				}
			}

			return ctx.Err() == nil
		},
	)

	return count, ctx.Err()
}

type keyspaceState struct {
	sync.RWMutex

	Pairs map[string]pair

	BeforeSet func(k []byte) error
}

type pair struct {
	Value     []byte
	ExpiresAt time.Time
}

type keyspaceHandle struct {
	state *keyspaceState
}

func (h *keyspaceHandle) Get(ctx context.Context, k []byte) (v []byte, err error) {
	if h.state == nil {
		panic("keyspace is closed")
	}

	h.state.RLock()
	defer h.state.RUnlock()

	p, ok := h.state.Pairs[string(k)]
	if !ok || kv.IsExpired(p.ExpiresAt, time.Now()) {
		return nil, ctx.Err()
	}

	return slices.Clone(p.Value), ctx.Err()
}

func (h *keyspaceHandle) Has(ctx context.Context, k []byte) (ok bool, err error) {
	if h.state == nil {
		panic("keyspace is closed")
	}

	h.state.RLock()
	defer h.state.RUnlock()

	p, ok := h.state.Pairs[string(k)]
	return ok && !kv.IsExpired(p.ExpiresAt, time.Now()), ctx.Err()
}

func (h *keyspaceHandle) Set(ctx context.Context, k, v []byte, expiresAt time.Time) error {
	if h.state == nil {
		panic("keyspace is closed")
	}

	v = slices.Clone(v)

	h.state.Lock()
	defer h.state.Unlock()

	if h.state.BeforeSet != nil {
		if err := h.state.BeforeSet(k); err != nil {
			return err
		}
	}

	if len(v) == 0 {
		delete(h.state.Pairs, string(k))
	} else {
		if h.state.Pairs == nil {
			h.state.Pairs = map[string]pair{}
		}

		h.state.Pairs[string(k)] = pair{v, expiresAt}
	}

	return ctx.Err()
}

func (h *keyspaceHandle) Range(
	ctx context.Context,
	fn kv.RangeFunc,
) error {
	if h.state == nil {
		panic("keyspace is closed")
	}

	h.state.RLock()
	pairs := maps.Clone(h.state.Pairs)
	h.state.RUnlock()

	now := time.Now()

	for k, p := range pairs {
		if kv.IsExpired(p.ExpiresAt, now) {
			continue
		}

		ok, err := fn(ctx, []byte(k), slices.Clone(p.Value))
		if !ok || err != nil {
			return err
		}
	}

	return nil
}

func (h *keyspaceHandle) Close() error {
	if h.state == nil {
		return errors.New("keyspace is already closed")
	}

	h.state = nil

	return nil
}
