package memory

import (
	"context"
	"sync"
)

// FailBeforeKeyspaceSet configures the keyspace with the given name to return
// err from the next call to Set() with a key that satisfies the given
// predicate function.
//
// The error is returned before the value is actually stored. Subsequent calls
// succeed.
func FailBeforeKeyspaceSet(
	s *KeyValueStore,
	name string,
	pred func(k []byte) bool,
	err error,
) {
	ks, openErr := s.Open(context.Background(), name)
	if openErr != nil {
		panic(openErr)
	}
	defer ks.Close()

	h := ks.(*keyspaceHandle)

	h.state.Lock()
	defer h.state.Unlock()

	var once sync.Once

	h.state.BeforeSet = func(k []byte) (e error) {
		if pred(k) {
			once.Do(func() { e = err })
		}
		return e
	}
}
