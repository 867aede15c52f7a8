package kv

import (
	"context"
)

// Store is a collection of keyspaces.
type Store interface {
	// Open returns the keyspace with the given name.
	Open(ctx context.Context, name string) (Keyspace, error)
}

// A Purger is a [Store] that can physically remove expired pairs.
//
// Stores whose storage engine enforces expiry natively need not implement
// this interface.
type Purger interface {
	// Purge removes all pairs in all keyspaces that have expired. It returns
	// the number of pairs removed.
	Purge(ctx context.Context) (int, error)
}
