package kv

import (
	"context"
	"time"
)

// A RangeFunc is a function used to range over the key/value pairs in a
// [Keyspace].
//
// If err is non-nil, ranging stops and err is propagated up the stack.
// Otherwise, if ok is false, ranging stops without any error being propagated.
type RangeFunc func(ctx context.Context, k, v []byte) (ok bool, err error)

// A Keyspace is an isolated collection of key/value pairs.
//
// Each pair may carry an expiry time. Once that time has passed the pair is
// treated as though it does not exist, even if the underlying storage has not
// yet physically removed it.
type Keyspace interface {
	// Get returns the value associated with k.
	//
	// If the key does not exist, or has expired, v is empty.
	Get(ctx context.Context, k []byte) (v []byte, err error)

	// Has returns true if k is present in the keyspace and has not expired.
	Has(ctx context.Context, k []byte) (ok bool, err error)

	// Set associates a value with k.
	//
	// If v is empty, the key is deleted. If expiresAt is the zero value the
	// pair never expires.
	Set(ctx context.Context, k, v []byte, expiresAt time.Time) error

	// Range invokes fn for each unexpired key in the keyspace in an undefined
	// order.
	Range(ctx context.Context, fn RangeFunc) error

	// Close closes the keyspace.
	Close() error
}

// IsExpired returns true if a pair that expires at expiresAt is no longer
// visible at time now. It is intended for use by [Keyspace] implementations.
func IsExpired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !expiresAt.After(now)
}
