package objectstore

import "context"

// An Object is a binary payload along with string meta-data.
type Object struct {
	Body     []byte
	Metadata map[string]string
}

// A ListFunc is a function used to list the keys in a [Store].
//
// If err is non-nil, listing stops and err is propagated up the stack.
// Otherwise, if ok is false, listing stops without any error being propagated.
type ListFunc func(ctx context.Context, key string) (ok bool, err error)

// Store is a flat collection of objects addressed by string keys.
//
// Keys are arbitrary strings, although "/" is conventionally used to separate
// a key into hierarchical segments for listing by prefix.
type Store interface {
	// Get returns the object associated with key.
	//
	// If the object does not exist ok is false.
	Get(ctx context.Context, key string) (obj Object, ok bool, err error)

	// Put associates obj with key, replacing any existing object.
	Put(ctx context.Context, key string, obj Object) error

	// Delete removes the object associated with key.
	//
	// It is not an error to delete an object that does not exist.
	Delete(ctx context.Context, key string) error

	// List invokes fn for each key that begins with prefix, in lexical order.
	List(ctx context.Context, prefix string, fn ListFunc) error
}
