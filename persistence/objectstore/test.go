package objectstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

// RunTests runs tests that confirm an object store implementation behaves
// correctly.
func RunTests(
	t *testing.T,
	newStore func(t *testing.T) Store,
) {
	t.Run("func Get()", func(t *testing.T) {
		t.Run("it returns false if the object doesn't exist", func(t *testing.T) {
			t.Parallel()

			ctx, store, prefix := setup(t, newStore)

			_, ok, err := store.Get(ctx, prefix+"<key>")
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatal("expected ok to be false")
			}
		})

		t.Run("it returns the body and meta-data of the object", func(t *testing.T) {
			t.Parallel()

			ctx, store, prefix := setup(t, newStore)

			expect := Object{
				Body: []byte("<body>"),
				Metadata: map[string]string{
					"meta-key": "meta-value",
				},
			}

			if err := store.Put(ctx, prefix+"<key>", expect); err != nil {
				t.Fatal(err)
			}

			actual, ok, err := store.Get(ctx, prefix+"<key>")
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("expected ok to be true")
			}

			if diff := cmp.Diff(expect, actual, cmpopts.EquateEmpty()); diff != "" {
				t.Fatal(diff)
			}
		})

		t.Run("it returns false if the object has been deleted", func(t *testing.T) {
			t.Parallel()

			ctx, store, prefix := setup(t, newStore)

			if err := store.Put(ctx, prefix+"<key>", Object{Body: []byte("<body>")}); err != nil {
				t.Fatal(err)
			}

			if err := store.Delete(ctx, prefix+"<key>"); err != nil {
				t.Fatal(err)
			}

			_, ok, err := store.Get(ctx, prefix+"<key>")
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatal("expected ok to be false")
			}
		})
	})

	t.Run("func Put()", func(t *testing.T) {
		t.Run("it replaces an existing object", func(t *testing.T) {
			t.Parallel()

			ctx, store, prefix := setup(t, newStore)

			if err := store.Put(ctx, prefix+"<key>", Object{Body: []byte("<body-1>")}); err != nil {
				t.Fatal(err)
			}

			if err := store.Put(ctx, prefix+"<key>", Object{Body: []byte("<body-2>")}); err != nil {
				t.Fatal(err)
			}

			actual, _, err := store.Get(ctx, prefix+"<key>")
			if err != nil {
				t.Fatal(err)
			}

			if string(actual.Body) != "<body-2>" {
				t.Fatalf("unexpected body, want %q, got %q", "<body-2>", string(actual.Body))
			}
		})
	})

	t.Run("func Delete()", func(t *testing.T) {
		t.Run("it does not return an error if the object does not exist", func(t *testing.T) {
			t.Parallel()

			ctx, store, prefix := setup(t, newStore)

			if err := store.Delete(ctx, prefix+"<key>"); err != nil {
				t.Fatal(err)
			}
		})
	})

	t.Run("func List()", func(t *testing.T) {
		t.Run("it lists only the keys with the given prefix", func(t *testing.T) {
			t.Parallel()

			ctx, store, prefix := setup(t, newStore)

			var expect []string
			for i := 0; i < 5; i++ {
				k := fmt.Sprintf("%sa/<key-%d>", prefix, i)
				if err := store.Put(ctx, k, Object{Body: []byte("<body>")}); err != nil {
					t.Fatal(err)
				}
				expect = append(expect, k)
			}

			if err := store.Put(ctx, prefix+"ab/<key>", Object{Body: []byte("<body>")}); err != nil {
				t.Fatal(err)
			}

			var actual []string
			if err := store.List(
				ctx,
				prefix+"a/",
				func(ctx context.Context, k string) (bool, error) {
					actual = append(actual, k)
					return true, nil
				},
			); err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(expect, actual); diff != "" {
				t.Fatal(diff)
			}
		})

		t.Run("it stops iterating if the function returns false", func(t *testing.T) {
			t.Parallel()

			ctx, store, prefix := setup(t, newStore)

			for i := 0; i < 2; i++ {
				k := fmt.Sprintf("%s<key-%d>", prefix, i)
				if err := store.Put(ctx, k, Object{Body: []byte("<body>")}); err != nil {
					t.Fatal(err)
				}
			}

			called := false
			if err := store.List(
				ctx,
				prefix,
				func(ctx context.Context, k string) (bool, error) {
					if called {
						return false, errors.New("unexpected call")
					}

					called = true
					return false, nil
				},
			); err != nil {
				t.Fatal(err)
			}
		})
	})
}

// setup returns a store and a unique key prefix so that tests sharing a
// backing bucket do not interfere with one another.
func setup(
	t *testing.T,
	newStore func(t *testing.T) Store,
) (context.Context, Store, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	return ctx, newStore(t), uuid.NewString() + "/"
}
