package memory_test

import (
	"context"
	"testing"
	"time"

	. "github.com/relaynet/gateway/persistence/driver/memory"
	"github.com/relaynet/gateway/persistence/kv"
)

func TestKeyValueStore(t *testing.T) {
	kv.RunTests(
		t,
		func(t *testing.T) kv.Store {
			return &KeyValueStore{}
		},
	)
}

func TestKeyValueStore_Purge(t *testing.T) {
	ctx := context.Background()
	store := &KeyValueStore{}

	ks, err := store.Open(ctx, "<keyspace>")
	if err != nil {
		t.Fatal(err)
	}
	defer ks.Close()

	if err := ks.Set(ctx, []byte("<expired>"), []byte("<value>"), time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	if err := ks.Set(ctx, []byte("<live>"), []byte("<value>"), time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	n, err := store.Purge(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if n != 1 {
		t.Fatalf("unexpected number of purged pairs: got %d, want 1", n)
	}

	ok, err := ks.Has(ctx, []byte("<live>"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected unexpired pair to survive the purge")
	}
}
