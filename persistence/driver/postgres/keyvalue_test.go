package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/dogmatiq/sqltest"
	. "github.com/relaynet/gateway/persistence/driver/postgres"
	"github.com/relaynet/gateway/persistence/kv"
)

func TestKeyValueStore(t *testing.T) {
	db := newDB(t)

	kv.RunTests(
		t,
		func(t *testing.T) kv.Store {
			return &KeyValueStore{
				DB: db,
			}
		},
	)
}

func TestKeyValueStore_Purge(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := &KeyValueStore{
		DB: newDB(t),
	}

	ks, err := store.Open(ctx, "purge")
	if err != nil {
		t.Fatal(err)
	}
	defer ks.Close()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	if err := ks.Set(ctx, []byte("<expired>"), []byte("<value>"), past); err != nil {
		t.Fatal(err)
	}

	if err := ks.Set(ctx, []byte("<unexpired>"), []byte("<value>"), future); err != nil {
		t.Fatal(err)
	}

	n, err := store.Purge(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if n != 1 {
		t.Fatalf("unexpected number of purged pairs: got %d, want 1", n)
	}

	ok, err := ks.Has(ctx, []byte("<unexpired>"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected unexpired pair to survive the purge")
	}
}

func newDB(t *testing.T) *sql.DB {
	if os.Getenv("GATEWAY_TEST_POSTGRES") == "" {
		t.Skip("GATEWAY_TEST_POSTGRES is not set")
	}

	ctx := context.Background()

	database, err := sqltest.NewDatabase(ctx, sqltest.PGXDriver, sqltest.PostgreSQL)
	if err != nil {
		t.Fatal(err)
	}

	db, err := database.Open()
	if err != nil {
		t.Fatal(err)
	}

	if err := CreateKeyValueStoreSchema(ctx, db); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}

		if err := database.Close(); err != nil {
			t.Fatal(err)
		}
	})

	return db
}
