package memory_test

import (
	"testing"

	. "github.com/relaynet/gateway/persistence/driver/memory"
	"github.com/relaynet/gateway/persistence/objectstore"
)

func TestObjectStore(t *testing.T) {
	objectstore.RunTests(
		t,
		func(t *testing.T) objectstore.Store {
			return &ObjectStore{}
		},
	)
}
