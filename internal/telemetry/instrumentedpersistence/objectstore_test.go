package instrumentedpersistence_test

import (
	"testing"

	. "github.com/relaynet/gateway/internal/telemetry/instrumentedpersistence"
	"github.com/relaynet/gateway/internal/test"
	"github.com/relaynet/gateway/persistence/driver/memory"
	"github.com/relaynet/gateway/persistence/objectstore"
)

func TestObjectStore(t *testing.T) {
	objectstore.RunTests(
		t,
		func(t *testing.T) objectstore.Store {
			return &ObjectStore{
				Next:      &memory.ObjectStore{},
				Telemetry: test.NewTelemetryProvider(t),
			}
		},
	)
}
