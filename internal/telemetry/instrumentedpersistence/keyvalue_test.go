package instrumentedpersistence_test

import (
	"testing"

	. "github.com/relaynet/gateway/internal/telemetry/instrumentedpersistence"
	"github.com/relaynet/gateway/internal/test"
	"github.com/relaynet/gateway/persistence/driver/memory"
	"github.com/relaynet/gateway/persistence/kv"
)

func TestKeyValueStore(t *testing.T) {
	kv.RunTests(
		t,
		func(t *testing.T) kv.Store {
			return &KeyValueStore{
				Next:      &memory.KeyValueStore{},
				Telemetry: test.NewTelemetryProvider(t),
			}
		},
	)
}
