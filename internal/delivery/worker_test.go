package delivery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/relaynet/gateway/internal/delivery"
	"github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/messagebus/memorybus"
	"github.com/relaynet/gateway/internal/parcelstore"
	"github.com/relaynet/gateway/internal/pohttp"
	"github.com/relaynet/gateway/internal/test"
	"github.com/relaynet/gateway/persistence/driver/memory"
	"github.com/relaynet/gateway/relaynet"
	"github.com/relaynet/gateway/relaynet/relaynettest"
)

type delivererStub struct {
	m     sync.Mutex
	calls []string
	err   error

	delay     time.Duration
	active    int
	maxActive int
}

func (d *delivererStub) Deliver(ctx context.Context, recipientURL string, parcel []byte) error {
	d.m.Lock()
	d.active++
	if d.active > d.maxActive {
		d.maxActive = d.active
	}
	d.m.Unlock()

	time.Sleep(d.delay)

	d.m.Lock()
	defer d.m.Unlock()

	d.active--
	d.calls = append(d.calls, recipientURL)
	return d.err
}

func (d *delivererStub) MaxConcurrent() int {
	d.m.Lock()
	defer d.m.Unlock()

	return d.maxActive
}

func (d *delivererStub) Calls() int {
	d.m.Lock()
	defer d.m.Unlock()

	return len(d.calls)
}

type fixture struct {
	Broker    *memorybus.Broker
	Objects   *memory.ObjectStore
	Parcels   *parcelstore.Repository
	Deliverer *delivererStub
	Worker    *Worker
}

func setup(t *testing.T) *fixture {
	provider := test.NewTelemetryProvider(t)
	codec := &relaynettest.Codec{
		Identity: relaynettest.NewCertificate("0gateway", nil, time.Now().Add(time.Hour)),
	}

	f := &fixture{
		Broker:    &memorybus.Broker{},
		Objects:   &memory.ObjectStore{},
		Deliverer: &delivererStub{},
	}

	bus := &messagebus.Bus{
		Connector: f.Broker,
		Telemetry: provider,
	}

	f.Parcels = &parcelstore.Repository{
		Objects: f.Objects,
		Ledger: &ledger.Ledger{
			Keyspaces: &memory.KeyValueStore{},
			Codec:     codec,
			Telemetry: provider,
		},
		Bus:          bus,
		Codec:        codec,
		Certificates: codec,
		Telemetry:    provider,
	}

	f.Worker = &Worker{
		Bus:       bus,
		Parcels:   f.Parcels,
		Deliverer: f.Deliverer,
		Telemetry: provider,
	}

	return f
}

// storeOutbound stores a parcel bound for an Internet endpoint, which queues
// it for delivery.
func (f *fixture) storeOutbound(ctx context.Context, t *testing.T, id string) string {
	t.Helper()

	p := relaynet.Parcel{
		ID:                id,
		RecipientAddress:  "https://endpoint.example",
		SenderCertificate: relaynettest.NewCertificate("0sender", nil, time.Now().Add(time.Hour)),
		ExpiryDate:        time.Now().Add(time.Hour),
	}

	key, ok, err := f.Parcels.StoreForPeer(ctx, p, relaynettest.SerializeParcel(p), "0peer")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected the parcel to be stored")
	}

	return key
}

func eventually(ctx context.Context, t *testing.T, cond func() bool) {
	t.Helper()

	for !cond() {
		select {
		case <-ctx.Done():
			t.Fatal("condition was not met before the deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorker(t *testing.T) {
	t.Run("it deletes the parcel once it is delivered", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		f := setup(t)

		f.storeOutbound(ctx, t, "<parcel>")
		task := test.RunInBackground(t, f.Worker.Run).UntilStopped()

		eventually(ctx, t, func() bool {
			return len(f.Objects.Keys()) == 0
		})

		task.StopAndWait()

		test.Expect(
			t,
			"unexpected deliveries",
			f.Deliverer.calls,
			[]string{"https://endpoint.example"},
		)
	})

	t.Run("it discards parcels that are rejected by the recipient", func(t *testing.T) {
		cases := []struct {
			Desc string
			Err  error
		}{
			{"invalid parcel", pohttp.InvalidParcelError{Message: "<invalid>"}},
			{"binding violation", pohttp.BindingError{Message: "<binding>"}},
		}

		for _, c := range cases {
			c := c
			t.Run(c.Desc, func(t *testing.T) {
				ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
				f := setup(t)
				f.Deliverer.err = c.Err

				f.storeOutbound(ctx, t, "<parcel>")
				task := test.RunInBackground(t, f.Worker.Run).UntilStopped()

				eventually(ctx, t, func() bool {
					return len(f.Objects.Keys()) == 0
				})

				task.StopAndWait()

				if n := f.Deliverer.Calls(); n != 1 {
					t.Fatalf("delivery was attempted %d times, want 1", n)
				}

				if n := len(f.Broker.Messages(parcelstore.OutboundRetryChannel)); n != 0 {
					t.Fatalf("parcel was queued for retry %d times, want 0", n)
				}
			})
		}
	})

	t.Run("it delivers one parcel at a time across the outbound and retry channels", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		f := setup(t)
		f.Deliverer.err = pohttp.TransientError{Cause: errors.New("<error>")}
		f.Deliverer.delay = 20 * time.Millisecond

		for _, id := range []string{"<parcel-1>", "<parcel-2>", "<parcel-3>"} {
			f.storeOutbound(ctx, t, id)
		}

		task := test.RunInBackground(t, f.Worker.Run).UntilStopped()

		eventually(ctx, t, func() bool {
			return f.Deliverer.Calls() == 3*MaxDeliveryAttempts
		})

		task.StopAndWait()

		if n := f.Deliverer.MaxConcurrent(); n != 1 {
			t.Fatalf("observed %d concurrent deliveries, want 1", n)
		}
	})

	t.Run("it gives up after repeated transient failures", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		f := setup(t)
		f.Deliverer.err = pohttp.TransientError{Cause: errors.New("<error>")}

		f.storeOutbound(ctx, t, "<parcel>")
		task := test.RunInBackground(t, f.Worker.Run).UntilStopped()

		eventually(ctx, t, func() bool {
			return len(f.Objects.Keys()) == 0
		})

		task.StopAndWait()

		if n := f.Deliverer.Calls(); n != MaxDeliveryAttempts {
			t.Fatalf("delivery was attempted %d times, want %d", n, MaxDeliveryAttempts)
		}

		retries := f.Broker.Messages(parcelstore.OutboundRetryChannel)
		if len(retries) != MaxDeliveryAttempts-1 {
			t.Fatalf("parcel was queued for retry %d times, want %d", len(retries), MaxDeliveryAttempts-1)
		}

		for i, data := range retries {
			qm, err := parcelstore.UnmarshalQueuedMessage(data)
			if err != nil {
				t.Fatal(err)
			}

			if qm.DeliveryAttempts != i+1 {
				t.Fatalf("retry #%d has %d delivery attempts, want %d", i, qm.DeliveryAttempts, i+1)
			}
		}
	})

	t.Run("it discards expired parcels without attempting delivery", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		f := setup(t)

		f.storeOutbound(ctx, t, "<parcel>")
		f.Worker.Now = func() time.Time {
			return time.Now().Add(2 * time.Hour)
		}

		task := test.RunInBackground(t, f.Worker.Run).UntilStopped()

		eventually(ctx, t, func() bool {
			return len(f.Objects.Keys()) == 0
		})

		task.StopAndWait()

		if n := f.Deliverer.Calls(); n != 0 {
			t.Fatalf("delivery was attempted %d times, want 0", n)
		}
	})

	t.Run("it skips parcels that no longer exist", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		f := setup(t)

		key := f.storeOutbound(ctx, t, "<deleted>")
		if err := f.Objects.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}

		f.storeOutbound(ctx, t, "<parcel>")
		task := test.RunInBackground(t, f.Worker.Run).UntilStopped()

		eventually(ctx, t, func() bool {
			return len(f.Objects.Keys()) == 0
		})

		task.StopAndWait()

		if n := f.Deliverer.Calls(); n != 1 {
			t.Fatalf("delivery was attempted %d times, want 1", n)
		}
	})

	t.Run("it returns unexpected delivery errors", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		f := setup(t)
		f.Deliverer.err = errors.New("<error>")

		f.storeOutbound(ctx, t, "<parcel>")

		err := f.Worker.Run(ctx)
		if err == nil || !errors.Is(err, f.Deliverer.err) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
