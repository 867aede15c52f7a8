package parcelstore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/messagebus/memorybus"
	. "github.com/relaynet/gateway/internal/parcelstore"
	"github.com/relaynet/gateway/internal/test"
	"github.com/relaynet/gateway/persistence/driver/memory"
	"github.com/relaynet/gateway/persistence/objectstore"
	"github.com/relaynet/gateway/relaynet"
	"github.com/relaynet/gateway/relaynet/relaynettest"
)

type fixture struct {
	Objects    *memory.ObjectStore
	Broker     *memorybus.Broker
	Repository *Repository

	Gateway   *relaynettest.Certificate
	Peer      *relaynettest.Certificate
	Recipient *relaynettest.Certificate
	Sender    *relaynettest.Certificate
}

func setup(t *testing.T) *fixture {
	now := time.Now()
	year := 365 * 24 * time.Hour

	f := &fixture{
		Objects: &memory.ObjectStore{},
		Broker:  &memorybus.Broker{},
		Gateway: relaynettest.NewCertificate("0gateway", nil, now.Add(year)),
	}

	f.Peer = relaynettest.NewCertificate("0peer", f.Gateway, now.Add(year))
	f.Recipient = relaynettest.NewCertificate("0recipient", f.Peer, now.Add(year))
	f.Sender = relaynettest.NewCertificate("0sender", f.Recipient, now.Add(year))

	codec := &relaynettest.Codec{Identity: f.Gateway}
	provider := test.NewTelemetryProvider(t)

	f.Repository = &Repository{
		Objects: f.Objects,
		Ledger: &ledger.Ledger{
			Keyspaces: &memory.KeyValueStore{},
			Codec:     codec,
			Telemetry: provider,
		},
		Bus: &messagebus.Bus{
			Connector: f.Broker,
			Telemetry: provider,
		},
		Codec:        codec,
		Certificates: codec,
		Telemetry:    provider,
	}

	return f
}

func (f *fixture) gatewayBoundParcel(id string) (relaynet.Parcel, []byte) {
	p := relaynet.Parcel{
		ID:                id,
		RecipientAddress:  f.Recipient.Address,
		SenderCertificate: f.Sender,
		ExpiryDate:        time.Now().Add(time.Hour).Truncate(time.Second),
	}
	return p, relaynettest.SerializeParcel(p)
}

func (f *fixture) endpointBoundParcel(id string) (relaynet.Parcel, []byte) {
	sender := relaynettest.NewCertificate("0endpoint", nil, time.Now().Add(time.Hour))

	p := relaynet.Parcel{
		ID:                id,
		RecipientAddress:  "https://endpoint.example",
		SenderCertificate: sender,
		ExpiryDate:        time.Now().Add(time.Hour).Truncate(time.Second),
	}
	return p, relaynettest.SerializeParcel(p)
}

func TestRepository_StoreForPeer(t *testing.T) {
	t.Run("gateway-bound parcels", func(t *testing.T) {
		t.Run("it stores the parcel under a deterministic key and notifies the peer", func(t *testing.T) {
			ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
			f := setup(t)
			p, data := f.gatewayBoundParcel("<parcel>")

			key, ok, err := f.Repository.StoreForPeer(ctx, p, data, "<ignored>")
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("expected ok to be true")
			}

			test.Expect(
				t,
				"unexpected key",
				key,
				GatewayBoundKey("0peer", "0recipient", "0sender", "<parcel>"),
			)

			obj, ok, err := f.Objects.Get(ctx, key)
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("expected the parcel to be stored")
			}

			test.Expect(
				t,
				"unexpected object",
				obj,
				objectstore.Object{
					Body: data,
					Metadata: map[string]string{
						ExpiryMetadataKey: formatUnix(p.ExpiryDate),
					},
				},
			)

			test.Expect(
				t,
				"unexpected notifications",
				f.Broker.Messages(PeerChannel("0peer")),
				[][]byte{[]byte(key)},
			)
		})

		t.Run("it produces the same key when the parcel is stored twice", func(t *testing.T) {
			ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
			f := setup(t)
			p, data := f.gatewayBoundParcel("<parcel>")

			first, _, err := f.Repository.StoreForPeer(ctx, p, data, "<ignored>")
			if err != nil {
				t.Fatal(err)
			}

			second, _, err := f.Repository.StoreForPeer(ctx, p, data, "<ignored>")
			if err != nil {
				t.Fatal(err)
			}

			test.Expect(t, "unexpected key", second, first)
			test.Expect(t, "unexpected objects", f.Objects.Keys(), []string{first})
		})

		t.Run("it returns a validation error if the parcel is not trusted", func(t *testing.T) {
			ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
			f := setup(t)

			untrusted := relaynettest.NewCertificate("0untrusted", nil, time.Now().Add(time.Hour))
			p := relaynet.Parcel{
				ID:                "<parcel>",
				RecipientAddress:  "0recipient",
				SenderCertificate: untrusted,
				ExpiryDate:        time.Now().Add(time.Hour),
			}

			_, _, err := f.Repository.StoreForPeer(ctx, p, relaynettest.SerializeParcel(p), "<ignored>")
			if !errors.As(err, new(ValidationError)) {
				t.Fatalf("expected a validation error, got %v", err)
			}

			test.Expect(t, "unexpected objects", f.Objects.Keys(), nil)
		})
	})

	t.Run("it does not notify the peer if the parcel cannot be stored", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		f := setup(t)
		p, data := f.gatewayBoundParcel("<parcel>")

		memory.FailOnPut(
			f.Objects,
			func(key string) bool { return strings.HasPrefix(key, "parcels/gateway-bound/") },
			errors.New("<error>"),
		)

		if _, _, err := f.Repository.StoreForPeer(ctx, p, data, "<ignored>"); err == nil {
			t.Fatal("expected an error")
		}

		if keys := f.Objects.Keys(); len(keys) != 0 {
			t.Fatalf("expected no objects, got %v", keys)
		}

		if messages := f.Broker.Messages(PeerChannel("0peer")); len(messages) != 0 {
			t.Fatalf("expected no notifications, got %d", len(messages))
		}
	})

	t.Run("endpoint-bound parcels", func(t *testing.T) {
		t.Run("it stores the parcel and queues it for delivery", func(t *testing.T) {
			ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
			f := setup(t)
			p, data := f.endpointBoundParcel("<parcel>")

			key, ok, err := f.Repository.StoreForPeer(ctx, p, data, "0peer")
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("expected ok to be true")
			}

			if !strings.HasPrefix(key, "parcels/endpoint-bound/0peer/0endpoint/") {
				t.Fatalf("unexpected key: %s", key)
			}

			queued := f.Broker.Messages(OutboundChannel)
			if len(queued) != 1 {
				t.Fatalf("expected 1 queued message, got %d", len(queued))
			}

			m, err := UnmarshalQueuedMessage(queued[0])
			if err != nil {
				t.Fatal(err)
			}

			test.Expect(
				t,
				"unexpected queued message",
				m,
				QueuedMessage{
					ParcelObjectKey:        key,
					ParcelRecipientAddress: "https://endpoint.example",
					ParcelExpiryDate:       p.ExpiryDate.UTC(),
				},
				func(m QueuedMessage) QueuedMessage {
					m.ParcelExpiryDate = m.ParcelExpiryDate.UTC()
					return m
				},
			)
		})

		t.Run("it ignores a parcel that was already collected", func(t *testing.T) {
			ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
			f := setup(t)
			p, data := f.endpointBoundParcel("<parcel>")

			if _, _, err := f.Repository.StoreForPeer(ctx, p, data, "0peer"); err != nil {
				t.Fatal(err)
			}

			key, ok, err := f.Repository.StoreForPeer(ctx, p, data, "0peer")
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatalf("expected ok to be false, got key %q", key)
			}

			if n := len(f.Objects.Keys()); n != 1 {
				t.Fatalf("expected 1 stored object, got %d", n)
			}

			if n := len(f.Broker.Messages(OutboundChannel)); n != 1 {
				t.Fatalf("expected 1 queued message, got %d", n)
			}
		})

		t.Run("it returns a validation error if the parcel has expired", func(t *testing.T) {
			ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
			f := setup(t)
			p, _ := f.endpointBoundParcel("<parcel>")
			p.ExpiryDate = time.Now().Add(-time.Second)

			_, _, err := f.Repository.StoreForPeer(ctx, p, relaynettest.SerializeParcel(p), "0peer")
			if !errors.As(err, new(ValidationError)) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})

		t.Run("it does not record the collection if the parcel cannot be queued", func(t *testing.T) {
			ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
			f := setup(t)
			p, data := f.endpointBoundParcel("<parcel>")

			fail := test.FailOnce(errors.New("<error>"))
			f.Broker.BeforePublish = func(string, []byte) error {
				return fail()
			}

			if _, _, err := f.Repository.StoreForPeer(ctx, p, data, "0peer"); err == nil {
				t.Fatal("expected an error")
			}

			_, ok, err := f.Repository.StoreForPeer(ctx, p, data, "0peer")
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatal("expected the retried parcel to be stored")
			}
		})
	})
}

func TestRepository_RetrieveActive(t *testing.T) {
	ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
	f := setup(t)

	active, data := f.gatewayBoundParcel("<active>")
	activeKey, _, err := f.Repository.StoreForPeer(ctx, active, data, "")
	if err != nil {
		t.Fatal(err)
	}

	put := func(key string, metadata map[string]string) {
		if err := f.Objects.Put(ctx, key, objectstore.Object{Body: []byte("<body>"), Metadata: metadata}); err != nil {
			t.Fatal(err)
		}
	}

	prefix := "parcels/gateway-bound/0peer/0recipient/0sender/"
	put(prefix+"expired", map[string]string{ExpiryMetadataKey: formatUnix(time.Now().Add(-time.Second))})
	put(prefix+"expiring-now", map[string]string{ExpiryMetadataKey: formatUnix(time.Now())})
	put(prefix+"no-expiry", nil)
	put(prefix+"malformed-expiry", map[string]string{ExpiryMetadataKey: "<malformed>"})
	put("parcels/gateway-bound/0other-peer/0recipient/0sender/x", map[string]string{ExpiryMetadataKey: formatUnix(time.Now().Add(time.Hour))})

	var got []Object
	if err := f.Repository.RetrieveActive(
		ctx,
		"0peer",
		func(_ context.Context, o Object) error {
			got = append(got, o)
			return nil
		},
	); err != nil {
		t.Fatal(err)
	}

	test.Expect(
		t,
		"unexpected parcels",
		got,
		[]Object{
			{
				Key:        activeKey,
				Body:       data,
				ExpiryDate: active.ExpiryDate,
			},
		},
		func(objects []Object) []Object {
			for i := range objects {
				objects[i].ExpiryDate = objects[i].ExpiryDate.UTC()
			}
			return objects
		},
	)
}

func TestRepository_LiveStreamActive(t *testing.T) {
	f := setup(t)

	parcels := make(chan *LiveParcel, 10)

	test.
		RunInBackground(
			t,
			func(ctx context.Context) error {
				return f.Repository.LiveStreamActive(
					ctx,
					"0peer",
					func(_ context.Context, p *LiveParcel) error {
						parcels <- p
						return nil
					},
				)
			},
		).
		UntilStopped()

	ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
	p, data := f.gatewayBoundParcel("<parcel>")

	key, _, err := f.Repository.StoreForPeer(ctx, p, data, "")
	if err != nil {
		t.Fatal(err)
	}

	var live *LiveParcel
	select {
	case live = <-parcels:
	case <-ctx.Done():
		t.Fatal(ctx.Err())
	}

	test.Expect(t, "unexpected key", live.Key, key)
	test.Expect(t, "unexpected body", live.Body, data)

	if err := live.Ack(ctx); err != nil {
		t.Fatal(err)
	}

	test.Expect(t, "unexpected objects", f.Objects.Keys(), nil)
}

func TestRepository_DeleteGatewayBound(t *testing.T) {
	ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
	f := setup(t)
	p, data := f.gatewayBoundParcel("<parcel>")

	if _, _, err := f.Repository.StoreForPeer(ctx, p, data, ""); err != nil {
		t.Fatal(err)
	}

	if err := f.Repository.DeleteGatewayBound(ctx, "0peer", "0recipient", "0sender", "<parcel>"); err != nil {
		t.Fatal(err)
	}

	test.Expect(t, "unexpected objects", f.Objects.Keys(), nil)
}

func TestRepository_EndpointBound(t *testing.T) {
	t.Run("it refuses keys of gateway-bound parcels", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		f := setup(t)
		key := GatewayBoundKey("0peer", "0recipient", "0sender", "<parcel>")

		if _, _, err := f.Repository.RetrieveEndpointBound(ctx, key); err == nil {
			t.Fatal("expected an error")
		}

		if err := f.Repository.DeleteEndpointBound(ctx, key); err == nil {
			t.Fatal("expected an error")
		}
	})
}
