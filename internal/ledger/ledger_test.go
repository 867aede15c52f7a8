package ledger_test

import (
	"context"
	"sort"
	"testing"
	"time"

	. "github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/test"
	"github.com/relaynet/gateway/persistence/driver/memory"
	"github.com/relaynet/gateway/relaynet"
	"github.com/relaynet/gateway/relaynet/relaynettest"
)

func TestLedger_authorizations(t *testing.T) {
	t.Run("it reports an authorization as fulfilled only after it is recorded", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		l := newLedger(t)

		expectAuthorization(ctx, t, l, "<peer>", "<auth>", false)

		if err := l.RecordAuthorizationFulfilled(ctx, "<peer>", "<auth>", time.Now().Add(time.Hour)); err != nil {
			t.Fatal(err)
		}

		expectAuthorization(ctx, t, l, "<peer>", "<auth>", true)
		expectAuthorization(ctx, t, l, "<other-peer>", "<auth>", false)
		expectAuthorization(ctx, t, l, "<peer>", "<other-auth>", false)
	})

	t.Run("it is idempotent", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		l := newLedger(t)

		for i := 0; i < 2; i++ {
			if err := l.RecordAuthorizationFulfilled(ctx, "<peer>", "<auth>", time.Now().Add(time.Hour)); err != nil {
				t.Fatal(err)
			}
		}

		expectAuthorization(ctx, t, l, "<peer>", "<auth>", true)
	})

	t.Run("it treats expired records as absent", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		l := newLedger(t)

		if err := l.RecordAuthorizationFulfilled(ctx, "<peer>", "<auth>", time.Now().Add(-time.Second)); err != nil {
			t.Fatal(err)
		}

		expectAuthorization(ctx, t, l, "<peer>", "<auth>", false)
	})
}

func TestLedger_messages(t *testing.T) {
	key := MessageKey{
		PeerID:      "<peer>",
		SenderID:    "<sender>",
		RecipientID: "https://recipient.example",
		MessageID:   "<message>",
	}

	t.Run("it reports a message as collected only after it is recorded", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		l := newLedger(t)

		expectMessage(ctx, t, l, key, false)

		if err := l.RecordMessageCollected(ctx, key, time.Now().Add(time.Hour)); err != nil {
			t.Fatal(err)
		}

		expectMessage(ctx, t, l, key, true)

		other := key
		other.PeerID = "<other-peer>"
		expectMessage(ctx, t, l, other, false)
	})

	t.Run("it treats expired records as absent", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
		l := newLedger(t)

		if err := l.RecordMessageCollected(ctx, key, time.Now().Add(-time.Second)); err != nil {
			t.Fatal(err)
		}

		expectMessage(ctx, t, l, key, false)
	})
}

func TestLedger_GenerateAcknowledgments(t *testing.T) {
	ctx, _ := test.ContextWithTimeout(t, 5*time.Second)
	l := newLedger(t)
	codec := &relaynettest.Codec{}
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)

	records := []MessageKey{
		{PeerID: "<peer>", SenderID: "<sender-1>", RecipientID: "https://a.example", MessageID: "<message-1>"},
		{PeerID: "<peer>", SenderID: "<sender-2>", RecipientID: "https://b.example", MessageID: "<message-2>"},
		{PeerID: "<other-peer>", SenderID: "<sender-3>", RecipientID: "https://c.example", MessageID: "<message-3>"},
	}

	for _, k := range records {
		if err := l.RecordMessageCollected(ctx, k, expiresAt); err != nil {
			t.Fatal(err)
		}
	}

	expired := MessageKey{PeerID: "<peer>", SenderID: "<sender-4>", RecipientID: "https://d.example", MessageID: "<message-4>"}
	if err := l.RecordMessageCollected(ctx, expired, time.Now().Add(-time.Second)); err != nil {
		t.Fatal(err)
	}

	var got []relaynet.ParcelCollectionAck
	if err := l.GenerateAcknowledgments(
		ctx,
		"<peer>",
		func(_ context.Context, ack Acknowledgment) error {
			if !ack.ExpiryDate.Equal(expiresAt) {
				t.Errorf("unexpected expiry date: got %s, want %s", ack.ExpiryDate, expiresAt)
			}

			pca, err := codec.ParseParcelCollectionAck(ack.Payload)
			if err != nil {
				return err
			}

			got = append(got, pca)
			return nil
		},
	); err != nil {
		t.Fatal(err)
	}

	sort.Slice(got, func(i, j int) bool {
		return got[i].ParcelID < got[j].ParcelID
	})

	test.Expect(
		t,
		"unexpected acknowledgments",
		got,
		[]relaynet.ParcelCollectionAck{
			{SenderEndpointAddress: "<sender-1>", RecipientEndpointAddress: "https://a.example", ParcelID: "<message-1>"},
			{SenderEndpointAddress: "<sender-2>", RecipientEndpointAddress: "https://b.example", ParcelID: "<message-2>"},
		},
	)
}

func newLedger(t *testing.T) *Ledger {
	return &Ledger{
		Keyspaces: &memory.KeyValueStore{},
		Codec:     &relaynettest.Codec{},
		Telemetry: test.NewTelemetryProvider(t),
	}
}

func expectAuthorization(ctx context.Context, t *testing.T, l *Ledger, peer, auth string, want bool) {
	t.Helper()

	got, err := l.WasAuthorizationFulfilled(ctx, peer, auth)
	if err != nil {
		t.Fatal(err)
	}

	if got != want {
		t.Fatalf("unexpected fulfillment of authorization %q for peer %q: got %t, want %t", auth, peer, got, want)
	}
}

func expectMessage(ctx context.Context, t *testing.T, l *Ledger, k MessageKey, want bool) {
	t.Helper()

	got, err := l.WasMessageCollected(ctx, k)
	if err != nil {
		t.Fatal(err)
	}

	if got != want {
		t.Fatalf("unexpected collection state for %+v: got %t, want %t", k, got, want)
	}
}
