package relaynettest_test

import (
	"context"
	"testing"
	"time"

	"github.com/relaynet/gateway/relaynet"
	. "github.com/relaynet/gateway/relaynet/relaynettest"
)

func TestCodec_VerifyParcel(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	gateway := NewCertificate("0gateway", nil, now.Add(365*24*time.Hour))
	peer := NewCertificate("0peer", gateway, now.Add(365*24*time.Hour))
	recipient := NewCertificate("0recipient", peer, now.Add(30*24*time.Hour))
	sender := NewCertificate("0sender", recipient, now.Add(30*24*time.Hour))

	codec := &Codec{Identity: gateway}

	data := SerializeParcel(relaynet.Parcel{
		ID:                "<parcel>",
		RecipientAddress:  recipient.Address,
		SenderCertificate: sender,
		ExpiryDate:        now.Add(time.Hour),
	})

	p, err := codec.ParseParcel(data)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("it returns the certification path to the trusted certificate", func(t *testing.T) {
		trusted, err := codec.TrustedCertificates(ctx)
		if err != nil {
			t.Fatal(err)
		}

		path, err := codec.VerifyParcel(ctx, p, trusted)
		if err != nil {
			t.Fatal(err)
		}

		var got []string
		for _, c := range path {
			got = append(got, c.PrivateAddress())
		}

		want := []string{"0sender", "0recipient", "0peer", "0gateway"}
		if len(got) != len(want) {
			t.Fatalf("unexpected path: got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("unexpected path: got %v, want %v", got, want)
			}
		}
	})

	t.Run("it fails if there is no path to a trusted certificate", func(t *testing.T) {
		other := NewCertificate("0other", nil, now.Add(time.Hour))

		if _, err := codec.VerifyParcel(ctx, p, []relaynet.Certificate{other}); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("it verifies the parcel on its own when there are no trusted certificates", func(t *testing.T) {
		path, err := codec.VerifyParcel(ctx, p, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(path) != 1 {
			t.Fatalf("unexpected path length: %d", len(path))
		}
	})

	t.Run("it fails if the parcel has expired", func(t *testing.T) {
		codec := &Codec{
			Identity: gateway,
			Now:      func() time.Time { return now.Add(2 * time.Hour) },
		}

		if _, err := codec.VerifyParcel(ctx, p, nil); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestCodec_ClassifyMessage(t *testing.T) {
	codec := &Codec{}
	cert := NewCertificate("0sender", nil, time.Now().Add(time.Hour))

	cases := []struct {
		Name string
		Data []byte
		Want relaynet.MessageType
	}{
		{
			"parcel",
			SerializeParcel(relaynet.Parcel{ID: "<id>", SenderCertificate: cert}),
			relaynet.ParcelMessage,
		},
		{
			"parcel collection ack",
			codec.SerializeParcelCollectionAck(relaynet.ParcelCollectionAck{ParcelID: "<id>"}),
			relaynet.ParcelCollectionAckMessage,
		},
		{
			"garbage",
			[]byte("<garbage>"),
			relaynet.UnknownMessage,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.Name, func(t *testing.T) {
			if got := codec.ClassifyMessage(c.Data); got != c.Want {
				t.Fatalf("unexpected message type: got %s, want %s", got, c.Want)
			}
		})
	}
}
