package cargorelay_test

import (
	"testing"
	"time"

	"github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/parcelstore"
	"github.com/relaynet/gateway/internal/test"
	"github.com/relaynet/gateway/relaynet"
	"github.com/relaynet/gateway/relaynet/relaynettest"
	"golang.org/x/exp/slices"
)

func TestUnpacker(t *testing.T) {
	t.Run("it stores parcels and applies acknowledgments", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 10*time.Second)
		f := setup(t)

		acked, ackedData := f.gatewayBoundParcel("<acked>")
		ackedKey, _, err := f.Parcels.StoreForPeer(ctx, acked, ackedData, "0peer")
		if err != nil {
			t.Fatal(err)
		}

		incoming, incomingData := f.gatewayBoundParcel("<incoming>")
		incomingKey := parcelstore.GatewayBoundKey(
			"0peer",
			incoming.RecipientAddress,
			incoming.SenderAddress(),
			incoming.ID,
		)

		endpoint := relaynettest.NewCertificate("0endpoint", nil, time.Now().Add(time.Hour))
		outbound := relaynet.Parcel{
			ID:                "<outbound>",
			RecipientAddress:  "https://endpoint.example",
			SenderCertificate: endpoint,
			ExpiryDate:        time.Now().Add(time.Hour).Truncate(time.Second),
		}

		pca := f.Codec.SerializeParcelCollectionAck(relaynet.ParcelCollectionAck{
			SenderEndpointAddress:    acked.SenderAddress(),
			RecipientEndpointAddress: acked.RecipientAddress,
			ParcelID:                 acked.ID,
		})

		if err := f.Service.Bus.PublishOne(ctx, parcelstore.CargoChannel, []byte("<not cargo>")); err != nil {
			t.Fatal(err)
		}

		if err := f.Service.Bus.PublishOne(
			ctx,
			parcelstore.CargoChannel,
			f.cargo(
				t,
				f.Peer,
				incomingData,
				relaynettest.SerializeParcel(outbound),
				pca,
				[]byte("<unknown message>"),
			),
		); err != nil {
			t.Fatal(err)
		}

		task := test.RunInBackground(t, f.Unpacker.Run).UntilStopped()

		eventually(ctx, t, func() bool {
			keys := f.Objects.Keys()
			return slices.Contains(keys, incomingKey) &&
				!slices.Contains(keys, ackedKey) &&
				len(f.Broker.Messages(parcelstore.OutboundChannel)) == 1
		})

		task.StopAndWait()

		collected, err := f.Ledger.WasMessageCollected(
			ctx,
			ledger.MessageKey{
				PeerID:      "0peer",
				SenderID:    "0endpoint",
				RecipientID: "https://endpoint.example",
				MessageID:   "<outbound>",
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		if !collected {
			t.Fatal("expected the outbound parcel to be recorded as collected")
		}
	})

	t.Run("it drops cargo that is not addressed to the gateway", func(t *testing.T) {
		ctx, _ := test.ContextWithTimeout(t, 10*time.Second)
		f := setup(t)

		_, data := f.gatewayBoundParcel("<parcel>")

		cargo := f.cargo(t, f.Peer, data)
		c, err := f.Codec.ParseCargo(cargo)
		if err != nil {
			t.Fatal(err)
		}
		c.RecipientAddress = "0elsewhere"

		if err := f.Service.Bus.PublishOne(
			ctx,
			parcelstore.CargoChannel,
			relaynettest.SerializeCargo(c),
		); err != nil {
			t.Fatal(err)
		}

		_, marker := f.gatewayBoundParcel("<marker>")
		if err := f.Service.Bus.PublishOne(
			ctx,
			parcelstore.CargoChannel,
			f.cargo(t, f.Peer, marker),
		); err != nil {
			t.Fatal(err)
		}

		task := test.RunInBackground(t, f.Unpacker.Run).UntilStopped()

		// Cargo is unpacked in order, so once the marker is stored the
		// misaddressed cargo has been processed.
		eventually(ctx, t, func() bool {
			return len(f.Objects.Keys()) == 1
		})

		task.StopAndWait()

		test.Expect(
			t,
			"unexpected stored parcels",
			f.Objects.Keys(),
			[]string{
				parcelstore.GatewayBoundKey("0peer", "0recipient", "0sender", "<marker>"),
			},
		)
	})
}

