package cargorelay

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/parcelstore"
	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/relaynet"
)

// Unpacker unpacks the cargo queued by [Service.DeliverCargo], storing the
// parcels within it and applying any parcel collection acknowledgments.
type Unpacker struct {
	Bus       *messagebus.Bus
	Parcels   *parcelstore.Repository
	Codec     relaynet.Codec
	Telemetry *telemetry.Provider
}

// Run unpacks cargo until ctx is canceled or an error occurs.
//
// Cargo is acknowledged only once all of its messages have been processed, so
// cargo that is being unpacked when an error occurs is redelivered.
func (u *Unpacker) Run(ctx context.Context) error {
	client := u.Bus.NewClient("cargo-unpacker")
	defer client.Disconnect() // nolint:errcheck

	if err := client.Consume(
		ctx,
		parcelstore.CargoChannel,
		"worker",
		"worker",
		u.unpack,
	); err != nil {
		return err
	}

	return ctx.Err()
}

func (u *Unpacker) unpack(ctx context.Context, m *messagebus.Message) error {
	ctx, span := u.Telemetry.Recorder(
		"github.com/relaynet/gateway/internal/cargorelay",
		"cargorelay",
	).StartSpan(
		ctx,
		"cargorelay.unpack",
		telemetry.Int("bus.sequence", m.Sequence),
	)
	defer span.End()

	cargo, err := u.Codec.ParseCargo(m.Data)
	if err != nil {
		span.Warn("dropping malformed cargo", telemetry.String("error", err.Error()))
		return m.Ack()
	}

	peerID := cargo.SenderAddress()
	span.SetAttributes(
		telemetry.String("cargo.id", cargo.ID),
		telemetry.String("peer.id", peerID),
	)

	messageSet, err := u.Codec.UnwrapCargo(ctx, cargo)
	if err != nil {
		span.Warn("dropping cargo that could not be unwrapped", telemetry.String("error", err.Error()))
		return m.Ack()
	}

	messages, err := DecodeMessageSet(messageSet)
	if err != nil {
		span.Warn("dropping cargo with malformed message set", telemetry.String("error", err.Error()))
		return m.Ack()
	}

	var parcels, acks, ignored int

	for _, data := range messages {
		switch t := u.Codec.ClassifyMessage(data); t {
		case relaynet.ParcelMessage:
			stored, err := u.storeParcel(ctx, span, peerID, data)
			if err != nil {
				return err
			}
			if stored {
				parcels++
			} else {
				ignored++
			}

		case relaynet.ParcelCollectionAckMessage:
			applied, err := u.applyAck(ctx, span, peerID, data)
			if err != nil {
				return err
			}
			if applied {
				acks++
			} else {
				ignored++
			}

		default:
			span.Debug("ignoring unsupported message", telemetry.String("message.type", t.String()))
			ignored++
		}
	}

	if err := m.Ack(); err != nil {
		return fmt.Errorf("unable to acknowledge cargo: %w", err)
	}

	span.Info(
		"unpacked cargo",
		telemetry.Int("parcels.stored", parcels),
		telemetry.Int("acks.applied", acks),
		telemetry.Int("messages.ignored", ignored),
	)

	return nil
}

func (u *Unpacker) storeParcel(
	ctx context.Context,
	span *telemetry.Span,
	peerID string,
	data []byte,
) (bool, error) {
	p, err := u.Codec.ParseParcel(data)
	if err != nil {
		span.Warn("ignoring malformed parcel", telemetry.String("error", err.Error()))
		return false, nil
	}

	_, ok, err := u.Parcels.StoreForPeer(ctx, p, data, peerID)

	var verr parcelstore.ValidationError
	if errors.As(err, &verr) {
		span.Warn(
			"ignoring invalid parcel",
			telemetry.String("parcel.id", p.ID),
			telemetry.String("error", err.Error()),
		)
		return false, nil
	}

	return ok, err
}

func (u *Unpacker) applyAck(
	ctx context.Context,
	span *telemetry.Span,
	peerID string,
	data []byte,
) (bool, error) {
	ack, err := u.Codec.ParseParcelCollectionAck(data)
	if err != nil {
		span.Warn("ignoring malformed parcel collection acknowledgment", telemetry.String("error", err.Error()))
		return false, nil
	}

	if err := u.Parcels.DeleteGatewayBound(
		ctx,
		peerID,
		ack.RecipientEndpointAddress,
		ack.SenderEndpointAddress,
		ack.ParcelID,
	); err != nil {
		return false, fmt.Errorf("unable to apply parcel collection acknowledgment: %w", err)
	}

	return true, nil
}
