// Package cargorelay implements the cargo relay protocol, through which peers
// deliver cargo to the gateway and collect the cargo that is bound for them.
package cargorelay

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/relaynet/gateway/internal/cargorelay/cargorelaypb"
	"github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/parcelstore"
	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/relaynet"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service is the gRPC implementation of the cargo relay protocol.
type Service struct {
	cargorelaypb.UnimplementedCargoRelayServer

	// PublicAddress is the gateway's public address. Collection
	// authorizations must be addressed to it.
	PublicAddress string

	Bus          *messagebus.Bus
	Parcels      *parcelstore.Repository
	Ledger       *ledger.Ledger
	Codec        relaynet.Codec
	Certificates relaynet.CertificateStore
	Issuer       relaynet.CertificateIssuer
	Telemetry    *telemetry.Provider

	// Now returns the current time. If it is nil, [time.Now] is used.
	Now func() time.Time
}

var errInternal = status.Error(codes.Unavailable, "internal server error; please try again later")

// streamError is an error that occurred while reading from or writing to
// the RPC stream itself, as opposed to a failure of a backing service.
type streamError struct {
	Cause error
}

func (e streamError) Error() string { return e.Cause.Error() }
func (e streamError) Unwrap() error { return e.Cause }

// DeliverCargo accepts cargo from a peer and queues it for unpacking.
//
// Each cargo is acknowledged once it has been queued. Cargo that is malformed
// or was not sent by a trusted peer is acknowledged but dropped, as the
// acknowledgment signals receipt rather than acceptance.
func (s *Service) DeliverCargo(stream cargorelaypb.CargoRelay_DeliverCargoServer) error {
	ctx, span := s.recorder().StartSpan(stream.Context(), "cargorelay.deliver")
	defer span.End()

	trusted, err := s.Certificates.TrustedCertificates(ctx)
	if err != nil {
		span.Error("could not load trusted certificates", err)
		return errInternal
	}

	accepted := 0
	ack := func(id string) error {
		if err := stream.Send(&cargorelaypb.CargoDeliveryAck{Id: id}); err != nil {
			return streamError{err}
		}
		return nil
	}

	next := func(ctx context.Context) (messagebus.OutgoingMessage, bool, error) {
		for {
			delivery, err := stream.Recv()
			if err == io.EOF {
				return messagebus.OutgoingMessage{}, false, nil
			}
			if err != nil {
				return messagebus.OutgoingMessage{}, false, streamError{err}
			}

			id := delivery.GetId()

			cargo, err := s.Codec.ParseCargo(delivery.GetCargo())
			if err != nil {
				span.Info(
					"ignoring malformed cargo",
					telemetry.String("cargo.id", id),
					telemetry.String("error", err.Error()),
				)
				if err := ack(id); err != nil {
					return messagebus.OutgoingMessage{}, false, err
				}
				continue
			}

			if err := s.Codec.VerifyCargo(ctx, cargo, trusted); err != nil {
				span.Info(
					"ignoring cargo from untrusted sender",
					telemetry.String("cargo.id", id),
					telemetry.String("peer.id", cargo.SenderAddress()),
					telemetry.String("error", err.Error()),
				)
				if err := ack(id); err != nil {
					return messagebus.OutgoingMessage{}, false, err
				}
				continue
			}

			span.Debug(
				"received cargo",
				telemetry.String("cargo.id", id),
				telemetry.String("peer.id", cargo.SenderAddress()),
			)

			return messagebus.OutgoingMessage{
				ID:   id,
				Data: delivery.GetCargo(),
			}, true, nil
		}
	}

	err = s.Bus.NewClient("cargo-delivery").Publish(
		ctx,
		parcelstore.CargoChannel,
		next,
		func(_ context.Context, id string) error {
			accepted++
			return ack(id)
		},
	)

	span.SetAttributes(telemetry.Int("cargo.accepted", accepted))

	var serr streamError
	if errors.As(err, &serr) {
		span.Warn("cargo delivery stream failed", telemetry.String("error", err.Error()))
		return serr.Cause
	}

	if err != nil {
		span.Error("could not queue cargo", err)
		return errInternal
	}

	span.Info("cargo delivery completed")

	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) recorder() *telemetry.Recorder {
	return s.Telemetry.Recorder(
		"github.com/relaynet/gateway/internal/cargorelay",
		"cargorelay",
	)
}
