package cargorelay

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/relaynet/gateway/internal/cargorelay/cargorelaypb"
	"github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/parcelstore"
	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/relaynet"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// AuthorizationMetadataKey is the call meta-data key that carries the
	// cargo collection authorization.
	AuthorizationMetadataKey = "authorization"

	// AuthorizationType is the authorization scheme used for CCAs.
	AuthorizationType = "Relaynet-CCA"

	// StreamingModeMetadataKey is the call meta-data key that selects the
	// collection streaming mode.
	StreamingModeMetadataKey = "x-relaynet-streaming-mode"

	// KeepAliveStreamingMode keeps the collection open after the pending cargo
	// has been delivered, streaming new parcels as they are stored.
	KeepAliveStreamingMode = "keep-alive"
)

// CollectCargo delivers the cargo bound for the peer that issued the
// collection authorization presented in the call's meta-data.
//
// The authorization is recorded as fulfilled only once all pending cargo has
// been sent, so that a failed collection can be retried with the same
// authorization.
func (s *Service) CollectCargo(stream cargorelaypb.CargoRelay_CollectCargoServer) error {
	ctx, span := s.recorder().StartSpan(stream.Context(), "cargorelay.collect")
	defer span.End()

	md, _ := metadata.FromIncomingContext(ctx)

	cca, err := s.authenticate(ctx, md)
	if err != nil {
		span.Info("refused cargo collection", telemetry.String("error", err.Error()))
		return err
	}

	peerID := cca.SenderAddress()
	span.SetAttributes(
		telemetry.String("peer.id", peerID),
		telemetry.String("authorization.id", cca.ID),
	)

	req, err := s.Codec.UnwrapCollectionRequest(ctx, cca)
	if err != nil {
		span.Info("refused cargo collection with invalid request", telemetry.String("error", err.Error()))
		return status.Error(codes.Unauthenticated, "invalid collection request")
	}

	fulfilled, err := s.Ledger.WasAuthorizationFulfilled(ctx, peerID, cca.ID)
	if err != nil {
		span.Error("could not check collection authorization", err)
		return errInternal
	}
	if fulfilled {
		span.Info("refused reuse of collection authorization")
		return status.Error(codes.PermissionDenied, "collection authorization has already been used")
	}

	c := &collection{
		service: s,
		stream:  stream,
		span:    span,
		peer:    cca.SenderCertificate,
		cda:     req.DeliveryAuthorization,
		pending: map[string]func(context.Context) error{},
	}

	if err := c.drain(ctx); err != nil {
		var serr streamError
		if errors.As(err, &serr) {
			span.Warn("cargo collection stream failed", telemetry.String("error", err.Error()))
			return serr.Cause
		}

		span.Error("could not deliver pending cargo", err)
		return errInternal
	}

	if err := s.Ledger.RecordAuthorizationFulfilled(ctx, peerID, cca.ID, cca.ExpiryDate); err != nil {
		span.Error("could not record fulfilled collection authorization", err)
		return errInternal
	}

	span.Info("delivered pending cargo", telemetry.Int("cargo.sent", c.sent))

	if isKeepAlive(md) {
		return c.keepAlive(ctx)
	}

	return c.awaitAcks(ctx)
}

// authenticate returns the collection authorization presented in the call's
// meta-data.
func (s *Service) authenticate(ctx context.Context, md metadata.MD) (relaynet.CollectionAuthorization, error) {
	values := md.Get(AuthorizationMetadataKey)

	switch len(values) {
	case 0:
		return relaynet.CollectionAuthorization{}, status.Error(codes.Unauthenticated, "authorization meta-data is missing")
	case 1:
	default:
		return relaynet.CollectionAuthorization{}, status.Error(codes.Unauthenticated, "authorization meta-data must be specified exactly once")
	}

	typ, value, ok := strings.Cut(values[0], " ")
	if !ok || typ != AuthorizationType {
		return relaynet.CollectionAuthorization{}, status.Errorf(codes.Unauthenticated, "authorization type must be %s", AuthorizationType)
	}

	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(data) == 0 {
		return relaynet.CollectionAuthorization{}, status.Error(codes.Unauthenticated, "authorization value must be base64-encoded")
	}

	cca, err := s.Codec.ParseCollectionAuthorization(data)
	if err != nil {
		return relaynet.CollectionAuthorization{}, status.Error(codes.Unauthenticated, "malformed collection authorization")
	}

	if cca.RecipientAddress != s.PublicAddress {
		return relaynet.CollectionAuthorization{}, status.Errorf(
			codes.InvalidArgument,
			"collection authorization is addressed to %q, not %q",
			cca.RecipientAddress,
			s.PublicAddress,
		)
	}

	if !cca.ExpiryDate.After(s.now()) {
		return relaynet.CollectionAuthorization{}, status.Error(codes.Unauthenticated, "collection authorization has expired")
	}

	trusted, err := s.Certificates.TrustedCertificates(ctx)
	if err != nil {
		return relaynet.CollectionAuthorization{}, errInternal
	}

	if err := s.Codec.VerifyCollectionAuthorization(ctx, cca, trusted); err != nil {
		return relaynet.CollectionAuthorization{}, status.Error(codes.Unauthenticated, "collection authorization was not issued by a trusted peer")
	}

	return cca, nil
}

func isKeepAlive(md metadata.MD) bool {
	values := md.Get(StreamingModeMetadataKey)
	return len(values) == 1 && values[0] == KeepAliveStreamingMode
}

// collection is the state of a single CollectCargo call.
type collection struct {
	service *Service
	stream  cargorelaypb.CargoRelay_CollectCargoServer
	span    *telemetry.Span
	peer    relaynet.Certificate
	cda     relaynet.Certificate
	sent    int

	m       sync.Mutex
	pending map[string]func(context.Context) error
}

// drain sends all pending acknowledgments and parcels for the peer, followed
// by a certificate rotation if the peer's certificate expires soon.
func (c *collection) drain(ctx context.Context) error {
	peerID := c.peer.PrivateAddress()

	b := &batcher{
		Limit: MaxMessageSetLength,
		Emit: func(ctx context.Context, x batch) error {
			return c.send(ctx, x, nil)
		},
	}

	if err := c.service.Ledger.GenerateAcknowledgments(
		ctx,
		peerID,
		func(ctx context.Context, ack ledger.Acknowledgment) error {
			return b.Add(ctx, ack.Payload, ack.ExpiryDate)
		},
	); err != nil {
		return fmt.Errorf("unable to generate parcel collection acknowledgments: %w", err)
	}

	if err := c.service.Parcels.RetrieveActive(
		ctx,
		peerID,
		func(ctx context.Context, o parcelstore.Object) error {
			err := b.Add(ctx, o.Body, o.ExpiryDate)
			if errors.Is(err, errMessageTooLarge) {
				c.span.Warn(
					"skipped parcel that is too large to include in cargo",
					telemetry.String("parcel.key", o.Key),
					telemetry.Int("parcel.size", len(o.Body)),
				)
				return nil
			}
			return err
		},
	); err != nil {
		return fmt.Errorf("unable to retrieve active parcels: %w", err)
	}

	if err := b.Flush(ctx); err != nil {
		return err
	}

	now := c.service.now()
	if !relaynet.NeedsRotation(c.peer, now) {
		return nil
	}

	rotation, err := c.service.Issuer.RotateCertificate(ctx, c.peer)
	if err != nil {
		return fmt.Errorf("unable to rotate peer certificate: %w", err)
	}

	c.span.Info(
		"issued certificate rotation",
		telemetry.Time("peer.certificate.expires_at", c.peer.ExpiryDate()),
	)

	return c.send(
		ctx,
		batch{
			Messages:  [][]byte{rotation},
			ExpiresAt: now.Add(relaynet.MinCertificateValidity),
		},
		nil,
	)
}

// send seals a batch into cargo and sends it to the peer.
//
// onAck, if non-nil, is called when the peer acknowledges the cargo.
func (c *collection) send(
	ctx context.Context,
	x batch,
	onAck func(context.Context) error,
) error {
	messageSet, err := EncodeMessageSet(x.Messages)
	if err != nil {
		return err
	}

	cargo, err := c.service.Codec.SealCargo(ctx, c.cda, messageSet, x.ExpiresAt)
	if err != nil {
		return fmt.Errorf("unable to seal cargo: %w", err)
	}

	if len(cargo) > MaxCargoLength {
		return fmt.Errorf("sealed cargo is %d bytes, exceeding the maximum of %d", len(cargo), MaxCargoLength)
	}

	id := uuid.NewString()

	c.m.Lock()
	c.pending[id] = onAck
	c.m.Unlock()

	if err := c.stream.Send(&cargorelaypb.CargoDelivery{Id: id, Cargo: cargo}); err != nil {
		return streamError{err}
	}

	c.sent++
	c.span.Debug(
		"sent cargo",
		telemetry.String("cargo.id", id),
		telemetry.Int("cargo.messages", len(x.Messages)),
		telemetry.Int("cargo.size", len(cargo)),
	)

	return nil
}

// ack handles an acknowledgment received from the peer, and returns the
// number of cargo that remain unacknowledged.
func (c *collection) ack(ctx context.Context, id string) (int, error) {
	c.m.Lock()
	onAck, ok := c.pending[id]
	delete(c.pending, id)
	remaining := len(c.pending)
	c.m.Unlock()

	if !ok {
		c.span.Warn("ignoring acknowledgment of unknown cargo", telemetry.String("cargo.id", id))
		return remaining, nil
	}

	c.span.Debug("cargo acknowledged", telemetry.String("cargo.id", id))

	if onAck == nil {
		return remaining, nil
	}

	return remaining, onAck(ctx)
}

// awaitAcks waits until the peer has acknowledged all of the cargo sent to it,
// or closes its side of the stream.
func (c *collection) awaitAcks(ctx context.Context) error {
	c.m.Lock()
	remaining := len(c.pending)
	c.m.Unlock()

	for remaining > 0 {
		msg, err := c.stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if remaining, err = c.ack(ctx, msg.GetId()); err != nil {
			c.span.Error("could not process cargo acknowledgment", err)
			return errInternal
		}
	}

	return nil
}

// keepAlive streams parcels to the peer as they are stored, until the peer
// closes its side of the stream.
//
// Each parcel is deleted once the peer acknowledges the cargo containing it.
func (c *collection) keepAlive(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	received := make(chan error, 1)
	go func() {
		received <- c.receiveAcks(ctx)
	}()

	streamed := make(chan error, 1)
	go func() {
		streamed <- c.service.Parcels.LiveStreamActive(
			ctx,
			c.peer.PrivateAddress(),
			func(ctx context.Context, p *parcelstore.LiveParcel) error {
				return c.send(
					ctx,
					batch{
						Messages:  [][]byte{p.Body},
						ExpiresAt: p.ExpiryDate,
					},
					p.Ack,
				)
			},
		)
	}()

	select {
	case err := <-received:
		cancel()
		<-streamed

		if err != nil {
			var serr streamError
			if errors.As(err, &serr) {
				return serr.Cause
			}
			c.span.Error("could not process cargo acknowledgment", err)
			return errInternal
		}

		c.span.Info("live cargo collection ended by peer")
		return nil

	case err := <-streamed:
		if err != nil {
			var serr streamError
			if errors.As(err, &serr) {
				return serr.Cause
			}
			c.span.Error("live cargo collection failed", err)
			return errInternal
		}

		return status.FromContextError(ctx.Err()).Err()
	}
}

// receiveAcks handles acknowledgments until the peer closes its side of the
// stream.
func (c *collection) receiveAcks(ctx context.Context) error {
	for {
		msg, err := c.stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return streamError{err}
		}

		if _, err := c.ack(ctx, msg.GetId()); err != nil {
			return err
		}
	}
}
