// Package parcelstore stores parcels in an object store until they are
// collected by a peer or delivered to the Internet.
package parcelstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/persistence/objectstore"
	"github.com/relaynet/gateway/relaynet"
)

// ExpiryMetadataKey is the object meta-data key that holds a parcel's expiry
// date, as a decimal Unix timestamp in seconds.
const ExpiryMetadataKey = "parcel-expiry"

// Object is a stored parcel.
type Object struct {
	Key        string
	Body       []byte
	ExpiryDate time.Time
}

// Repository stores parcels bound for peers and for endpoints on the Internet.
type Repository struct {
	Objects      objectstore.Store
	Ledger       *ledger.Ledger
	Bus          *messagebus.Bus
	Codec        relaynet.ParcelCodec
	Certificates relaynet.CertificateStore
	Telemetry    *telemetry.Provider

	// Now returns the current time. If it is nil, [time.Now] is used.
	Now func() time.Time
}

// StoreForPeer stores a parcel that was received from the given peer, or that
// is bound for one of the peers.
//
// Parcels bound for endpoints behind a peer must have a certification path to
// one of the gateway's own certificates. The peer they are bound for is
// determined by that path, not by peerID. Once stored, the parcel's key is
// published on the peer's channel.
//
// Parcels bound for endpoints on the Internet are verified on their own and
// queued for delivery. ok is false if the parcel was already collected from
// the peer, in which case nothing is stored.
//
// It returns a [ValidationError] if the parcel is rejected.
func (r *Repository) StoreForPeer(
	ctx context.Context,
	p relaynet.Parcel,
	serialized []byte,
	peerID string,
) (key string, ok bool, err error) {
	ctx, span := r.recorder().StartSpan(
		ctx,
		"parcelstore.store",
		telemetry.String("peer.id", peerID),
		telemetry.String("parcel.id", p.ID),
		telemetry.String("parcel.recipient", p.RecipientAddress),
		telemetry.Bool("parcel.gateway_bound", p.IsGatewayBound()),
	)
	defer span.End()

	if p.IsGatewayBound() {
		key, err = r.storeGatewayBound(ctx, p, serialized)
		ok = err == nil
	} else {
		key, ok, err = r.storeEndpointBound(ctx, p, serialized, peerID)
	}

	if err != nil {
		span.Error("could not store parcel", err)
		return "", false, err
	}

	if !ok {
		span.Info("ignored parcel that was already collected")
		return "", false, nil
	}

	span.SetAttributes(telemetry.String("parcel.key", key))
	span.Debug("stored parcel")

	return key, true, nil
}

func (r *Repository) storeGatewayBound(
	ctx context.Context,
	p relaynet.Parcel,
	serialized []byte,
) (string, error) {
	trusted, err := r.Certificates.TrustedCertificates(ctx)
	if err != nil {
		return "", fmt.Errorf("unable to load trusted certificates: %w", err)
	}

	path, err := r.Codec.VerifyParcel(ctx, p, trusted)
	if err != nil {
		return "", ValidationError{err}
	}

	if len(path) < 2 {
		return "", ValidationError{errors.New("certification path does not include the recipient's gateway")}
	}

	peerID := path[len(path)-2].PrivateAddress()
	key := GatewayBoundKey(peerID, p.RecipientAddress, p.SenderAddress(), p.ID)

	if err := r.put(ctx, key, serialized, p.ExpiryDate); err != nil {
		return "", err
	}

	if err := r.Bus.PublishOne(ctx, PeerChannel(peerID), []byte(key)); err != nil {
		return "", fmt.Errorf("unable to notify peer %q of parcel: %w", peerID, err)
	}

	return key, nil
}

func (r *Repository) storeEndpointBound(
	ctx context.Context,
	p relaynet.Parcel,
	serialized []byte,
	peerID string,
) (string, bool, error) {
	if _, err := r.Codec.VerifyParcel(ctx, p, nil); err != nil {
		return "", false, ValidationError{err}
	}

	mk := ledger.MessageKey{
		PeerID:      peerID,
		SenderID:    p.SenderAddress(),
		RecipientID: p.RecipientAddress,
		MessageID:   p.ID,
	}

	collected, err := r.Ledger.WasMessageCollected(ctx, mk)
	if err != nil {
		return "", false, err
	}
	if collected {
		return "", false, nil
	}

	key := newEndpointBoundKey(peerID, p.SenderAddress())

	if err := r.put(ctx, key, serialized, p.ExpiryDate); err != nil {
		return "", false, err
	}

	data, err := MarshalQueuedMessage(QueuedMessage{
		ParcelObjectKey:        key,
		ParcelRecipientAddress: p.RecipientAddress,
		ParcelExpiryDate:       p.ExpiryDate,
	})
	if err != nil {
		return "", false, err
	}

	if err := r.Bus.PublishOne(ctx, OutboundChannel, data); err != nil {
		return "", false, fmt.Errorf("unable to queue parcel for delivery: %w", err)
	}

	if err := r.Ledger.RecordMessageCollected(ctx, mk, p.ExpiryDate); err != nil {
		return "", false, err
	}

	return key, true, nil
}

func (r *Repository) put(ctx context.Context, key string, body []byte, expiresAt time.Time) error {
	return r.Objects.Put(
		ctx,
		key,
		objectstore.Object{
			Body: body,
			Metadata: map[string]string{
				ExpiryMetadataKey: strconv.FormatInt(expiresAt.Unix(), 10),
			},
		},
	)
}

// RetrieveActive calls fn for each unexpired parcel bound for the given peer.
//
// Parcels that are deleted while they are being listed, and parcels with
// missing or malformed expiry meta-data, are skipped.
func (r *Repository) RetrieveActive(
	ctx context.Context,
	peerID string,
	fn func(context.Context, Object) error,
) error {
	ctx, span := r.recorder().StartSpan(
		ctx,
		"parcelstore.retrieve-active",
		telemetry.String("peer.id", peerID),
	)
	defer span.End()

	count := 0

	err := r.Objects.List(
		ctx,
		gatewayBoundPeerPrefix(peerID),
		func(ctx context.Context, key string) (bool, error) {
			obj, ok, err := r.fetch(ctx, span, key)
			if !ok || err != nil {
				return err == nil, err
			}

			count++
			return true, fn(ctx, obj)
		},
	)

	span.SetAttributes(telemetry.Int("parcels.retrieved", count))

	if err != nil {
		span.Error("could not retrieve active parcels", err)
		return err
	}

	span.Debug("retrieved active parcels")

	return nil
}

// LiveParcel is a parcel received from a live stream.
type LiveParcel struct {
	Object

	message *messagebus.Message
	repo    *Repository
}

// Ack deletes the parcel and acknowledges the notification that announced it.
//
// It must only be called once the parcel has been delivered to the peer.
func (p *LiveParcel) Ack(ctx context.Context) error {
	if err := p.repo.Objects.Delete(ctx, p.Key); err != nil {
		return fmt.Errorf("unable to delete parcel %q: %w", p.Key, err)
	}
	return p.message.Ack()
}

// LiveStreamActive calls fn for each parcel that is stored for the peer from
// now on, until ctx is canceled.
//
// The notification of each parcel remains unacknowledged until fn acknowledges
// it via [LiveParcel.Ack]. Notifications of parcels that have since been
// deleted or have expired are acknowledged and skipped.
func (r *Repository) LiveStreamActive(
	ctx context.Context,
	peerID string,
	fn func(context.Context, *LiveParcel) error,
) error {
	ctx, span := r.recorder().StartSpan(
		ctx,
		"parcelstore.live-stream",
		telemetry.String("peer.id", peerID),
		telemetry.String("channel", PeerChannel(peerID)),
	)
	defer span.End()

	client := r.Bus.NewClient("live-collection")
	defer client.Disconnect() // nolint:errcheck

	err := client.Consume(
		ctx,
		PeerChannel(peerID),
		"active-parcels",
		"active-parcels",
		func(ctx context.Context, m *messagebus.Message) error {
			obj, ok, err := r.fetch(ctx, span, string(m.Data))
			if err != nil {
				return err
			}

			if !ok {
				return m.Ack()
			}

			return fn(ctx, &LiveParcel{obj, m, r})
		},
	)
	if err != nil {
		span.Error("live stream failed", err)
		return err
	}

	span.Debug("live stream ended")

	return nil
}

// fetch returns the unexpired parcel with the given key.
func (r *Repository) fetch(
	ctx context.Context,
	span *telemetry.Span,
	key string,
) (Object, bool, error) {
	o, ok, err := r.Objects.Get(ctx, key)
	if err != nil {
		return Object{}, false, fmt.Errorf("unable to fetch parcel %q: %w", key, err)
	}

	if !ok {
		span.Debug("skipped parcel that was deleted", telemetry.String("parcel.key", key))
		return Object{}, false, nil
	}

	raw, ok := o.Metadata[ExpiryMetadataKey]
	if !ok {
		span.Warn("skipped parcel without expiry date", telemetry.String("parcel.key", key))
		return Object{}, false, nil
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		span.Warn(
			"skipped parcel with malformed expiry date",
			telemetry.String("parcel.key", key),
			telemetry.String("parcel.expiry", raw),
		)
		return Object{}, false, nil
	}

	expiresAt := time.Unix(unix, 0)
	if !expiresAt.After(r.now()) {
		span.Debug(
			"skipped expired parcel",
			telemetry.String("parcel.key", key),
			telemetry.Time("parcel.expires_at", expiresAt),
		)
		return Object{}, false, nil
	}

	return Object{
		Key:        key,
		Body:       o.Body,
		ExpiryDate: expiresAt,
	}, true, nil
}

// DeleteGatewayBound deletes a parcel bound for an endpoint behind the given
// peer, typically because the peer acknowledged its collection.
func (r *Repository) DeleteGatewayBound(
	ctx context.Context,
	peerID, recipientID, senderID, messageID string,
) error {
	return r.Delete(ctx, GatewayBoundKey(peerID, recipientID, senderID, messageID))
}

// RetrieveEndpointBound returns the serialized parcel with the given key, which
// must identify a parcel bound for an endpoint on the Internet.
//
// ok is false if the parcel does not exist.
func (r *Repository) RetrieveEndpointBound(ctx context.Context, key string) (body []byte, ok bool, err error) {
	if !IsEndpointBoundKey(key) {
		return nil, false, fmt.Errorf("%q is not the key of an endpoint-bound parcel", key)
	}

	o, ok, err := r.Objects.Get(ctx, key)
	if !ok || err != nil {
		return nil, false, err
	}

	return o.Body, true, nil
}

// DeleteEndpointBound deletes the parcel with the given key, which must
// identify a parcel bound for an endpoint on the Internet.
func (r *Repository) DeleteEndpointBound(ctx context.Context, key string) error {
	if !IsEndpointBoundKey(key) {
		return fmt.Errorf("%q is not the key of an endpoint-bound parcel", key)
	}
	return r.Delete(ctx, key)
}

// Delete unconditionally deletes the parcel with the given key.
func (r *Repository) Delete(ctx context.Context, key string) error {
	ctx, span := r.recorder().StartSpan(
		ctx,
		"parcelstore.delete",
		telemetry.String("parcel.key", key),
	)
	defer span.End()

	if err := r.Objects.Delete(ctx, key); err != nil {
		span.Error("could not delete parcel", err)
		return err
	}

	span.Debug("deleted parcel")

	return nil
}

func (r *Repository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Repository) recorder() *telemetry.Recorder {
	return r.Telemetry.Recorder(
		"github.com/relaynet/gateway/internal/parcelstore",
		"parcelstore",
	)
}
