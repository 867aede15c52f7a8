// Package ledger records which collection authorizations have been fulfilled
// and which parcels have been collected, to prevent replay and to generate
// parcel collection acknowledgments.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/persistence/kv"
	"github.com/relaynet/gateway/relaynet"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// AuthorizationKeyspace is the name of the keyspace that contains the records
// of fulfilled collection authorizations.
const AuthorizationKeyspace = "collection-authorizations"

// collectedKeyspace returns the name of the keyspace that contains the records
// of the messages collected from the given peer.
func collectedKeyspace(peerID string) string {
	return "collected-messages." + peerID
}

// keySeparator separates the components of composite keys. Node addresses and
// message IDs never contain it.
const keySeparator = "\x00"

// MessageKey uniquely identifies a message collected from a peer.
type MessageKey struct {
	PeerID      string
	SenderID    string
	RecipientID string
	MessageID   string
}

// Acknowledgment is a serialized parcel collection acknowledgment destined for
// a peer.
type Acknowledgment struct {
	ExpiryDate time.Time
	Payload    []byte
}

// Ledger is the collection ledger.
//
// Every record has an expiry time, after which it is treated as absent.
type Ledger struct {
	Keyspaces kv.Store
	Codec     relaynet.ParcelCodec
	Telemetry *telemetry.Provider
}

// WasAuthorizationFulfilled returns true if the given collection authorization
// has already been used by the peer.
func (l *Ledger) WasAuthorizationFulfilled(ctx context.Context, peerID, authorizationID string) (bool, error) {
	ks, err := l.Keyspaces.Open(ctx, AuthorizationKeyspace)
	if err != nil {
		return false, fmt.Errorf("unable to open %s keyspace: %w", AuthorizationKeyspace, err)
	}
	defer ks.Close()

	return ks.Has(ctx, authorizationKey(peerID, authorizationID))
}

// RecordAuthorizationFulfilled records that the given collection authorization
// has been used by the peer. The record is retained until expiresAt.
func (l *Ledger) RecordAuthorizationFulfilled(
	ctx context.Context,
	peerID, authorizationID string,
	expiresAt time.Time,
) error {
	ctx, span := l.recorder().StartSpan(
		ctx,
		"ledger.record-authorization",
		telemetry.String("peer.id", peerID),
		telemetry.String("authorization.id", authorizationID),
		telemetry.Time("authorization.expires_at", expiresAt),
	)
	defer span.End()

	ks, err := l.Keyspaces.Open(ctx, AuthorizationKeyspace)
	if err != nil {
		span.Error("could not open keyspace", err)
		return fmt.Errorf("unable to open %s keyspace: %w", AuthorizationKeyspace, err)
	}
	defer ks.Close()

	if err := ks.Set(
		ctx,
		authorizationKey(peerID, authorizationID),
		marshalExpiry(expiresAt),
		expiresAt,
	); err != nil {
		span.Error("could not record fulfilled authorization", err)
		return err
	}

	span.Debug("recorded fulfilled authorization")

	return nil
}

// WasMessageCollected returns true if the given message has already been
// collected from the peer.
func (l *Ledger) WasMessageCollected(ctx context.Context, k MessageKey) (bool, error) {
	name := collectedKeyspace(k.PeerID)

	ks, err := l.Keyspaces.Open(ctx, name)
	if err != nil {
		return false, fmt.Errorf("unable to open %s keyspace: %w", name, err)
	}
	defer ks.Close()

	return ks.Has(ctx, messageKey(k))
}

// RecordMessageCollected records that the given message has been collected from
// the peer. The record is retained until expiresAt.
func (l *Ledger) RecordMessageCollected(ctx context.Context, k MessageKey, expiresAt time.Time) error {
	ctx, span := l.recorder().StartSpan(
		ctx,
		"ledger.record-message",
		telemetry.String("peer.id", k.PeerID),
		telemetry.String("message.sender", k.SenderID),
		telemetry.String("message.recipient", k.RecipientID),
		telemetry.String("message.id", k.MessageID),
	)
	defer span.End()

	name := collectedKeyspace(k.PeerID)

	ks, err := l.Keyspaces.Open(ctx, name)
	if err != nil {
		span.Error("could not open keyspace", err)
		return fmt.Errorf("unable to open %s keyspace: %w", name, err)
	}
	defer ks.Close()

	if err := ks.Set(ctx, messageKey(k), marshalExpiry(expiresAt), expiresAt); err != nil {
		span.Error("could not record collected message", err)
		return err
	}

	span.Debug("recorded collected message")

	return nil
}

// GenerateAcknowledgments calls fn with a parcel collection acknowledgment for
// each unexpired message collected from the peer.
func (l *Ledger) GenerateAcknowledgments(
	ctx context.Context,
	peerID string,
	fn func(context.Context, Acknowledgment) error,
) error {
	name := collectedKeyspace(peerID)

	ks, err := l.Keyspaces.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("unable to open %s keyspace: %w", name, err)
	}
	defer ks.Close()

	return ks.Range(
		ctx,
		func(ctx context.Context, k, v []byte) (bool, error) {
			parts := strings.Split(string(k), keySeparator)
			if len(parts) != 3 {
				return false, fmt.Errorf("malformed collected message key %q", k)
			}

			expiresAt, err := unmarshalExpiry(v)
			if err != nil {
				return false, err
			}

			ack := Acknowledgment{
				ExpiryDate: expiresAt,
				Payload: l.Codec.SerializeParcelCollectionAck(
					relaynet.ParcelCollectionAck{
						SenderEndpointAddress:    parts[0],
						RecipientEndpointAddress: parts[1],
						ParcelID:                 parts[2],
					},
				),
			}

			return true, fn(ctx, ack)
		},
	)
}

func (l *Ledger) recorder() *telemetry.Recorder {
	return l.Telemetry.Recorder(
		"github.com/relaynet/gateway/internal/ledger",
		"ledger",
	)
}

func authorizationKey(peerID, authorizationID string) []byte {
	return []byte(peerID + keySeparator + authorizationID)
}

func messageKey(k MessageKey) []byte {
	return []byte(k.SenderID + keySeparator + k.RecipientID + keySeparator + k.MessageID)
}

func marshalExpiry(t time.Time) []byte {
	data, err := proto.Marshal(timestamppb.New(t))
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshalExpiry(data []byte) (time.Time, error) {
	var ts timestamppb.Timestamp
	if err := proto.Unmarshal(data, &ts); err != nil {
		return time.Time{}, fmt.Errorf("malformed expiry: %w", err)
	}
	return ts.AsTime(), nil
}
