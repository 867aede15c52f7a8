package relaynet

import (
	"context"
	"time"
)

// CargoCodec parses, verifies and produces cargo.
type CargoCodec interface {
	// ParseCargo parses serialized cargo.
	ParseCargo(data []byte) (Cargo, error)

	// VerifyCargo returns an error if c is invalid or was not sent by a peer
	// whose certificate was issued by one of the trusted certificates.
	VerifyCargo(ctx context.Context, c Cargo, trusted []Certificate) error

	// UnwrapCargo decrypts the cargo and returns its serialized message set.
	UnwrapCargo(ctx context.Context, c Cargo) ([]byte, error)

	// SealCargo encrypts and signs a serialized message set, producing
	// serialized cargo bound for the holder of recipient.
	SealCargo(
		ctx context.Context,
		recipient Certificate,
		messageSet []byte,
		expiresAt time.Time,
	) ([]byte, error)
}

// ParcelCodec parses and verifies parcels and parcel collection
// acknowledgments.
type ParcelCodec interface {
	// ParseParcel parses a serialized parcel.
	ParseParcel(data []byte) (Parcel, error)

	// VerifyParcel verifies the parcel and returns its certification path,
	// starting with the sender's certificate and ending with the trust anchor.
	//
	// If trusted is empty the parcel is verified on its own, without
	// requiring a certification path to a trusted certificate.
	VerifyParcel(ctx context.Context, p Parcel, trusted []Certificate) ([]Certificate, error)

	// ParseParcelCollectionAck parses a serialized parcel collection
	// acknowledgment.
	ParseParcelCollectionAck(data []byte) (ParcelCollectionAck, error)

	// SerializeParcelCollectionAck serializes a parcel collection
	// acknowledgment.
	SerializeParcelCollectionAck(ack ParcelCollectionAck) []byte
}

// CollectionAuthorizationCodec parses and unwraps cargo collection
// authorizations.
type CollectionAuthorizationCodec interface {
	// ParseCollectionAuthorization parses a serialized CCA.
	ParseCollectionAuthorization(data []byte) (CollectionAuthorization, error)

	// VerifyCollectionAuthorization returns an error if a has expired or was
	// not issued by a peer whose certificate was issued by one of the trusted
	// certificates.
	VerifyCollectionAuthorization(ctx context.Context, a CollectionAuthorization, trusted []Certificate) error

	// UnwrapCollectionRequest decrypts the request within a CCA using the
	// gateway's key material.
	UnwrapCollectionRequest(ctx context.Context, a CollectionAuthorization) (CollectionRequest, error)
}

// MessageClassifier determines the type of messages within a cargo message set.
type MessageClassifier interface {
	ClassifyMessage(data []byte) MessageType
}

// Codec is the complete set of message format operations used by the gateway.
type Codec interface {
	CargoCodec
	ParcelCodec
	CollectionAuthorizationCodec
	MessageClassifier
}
