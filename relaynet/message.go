package relaynet

import (
	"strings"
	"time"
)

// Cargo is a signed, encrypted envelope exchanged between gateways.
type Cargo struct {
	ID                string
	RecipientAddress  string
	SenderCertificate Certificate
	ExpiryDate        time.Time

	// Payload is the encrypted message set, only meaningful to the codec that
	// parsed the cargo.
	Payload []byte
}

// SenderAddress returns the private address of the gateway that sent the
// cargo.
func (c Cargo) SenderAddress() string {
	return c.SenderCertificate.PrivateAddress()
}

// Parcel is an individual message exchanged between endpoints.
type Parcel struct {
	ID                string
	RecipientAddress  string
	SenderCertificate Certificate
	ExpiryDate        time.Time
}

// SenderAddress returns the private address of the endpoint that sent the
// parcel.
func (p Parcel) SenderAddress() string {
	return p.SenderCertificate.PrivateAddress()
}

// IsGatewayBound returns true if the parcel's recipient is an endpoint behind
// one of the gateway's peers, as opposed to an endpoint on the Internet.
func (p Parcel) IsGatewayBound() bool {
	return IsPrivateAddress(p.RecipientAddress)
}

// IsPrivateAddress returns true if addr is a private node address.
//
// Public addresses are URLs, and hence always include a scheme.
func IsPrivateAddress(addr string) bool {
	return !strings.Contains(addr, "://")
}

// ParcelCollectionAck is an acknowledgment that a parcel has been collected by
// the gateway, sent back to the peer from which the parcel was collected.
type ParcelCollectionAck struct {
	SenderEndpointAddress    string
	RecipientEndpointAddress string
	ParcelID                 string
}

// CollectionAuthorization is a cargo collection authorization (CCA), a
// time-boxed token presented by a peer to collect its cargo.
type CollectionAuthorization struct {
	ID                string
	RecipientAddress  string
	SenderCertificate Certificate
	ExpiryDate        time.Time

	// Payload is the encrypted collection request.
	Payload []byte
}

// SenderAddress returns the private address of the peer that issued the
// authorization.
func (a CollectionAuthorization) SenderAddress() string {
	return a.SenderCertificate.PrivateAddress()
}

// CollectionRequest is the request encapsulated within a
// [CollectionAuthorization].
type CollectionRequest struct {
	// DeliveryAuthorization is the certificate that the gateway must use to
	// seal cargo bound for the peer.
	DeliveryAuthorization Certificate
}

// MessageType is the type of a message within a cargo message set.
type MessageType int

const (
	// UnknownMessage is a message that the codec could not classify.
	UnknownMessage MessageType = iota

	// ParcelMessage is a serialized [Parcel].
	ParcelMessage

	// ParcelCollectionAckMessage is a serialized [ParcelCollectionAck].
	ParcelCollectionAckMessage

	// CertificateRotationMessage is a certificate rotation issued by a peer.
	CertificateRotationMessage
)

func (t MessageType) String() string {
	switch t {
	case ParcelMessage:
		return "parcel"
	case ParcelCollectionAckMessage:
		return "parcel-collection-ack"
	case CertificateRotationMessage:
		return "certificate-rotation"
	default:
		return "unknown"
	}
}
