package relaynettest

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/relaynet/gateway/relaynet"
)

const (
	cargoType    = "cargo"
	parcelType   = "parcel"
	pcaType      = "pca"
	ccaType      = "cca"
	rotationType = "certificate-rotation"
)

// envelope is the JSON representation of every message type.
type envelope struct {
	Type      string       `json:"type"`
	ID        string       `json:"id,omitempty"`
	Recipient string       `json:"recipient,omitempty"`
	Sender    *Certificate `json:"sender,omitempty"`
	Expiry    time.Time    `json:"expiry,omitempty"`
	Payload   []byte       `json:"payload,omitempty"`

	SenderEndpoint    string `json:"senderEndpoint,omitempty"`
	RecipientEndpoint string `json:"recipientEndpoint,omitempty"`
	ParcelID          string `json:"parcelId,omitempty"`

	DeliveryAuthorization *Certificate `json:"deliveryAuthorization,omitempty"`
	Certificate           *Certificate `json:"certificate,omitempty"`
}

func marshal(env envelope) []byte {
	data, err := json.Marshal(env)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data []byte, typ string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("malformed %s: %w", typ, err)
	}

	if env.Type != typ {
		return envelope{}, fmt.Errorf("malformed %s: unexpected type %q", typ, env.Type)
	}

	if env.Sender == nil && (typ == cargoType || typ == parcelType || typ == ccaType) {
		return envelope{}, fmt.Errorf("malformed %s: missing sender certificate", typ)
	}

	return env, nil
}

func certificateOf(c relaynet.Certificate) *Certificate {
	if c == nil {
		return nil
	}

	if x, ok := c.(*Certificate); ok {
		return x
	}

	panic(fmt.Sprintf("unsupported certificate type %T", c))
}

// SerializeCargo returns the JSON representation of c.
//
// The sender certificate must be a [*Certificate].
func SerializeCargo(c relaynet.Cargo) []byte {
	return marshal(envelope{
		Type:      cargoType,
		ID:        c.ID,
		Recipient: c.RecipientAddress,
		Sender:    certificateOf(c.SenderCertificate),
		Expiry:    c.ExpiryDate.UTC(),
		Payload:   c.Payload,
	})
}

// SerializeParcel returns the JSON representation of p.
//
// The sender certificate must be a [*Certificate].
func SerializeParcel(p relaynet.Parcel) []byte {
	return marshal(envelope{
		Type:      parcelType,
		ID:        p.ID,
		Recipient: p.RecipientAddress,
		Sender:    certificateOf(p.SenderCertificate),
		Expiry:    p.ExpiryDate.UTC(),
	})
}

// SerializeCollectionAuthorization returns the JSON representation of a CCA
// that encapsulates a collection request for the given delivery authorization.
//
// The sender certificate and cda must be [*Certificate] values.
func SerializeCollectionAuthorization(
	a relaynet.CollectionAuthorization,
	cda relaynet.Certificate,
) []byte {
	return marshal(envelope{
		Type:                  ccaType,
		ID:                    a.ID,
		Recipient:             a.RecipientAddress,
		Sender:                certificateOf(a.SenderCertificate),
		Expiry:                a.ExpiryDate.UTC(),
		DeliveryAuthorization: certificateOf(cda),
	})
}

// ParseCertificateRotation parses a certificate rotation message produced by
// [Codec.RotateCertificate].
func ParseCertificateRotation(data []byte) (*Certificate, error) {
	env, err := unmarshal(data, rotationType)
	if err != nil {
		return nil, err
	}

	if env.Certificate == nil {
		return nil, fmt.Errorf("malformed %s: missing certificate", rotationType)
	}

	return env.Certificate, nil
}
