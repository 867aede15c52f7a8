package relaynettest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/relaynet/gateway/relaynet"
)

// Codec is an insecure implementation of [relaynet.Codec] that uses plain JSON
// and performs no cryptography.
//
// It also implements [relaynet.CertificateStore] and
// [relaynet.CertificateIssuer] on behalf of the gateway identified by
// Identity.
type Codec struct {
	// Identity is the gateway's own certificate.
	Identity *Certificate

	// Now returns the current time. If it is nil, [time.Now] is used.
	Now func() time.Time
}

var (
	_ relaynet.Codec             = (*Codec)(nil)
	_ relaynet.CertificateStore  = (*Codec)(nil)
	_ relaynet.CertificateIssuer = (*Codec)(nil)
)

// RotatedCertificateValidity is the validity period of the certificates issued
// by [Codec.RotateCertificate].
const RotatedCertificateValidity = 180 * 24 * time.Hour

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// ParseCargo parses serialized cargo.
func (c *Codec) ParseCargo(data []byte) (relaynet.Cargo, error) {
	env, err := unmarshal(data, cargoType)
	if err != nil {
		return relaynet.Cargo{}, err
	}

	return relaynet.Cargo{
		ID:                env.ID,
		RecipientAddress:  env.Recipient,
		SenderCertificate: env.Sender,
		ExpiryDate:        env.Expiry,
		Payload:           env.Payload,
	}, nil
}

// VerifyCargo returns an error if the cargo has expired or its sender's
// certificate was not issued by one of the trusted certificates.
func (c *Codec) VerifyCargo(ctx context.Context, cargo relaynet.Cargo, trusted []relaynet.Certificate) error {
	if !cargo.ExpiryDate.After(c.now()) {
		return errors.New("cargo has expired")
	}

	_, err := c.certificationPath(certificateOf(cargo.SenderCertificate), trusted)
	return err
}

// UnwrapCargo returns the cargo's message set, which is not encrypted.
func (c *Codec) UnwrapCargo(ctx context.Context, cargo relaynet.Cargo) ([]byte, error) {
	if cargo.RecipientAddress != c.Identity.Address {
		return nil, fmt.Errorf("cargo is addressed to %q, not this gateway", cargo.RecipientAddress)
	}
	return cargo.Payload, nil
}

// SealCargo produces cargo bound for the holder of recipient.
func (c *Codec) SealCargo(
	ctx context.Context,
	recipient relaynet.Certificate,
	messageSet []byte,
	expiresAt time.Time,
) ([]byte, error) {
	return SerializeCargo(relaynet.Cargo{
		ID:                uuid.NewString(),
		RecipientAddress:  recipient.PrivateAddress(),
		SenderCertificate: c.Identity,
		ExpiryDate:        expiresAt,
		Payload:           messageSet,
	}), nil
}

// ParseParcel parses a serialized parcel.
func (c *Codec) ParseParcel(data []byte) (relaynet.Parcel, error) {
	env, err := unmarshal(data, parcelType)
	if err != nil {
		return relaynet.Parcel{}, err
	}

	return relaynet.Parcel{
		ID:                env.ID,
		RecipientAddress:  env.Recipient,
		SenderCertificate: env.Sender,
		ExpiryDate:        env.Expiry,
	}, nil
}

// VerifyParcel verifies the parcel and returns its certification path.
func (c *Codec) VerifyParcel(
	ctx context.Context,
	p relaynet.Parcel,
	trusted []relaynet.Certificate,
) ([]relaynet.Certificate, error) {
	if !p.ExpiryDate.After(c.now()) {
		return nil, errors.New("parcel has expired")
	}

	sender := certificateOf(p.SenderCertificate)

	if len(trusted) == 0 {
		if !sender.Expiry.After(c.now()) {
			return nil, errors.New("sender certificate has expired")
		}
		return []relaynet.Certificate{sender}, nil
	}

	return c.certificationPath(sender, trusted)
}

// ParseParcelCollectionAck parses a serialized parcel collection
// acknowledgment.
func (c *Codec) ParseParcelCollectionAck(data []byte) (relaynet.ParcelCollectionAck, error) {
	env, err := unmarshal(data, pcaType)
	if err != nil {
		return relaynet.ParcelCollectionAck{}, err
	}

	return relaynet.ParcelCollectionAck{
		SenderEndpointAddress:    env.SenderEndpoint,
		RecipientEndpointAddress: env.RecipientEndpoint,
		ParcelID:                 env.ParcelID,
	}, nil
}

// SerializeParcelCollectionAck serializes a parcel collection acknowledgment.
func (c *Codec) SerializeParcelCollectionAck(ack relaynet.ParcelCollectionAck) []byte {
	return marshal(envelope{
		Type:              pcaType,
		SenderEndpoint:    ack.SenderEndpointAddress,
		RecipientEndpoint: ack.RecipientEndpointAddress,
		ParcelID:          ack.ParcelID,
	})
}

// ParseCollectionAuthorization parses a serialized CCA.
func (c *Codec) ParseCollectionAuthorization(data []byte) (relaynet.CollectionAuthorization, error) {
	env, err := unmarshal(data, ccaType)
	if err != nil {
		return relaynet.CollectionAuthorization{}, err
	}

	var payload []byte
	if env.DeliveryAuthorization != nil {
		payload = env.DeliveryAuthorization.Serialize()
	}

	return relaynet.CollectionAuthorization{
		ID:                env.ID,
		RecipientAddress:  env.Recipient,
		SenderCertificate: env.Sender,
		ExpiryDate:        env.Expiry,
		Payload:           payload,
	}, nil
}

// VerifyCollectionAuthorization returns an error if the CCA has expired or its
// sender's certificate was not issued by one of the trusted certificates.
func (c *Codec) VerifyCollectionAuthorization(
	ctx context.Context,
	a relaynet.CollectionAuthorization,
	trusted []relaynet.Certificate,
) error {
	if !a.ExpiryDate.After(c.now()) {
		return errors.New("collection authorization has expired")
	}

	_, err := c.certificationPath(certificateOf(a.SenderCertificate), trusted)
	return err
}

// UnwrapCollectionRequest returns the collection request within a CCA.
func (c *Codec) UnwrapCollectionRequest(
	ctx context.Context,
	a relaynet.CollectionAuthorization,
) (relaynet.CollectionRequest, error) {
	if len(a.Payload) == 0 {
		return relaynet.CollectionRequest{}, errors.New("collection request is empty")
	}

	var cda Certificate
	if err := json.Unmarshal(a.Payload, &cda); err != nil {
		return relaynet.CollectionRequest{}, fmt.Errorf("malformed collection request: %w", err)
	}

	if cda.Issuer != a.SenderAddress() {
		return relaynet.CollectionRequest{}, errors.New("delivery authorization was not issued by the CCA sender")
	}

	return relaynet.CollectionRequest{
		DeliveryAuthorization: &cda,
	}, nil
}

// ClassifyMessage returns the type of a message within a cargo message set.
func (c *Codec) ClassifyMessage(data []byte) relaynet.MessageType {
	var env struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(data, &env); err != nil {
		return relaynet.UnknownMessage
	}

	switch env.Type {
	case parcelType:
		return relaynet.ParcelMessage
	case pcaType:
		return relaynet.ParcelCollectionAckMessage
	case rotationType:
		return relaynet.CertificateRotationMessage
	default:
		return relaynet.UnknownMessage
	}
}

// TrustedCertificates returns the gateway's own certificate.
func (c *Codec) TrustedCertificates(ctx context.Context) ([]relaynet.Certificate, error) {
	return []relaynet.Certificate{c.Identity}, ctx.Err()
}

// RotateCertificate issues a successor to the given peer certificate.
func (c *Codec) RotateCertificate(ctx context.Context, peer relaynet.Certificate) ([]byte, error) {
	successor := NewCertificate(
		peer.PrivateAddress(),
		c.Identity,
		c.now().Add(RotatedCertificateValidity),
	)

	return marshal(envelope{
		Type:        rotationType,
		Certificate: successor,
	}), ctx.Err()
}

// certificationPath returns the path from leaf to one of the trusted
// certificates.
func (c *Codec) certificationPath(
	leaf *Certificate,
	trusted []relaynet.Certificate,
) ([]relaynet.Certificate, error) {
	if !leaf.Expiry.After(c.now()) {
		return nil, errors.New("sender certificate has expired")
	}

	path := []relaynet.Certificate{leaf}
	current := leaf

	for len(path) <= len(leaf.Chain)+1 {
		for _, t := range trusted {
			if t.PrivateAddress() == current.Issuer {
				return append(path, t), nil
			}
		}

		var next *Certificate
		for _, candidate := range leaf.Chain {
			if candidate.Address == current.Issuer {
				next = candidate
				break
			}
		}

		if next == nil {
			break
		}

		path = append(path, next)
		current = next
	}

	return nil, fmt.Errorf("no certification path from %q to a trusted certificate", leaf.Address)
}
