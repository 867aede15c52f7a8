package relaynettest

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/relaynet/gateway/relaynet"
)

// Certificate is a [relaynet.Certificate] whose serialization is plain JSON.
//
// It carries no key material. It exists so that the gateway can be exercised
// without a real PKI.
type Certificate struct {
	Address string    `json:"address"`
	Issuer  string    `json:"issuer,omitempty"`
	Expiry  time.Time `json:"expiry"`

	// Chain contains the certificates of the issuers of this certificate, in
	// order of increasing distance from this certificate.
	Chain []*Certificate `json:"chain,omitempty"`
}

var _ relaynet.Certificate = (*Certificate)(nil)

// NewCertificate returns a certificate for the given address.
//
// If issuer is nil the certificate is self-issued.
func NewCertificate(address string, issuer *Certificate, expiresAt time.Time) *Certificate {
	c := &Certificate{
		Address: address,
		Expiry:  expiresAt.UTC().Truncate(time.Second),
	}

	if issuer != nil {
		c.Issuer = issuer.Address
		c.Chain = append([]*Certificate{issuer}, issuer.Chain...)
	}

	return c
}

// PrivateAddress returns the private address of the certificate's subject.
func (c *Certificate) PrivateAddress() string {
	return c.Address
}

// ExpiryDate returns the time at which the certificate stops being valid.
func (c *Certificate) ExpiryDate() time.Time {
	return c.Expiry
}

// Serialize returns the JSON representation of the certificate.
func (c *Certificate) Serialize() []byte {
	data, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	return data
}
