package relaynet

import (
	"context"
	"time"
)

// Certificate is a node certificate.
type Certificate interface {
	// PrivateAddress returns the private address of the certificate's subject.
	PrivateAddress() string

	// ExpiryDate returns the time at which the certificate stops being valid.
	ExpiryDate() time.Time

	// Serialize returns the binary representation of the certificate.
	Serialize() []byte
}

// CertificateStore provides the certificates that the gateway trusts as
// issuers of its peers' certificates.
type CertificateStore interface {
	// TrustedCertificates returns the gateway's own, currently valid identity
	// certificates.
	TrustedCertificates(ctx context.Context) ([]Certificate, error)
}

// CertificateIssuer issues certificates on behalf of the gateway.
type CertificateIssuer interface {
	// RotateCertificate issues a successor to the given peer certificate and
	// returns a serialized certificate rotation message that can be included
	// in cargo bound for that peer.
	RotateCertificate(ctx context.Context, peer Certificate) ([]byte, error)
}

// MinCertificateValidity is the minimum length of time that a peer's
// certificate must remain valid before the gateway issues a successor.
const MinCertificateValidity = 90 * 24 * time.Hour

// NeedsRotation returns true if c expires within [MinCertificateValidity] of
// now.
func NeedsRotation(c Certificate, now time.Time) bool {
	return c.ExpiryDate().Before(now.Add(MinCertificateValidity))
}
