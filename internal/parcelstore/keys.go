package parcelstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const (
	gatewayBoundPrefix  = "parcels/gateway-bound/"
	endpointBoundPrefix = "parcels/endpoint-bound/"
)

// GatewayBoundKey returns the object key of a parcel bound for an endpoint
// behind the given peer.
//
// The key is deterministic, so storing the same parcel twice overwrites the
// original object. The components are joined verbatim so that the key always
// falls under the peer's prefix.
func GatewayBoundKey(peerID, recipientID, senderID, messageID string) string {
	digest := sha256.Sum256([]byte(messageID))

	return gatewayBoundPrefix + strings.Join(
		[]string{
			peerID,
			recipientID,
			senderID,
			hex.EncodeToString(digest[:]),
		},
		"/",
	)
}

// gatewayBoundPeerPrefix returns the prefix shared by the keys of all parcels
// bound for endpoints behind the given peer.
func gatewayBoundPeerPrefix(peerID string) string {
	return gatewayBoundPrefix + peerID + "/"
}

// newEndpointBoundKey returns a new, unique object key for a parcel collected
// from the given peer and bound for an endpoint on the Internet.
func newEndpointBoundKey(peerID, senderID string) string {
	return endpointBoundPrefix + strings.Join(
		[]string{
			peerID,
			senderID,
			uuid.NewString(),
		},
		"/",
	)
}

// IsEndpointBoundKey returns true if key is the key of a parcel bound for an
// endpoint on the Internet.
func IsEndpointBoundKey(key string) bool {
	return strings.HasPrefix(key, endpointBoundPrefix)
}
