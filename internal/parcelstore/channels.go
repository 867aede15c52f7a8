package parcelstore

const (
	// CargoChannel is the channel on which cargo received from peers is
	// queued for unpacking.
	CargoChannel = "crc-cargo"

	// OutboundChannel is the channel on which parcels bound for endpoints on
	// the Internet are queued for delivery.
	OutboundChannel = "internet-parcels"

	// OutboundRetryChannel is the channel on which parcels whose delivery
	// failed transiently are queued for another attempt.
	OutboundRetryChannel = OutboundChannel + ".retry"
)

// PeerChannel returns the channel on which the keys of newly stored parcels
// bound for the given peer are published.
func PeerChannel(peerID string) string {
	return "pdc-parcel." + peerID
}
