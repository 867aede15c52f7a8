package parcelstore

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// QueuedMessage is the envelope queued on [OutboundChannel] and
// [OutboundRetryChannel] for each parcel awaiting delivery to the Internet.
type QueuedMessage struct {
	ParcelObjectKey        string    `json:"parcelObjectKey"`
	ParcelRecipientAddress string    `json:"parcelRecipientAddress"`
	ParcelExpiryDate       time.Time `json:"parcelExpiryDate"`
	DeliveryAttempts       int       `json:"deliveryAttempts"`
}

// MarshalQueuedMessage returns the JSON representation of m.
func MarshalQueuedMessage(m QueuedMessage) ([]byte, error) {
	m.ParcelExpiryDate = m.ParcelExpiryDate.UTC()
	return json.Marshal(m)
}

// UnmarshalQueuedMessage parses the JSON representation of a queued message.
func UnmarshalQueuedMessage(data []byte) (QueuedMessage, error) {
	var m QueuedMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return QueuedMessage{}, fmt.Errorf("malformed queued message: %w", err)
	}

	if m.ParcelObjectKey == "" {
		return QueuedMessage{}, fmt.Errorf("malformed queued message: missing parcel object key")
	}

	return m, nil
}
