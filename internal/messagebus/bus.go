package messagebus

import (
	"context"

	"github.com/google/uuid"
	"github.com/relaynet/gateway/internal/telemetry"
)

// Bus creates clients that share the same broker.
type Bus struct {
	Connector Connector

	// ClientIDPrefix is prepended to the ID of every client created by the
	// bus.
	ClientIDPrefix string

	Telemetry *telemetry.Provider
}

// NewClient returns a new client with a unique client ID.
//
// name identifies the purpose of the client, and is included in its ID.
func (b *Bus) NewClient(name string) *Client {
	id := name + "-" + uuid.NewString()
	if b.ClientIDPrefix != "" {
		id = b.ClientIDPrefix + "-" + id
	}

	return &Client{
		Connector: b.Connector,
		ClientID:  id,
		Telemetry: b.Telemetry,
	}
}

// PublishOne publishes a single message to channel using a dedicated
// connection.
func (b *Bus) PublishOne(ctx context.Context, channel string, data []byte) error {
	sent := false

	return b.NewClient("publisher").Publish(
		ctx,
		channel,
		func(context.Context) (OutgoingMessage, bool, error) {
			if sent {
				return OutgoingMessage{}, false, nil
			}
			sent = true
			return OutgoingMessage{ID: "single", Data: data}, true, nil
		},
		func(context.Context, string) error {
			return nil
		},
	)
}
