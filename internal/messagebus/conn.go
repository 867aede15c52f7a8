package messagebus

import (
	"context"
	"time"
)

// Message is a message received from a durable subscription.
//
// It must be acknowledged by calling [Message.Ack] once its side effects have
// been durably applied, otherwise the broker redelivers it after the
// subscription's acknowledgment timeout elapses.
type Message struct {
	Sequence uint64
	Channel  string
	Data     []byte

	ack func() error
}

// NewMessage returns a new message that calls ack when it is acknowledged.
//
// It is intended for use by [Connector] implementations.
func NewMessage(seq uint64, channel string, data []byte, ack func() error) *Message {
	return &Message{
		Sequence: seq,
		Channel:  channel,
		Data:     data,
		ack:      ack,
	}
}

// Ack acknowledges the message.
func (m *Message) Ack() error {
	return m.ack()
}

// SubscriptionOptions configures a durable subscription.
type SubscriptionOptions struct {
	// DurableName is the name of the broker-persisted cursor.
	DurableName string

	// AckWait is the time after which an unacknowledged message is
	// redelivered.
	AckWait time.Duration

	// MaxInFlight is the maximum number of unacknowledged messages that are
	// delivered to the subscriber at once.
	MaxInFlight int

	// DeliverAllAvailable starts a new durable subscription at the oldest
	// message available on the channel.
	DeliverAllAvailable bool
}

// Conn is a connection to a durable publish/subscribe broker.
type Conn interface {
	// Publish publishes data to a channel and blocks until the broker
	// acknowledges it.
	Publish(channel string, data []byte) error

	// Subscribe starts a durable, manually-acknowledged queue subscription.
	//
	// fn is called for each message, never concurrently.
	Subscribe(
		channel, queue string,
		opts SubscriptionOptions,
		fn func(*Message),
	) (Subscription, error)

	// Close closes the connection.
	Close() error
}

// Subscription is a durable subscription to a channel.
type Subscription interface {
	// Close stops delivery of messages to the subscriber while preserving the
	// durable cursor, so that a later subscription with the same durable name
	// resumes where this one left off.
	Close() error
}

// Connector establishes connections to a broker.
type Connector interface {
	// Connect returns a new connection identified by clientID.
	//
	// lost is called if the connection is lost after it has been established.
	Connect(ctx context.Context, clientID string, lost func(error)) (Conn, error)
}
