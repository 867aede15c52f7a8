package messagebus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/relaynet/gateway/internal/telemetry"
)

const (
	// AckWait is the time after which a message that has been delivered to a
	// consumer but not acknowledged is redelivered.
	AckWait = 5 * time.Second

	// MaxConnectAttempts is the number of times a client attempts to connect
	// to the broker before giving up.
	MaxConnectAttempts = 5
)

// OutgoingMessage is a message to be published.
type OutgoingMessage struct {
	// ID identifies the message to the caller. It is not sent to the broker.
	ID   string
	Data []byte
}

// Source is a function that produces the messages to publish, one at a time.
//
// It returns false when there are no more messages.
type Source func(ctx context.Context) (OutgoingMessage, bool, error)

// Client is a client of a durable publish/subscribe broker.
//
// The connection is established lazily by the first operation that needs it
// and reused by subsequent operations until [Client.Disconnect] is called.
type Client struct {
	Connector Connector
	ClientID  string
	Telemetry *telemetry.Provider

	m       sync.Mutex
	pending *pendingConn
}

// pendingConn is a connection that may still be being established.
type pendingConn struct {
	ready chan struct{}
	conn  Conn
	err   error
	lost  chan error
}

// Connect establishes a connection to the broker, or returns immediately if
// the client is already connected.
//
// All concurrent callers wait for the same connection attempt.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connect(ctx)
	return err
}

func (c *Client) connect(ctx context.Context) (*pendingConn, error) {
	c.m.Lock()
	p := c.pending
	if p == nil {
		p = &pendingConn{
			ready: make(chan struct{}),
			lost:  make(chan error, 1),
		}
		c.pending = p
		go c.dial(p)
	}
	c.m.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ready:
	}

	if p.err != nil {
		c.m.Lock()
		if c.pending == p {
			c.pending = nil
		}
		c.m.Unlock()

		return nil, p.err
	}

	return p, nil
}

// dial attempts to connect to the broker, retrying with an exponential
// backoff.
//
// It deliberately does not use the context of the caller that triggered the
// connection, as other callers may be waiting on the same attempt.
func (c *Client) dial(p *pendingConn) {
	defer close(p.ready)

	r := c.Telemetry.Recorder(
		"github.com/relaynet/gateway/internal/messagebus",
		"messagebus",
		telemetry.String("client.id", c.ClientID),
	)

	ctx, span := r.StartSpan(context.Background(), "messagebus.connect")
	defer span.End()

	delay := backoff.NewExponentialBackOff()
	delay.InitialInterval = 100 * time.Millisecond
	delay.MaxInterval = 2 * time.Second

	lost := func(err error) {
		select {
		case p.lost <- err:
		default:
		}
	}

	for attempt := 1; ; attempt++ {
		p.conn, p.err = c.Connector.Connect(ctx, c.ClientID, lost)
		if p.err == nil {
			span.Debug("connected to broker", telemetry.Int("attempt", attempt))
			return
		}

		if attempt == MaxConnectAttempts {
			span.Error("could not connect to broker", p.err, telemetry.Int("attempt", attempt))
			return
		}

		d := delay.NextBackOff()
		if d == backoff.Stop {
			d = delay.MaxInterval
		}

		span.Warn(
			"could not connect to broker, retrying",
			telemetry.Int("attempt", attempt),
			telemetry.Duration("retry_in", d),
			telemetry.String("error", p.err.Error()),
		)

		time.Sleep(d)
	}
}

// Disconnect closes the connection to the broker, if any.
//
// It is safe to call Disconnect whether or not a connection was ever
// established, and to call it more than once.
func (c *Client) Disconnect() error {
	c.m.Lock()
	p := c.pending
	c.pending = nil
	c.m.Unlock()

	if p == nil {
		return nil
	}

	<-p.ready

	if p.err != nil {
		return nil
	}

	return p.conn.Close()
}

// Publish publishes the messages produced by src to channel, strictly in
// order.
//
// Each message is published synchronously. fn is called with the ID of each
// message once the broker has acknowledged it, before the next message is
// produced. Publishing stops at the first failure.
//
// The client is disconnected before Publish returns, regardless of outcome.
func (c *Client) Publish(
	ctx context.Context,
	channel string,
	src Source,
	fn func(ctx context.Context, id string) error,
) (err error) {
	defer func() {
		if e := c.Disconnect(); err == nil {
			err = e
		}
	}()

	p, err := c.connect(ctx)
	if err != nil {
		return err
	}

	for {
		m, ok, err := src(ctx)
		if !ok || err != nil {
			return err
		}

		if err := p.conn.Publish(channel, m.Data); err != nil {
			return fmt.Errorf("unable to publish message %q to %q: %w", m.ID, channel, err)
		}

		if err := fn(ctx, m.ID); err != nil {
			return err
		}
	}
}

// Consume starts a durable queue subscription to channel and calls fn for each
// message, one at a time.
//
// fn is responsible for acknowledging each message. Messages are redelivered
// if they are not acknowledged within [AckWait].
//
// Consume returns nil when ctx is canceled. The subscription is closed, but
// not unsubscribed, so that its position is preserved for the next consumer
// with the same durable name.
func (c *Client) Consume(
	ctx context.Context,
	channel, queue, durable string,
	fn func(ctx context.Context, m *Message) error,
) error {
	if ctx.Err() != nil {
		return nil
	}

	p, err := c.connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	messages := make(chan *Message)
	done := make(chan struct{})

	sub, err := p.conn.Subscribe(
		channel,
		queue,
		SubscriptionOptions{
			DurableName:         durable,
			AckWait:             AckWait,
			MaxInFlight:         1,
			DeliverAllAvailable: true,
		},
		func(m *Message) {
			select {
			case messages <- m:
			case <-done:
			}
		},
	)
	if err != nil {
		return fmt.Errorf("unable to subscribe to %q: %w", channel, err)
	}
	defer sub.Close()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-p.lost:
			if err == nil {
				err = errors.New("connection lost")
			}
			return fmt.Errorf("subscription to %q failed: %w", channel, err)

		case m := <-messages:
			if ctx.Err() != nil {
				return nil
			}

			if err := fn(ctx, m); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
