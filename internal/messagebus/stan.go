package messagebus

import (
	"context"
	"fmt"

	"github.com/nats-io/stan.go"
)

// STANConnector is a [Connector] for NATS Streaming servers.
type STANConnector struct {
	ServerURL string
	ClusterID string

	// Options is a set of additional options to apply to each connection.
	Options []stan.Option
}

// Connect returns a new connection identified by clientID.
func (c *STANConnector) Connect(ctx context.Context, clientID string, lost func(error)) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := append(
		[]stan.Option{
			stan.NatsURL(c.ServerURL),
			stan.SetConnectionLostHandler(
				func(_ stan.Conn, err error) {
					lost(err)
				},
			),
		},
		c.Options...,
	)

	sc, err := stan.Connect(c.ClusterID, clientID, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS Streaming cluster %q at %s: %w", c.ClusterID, c.ServerURL, err)
	}

	return &stanConn{sc}, nil
}

type stanConn struct {
	sc stan.Conn
}

func (c *stanConn) Publish(channel string, data []byte) error {
	return c.sc.Publish(channel, data)
}

func (c *stanConn) Subscribe(
	channel, queue string,
	opts SubscriptionOptions,
	fn func(*Message),
) (Subscription, error) {
	options := []stan.SubscriptionOption{
		stan.DurableName(opts.DurableName),
		stan.SetManualAckMode(),
	}

	if opts.AckWait > 0 {
		options = append(options, stan.AckWait(opts.AckWait))
	}

	if opts.MaxInFlight > 0 {
		options = append(options, stan.MaxInflight(opts.MaxInFlight))
	}

	if opts.DeliverAllAvailable {
		options = append(options, stan.DeliverAllAvailable())
	}

	sub, err := c.sc.QueueSubscribe(
		channel,
		queue,
		func(m *stan.Msg) {
			fn(NewMessage(m.Sequence, m.Subject, m.Data, m.Ack))
		},
		options...,
	)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (c *stanConn) Close() error {
	return c.sc.Close()
}
