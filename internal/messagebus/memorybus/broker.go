// Package memorybus is an in-process implementation of the message bus
// broker.
//
// It supports the subset of durable subscription semantics used by the
// gateway: durable cursors that survive subscriber disconnection, manual
// acknowledgment, one message in flight per durable cursor, and redelivery
// after the acknowledgment timeout. Messages are retained forever.
package memorybus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relaynet/gateway/internal/messagebus"
	"golang.org/x/exp/slices"
)

// Broker is an in-memory [messagebus.Connector].
type Broker struct {
	// BeforePublish, if non-nil, is called before each message is published.
	// If it returns an error the message is not published and the error is
	// returned to the publisher.
	BeforePublish func(channel string, data []byte) error

	// BeforeConnect, if non-nil, is called before each connection is
	// established. If it returns an error the connection fails.
	BeforeConnect func(clientID string) error

	m        sync.Mutex
	channels map[string]*channel
	conns    map[*conn]struct{}
}

var _ messagebus.Connector = (*Broker)(nil)

type channel struct {
	messages [][]byte
	durables map[string]*cursor

	// changed is closed and replaced whenever a message is published or a
	// cursor is released.
	changed chan struct{}
}

type cursor struct {
	next    int
	claimed bool
}

// Connect returns a new connection to the broker.
func (b *Broker) Connect(ctx context.Context, clientID string, lost func(error)) (messagebus.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if b.BeforeConnect != nil {
		if err := b.BeforeConnect(clientID); err != nil {
			return nil, err
		}
	}

	c := &conn{
		broker: b,
		lost:   lost,
	}

	b.m.Lock()
	defer b.m.Unlock()

	if b.conns == nil {
		b.conns = map[*conn]struct{}{}
	}
	b.conns[c] = struct{}{}

	return c, nil
}

// Messages returns the messages that have been published to the named
// channel, in order.
func (b *Broker) Messages(name string) [][]byte {
	b.m.Lock()
	defer b.m.Unlock()

	if ch, ok := b.channels[name]; ok {
		return slices.Clone(ch.messages)
	}

	return nil
}

// DropConnections simulates the loss of every open connection.
func (b *Broker) DropConnections(err error) {
	b.m.Lock()
	conns := b.conns
	b.conns = nil
	b.m.Unlock()

	for c := range conns {
		c.close()
		c.lost(err)
	}
}

// channelLocked returns the named channel, creating it if necessary.
//
// b.m must be held.
func (b *Broker) channelLocked(name string) *channel {
	if b.channels == nil {
		b.channels = map[string]*channel{}
	}

	ch, ok := b.channels[name]
	if !ok {
		ch = &channel{
			durables: map[string]*cursor{},
			changed:  make(chan struct{}),
		}
		b.channels[name] = ch
	}

	return ch
}

func (ch *channel) notifyLocked() {
	close(ch.changed)
	ch.changed = make(chan struct{})
}

type conn struct {
	broker *Broker
	lost   func(error)

	m      sync.Mutex
	closed bool
	subs   []*subscription
}

var errClosed = errors.New("connection is closed")

func (c *conn) Publish(name string, data []byte) error {
	c.m.Lock()
	closed := c.closed
	c.m.Unlock()

	if closed {
		return errClosed
	}

	b := c.broker

	if b.BeforePublish != nil {
		if err := b.BeforePublish(name, data); err != nil {
			return err
		}
	}

	b.m.Lock()
	defer b.m.Unlock()

	ch := b.channelLocked(name)
	ch.messages = append(ch.messages, slices.Clone(data))
	ch.notifyLocked()

	return nil
}

func (c *conn) Subscribe(
	name, queue string,
	opts messagebus.SubscriptionOptions,
	fn func(*messagebus.Message),
) (messagebus.Subscription, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return nil, errClosed
	}

	b := c.broker
	b.m.Lock()
	ch := b.channelLocked(name)
	key := queue + "/" + opts.DurableName
	cur, ok := ch.durables[key]
	if !ok {
		cur = &cursor{}
		if !opts.DeliverAllAvailable {
			cur.next = len(ch.messages)
		}
		ch.durables[key] = cur
	}
	b.m.Unlock()

	ackWait := opts.AckWait
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}

	s := &subscription{
		broker:  b,
		name:    name,
		channel: ch,
		cursor:  cur,
		ackWait: ackWait,
		fn:      fn,
		closed:  make(chan struct{}),
	}

	c.subs = append(c.subs, s)
	go s.run()

	return s, nil
}

func (c *conn) Close() error {
	c.broker.m.Lock()
	delete(c.broker.conns, c)
	c.broker.m.Unlock()

	c.close()

	return nil
}

func (c *conn) close() {
	c.m.Lock()
	defer c.m.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	for _, s := range c.subs {
		s.Close() // nolint:errcheck
	}
}

type subscription struct {
	broker  *Broker
	name    string
	channel *channel
	cursor  *cursor
	ackWait time.Duration
	fn      func(*messagebus.Message)

	once   sync.Once
	closed chan struct{}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.closed)
	})
	return nil
}

// run delivers messages to the subscriber until the subscription is closed.
func (s *subscription) run() {
	for {
		index, data, changed, ok := s.claim()

		if !ok {
			select {
			case <-changed:
				continue
			case <-s.closed:
				return
			}
		}

		acked := make(chan struct{})
		var once sync.Once

		msg := messagebus.NewMessage(
			uint64(index)+1,
			s.name,
			data,
			func() error {
				once.Do(func() {
					s.advance(index)
					close(acked)
				})
				return nil
			},
		)

		s.fn(msg)

		timer := time.NewTimer(s.ackWait)

		select {
		case <-acked:
			timer.Stop()
		case <-timer.C:
			s.release(index)
		case <-s.closed:
			timer.Stop()
			s.release(index)
			return
		}
	}
}

// claim reserves the next message for delivery. If there is no message
// available it returns a channel that is closed when that may have changed.
func (s *subscription) claim() (int, []byte, <-chan struct{}, bool) {
	s.broker.m.Lock()
	defer s.broker.m.Unlock()

	if s.cursor.claimed || s.cursor.next >= len(s.channel.messages) {
		return 0, nil, s.channel.changed, false
	}

	s.cursor.claimed = true
	index := s.cursor.next

	return index, slices.Clone(s.channel.messages[index]), nil, true
}

func (s *subscription) advance(index int) {
	s.broker.m.Lock()
	defer s.broker.m.Unlock()

	if s.cursor.next == index {
		s.cursor.next++
		s.cursor.claimed = false
		s.channel.notifyLocked()
	}
}

func (s *subscription) release(index int) {
	s.broker.m.Lock()
	defer s.broker.m.Unlock()

	if s.cursor.next == index && s.cursor.claimed {
		s.cursor.claimed = false
		s.channel.notifyLocked()
	}
}
