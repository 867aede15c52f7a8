// Package delivery delivers queued parcels to endpoints on the Internet.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/relaynet/gateway/internal/messagebus"
	"github.com/relaynet/gateway/internal/parcelstore"
	"github.com/relaynet/gateway/internal/pohttp"
	"github.com/relaynet/gateway/internal/telemetry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// MaxDeliveryAttempts is the number of times delivery of a parcel is attempted
// before it is discarded.
const MaxDeliveryAttempts = 3

// Deliverer delivers a serialized parcel to an Internet endpoint.
//
// It is implemented by [pohttp.Client].
type Deliverer interface {
	Deliver(ctx context.Context, recipientURL string, parcel []byte) error
}

// Worker consumes the outbound parcel queues and delivers each parcel to its
// recipient.
type Worker struct {
	Bus       *messagebus.Bus
	Parcels   *parcelstore.Repository
	Deliverer Deliverer
	Telemetry *telemetry.Provider

	// Limiter, if non-nil, limits the rate at which deliveries are attempted.
	Limiter *rate.Limiter

	// Now returns the current time. If it is nil, [time.Now] is used.
	Now func() time.Time

	// inflight serializes deliveries across the outbound and retry channels.
	inflight sync.Mutex
}

// Run delivers parcels until ctx is canceled or an unexpected error occurs.
//
// Parcels from the outbound and retry channels are delivered one at a time.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, ch := range []string{
		parcelstore.OutboundChannel,
		parcelstore.OutboundRetryChannel,
	} {
		ch := ch
		g.Go(func() error {
			return w.consume(ctx, ch)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

func (w *Worker) consume(ctx context.Context, channel string) error {
	client := w.Bus.NewClient("internet-delivery")
	defer client.Disconnect() // nolint:errcheck

	return client.Consume(
		ctx,
		channel,
		"worker",
		"worker",
		func(ctx context.Context, m *messagebus.Message) error {
			return w.handle(ctx, channel, m)
		},
	)
}

func (w *Worker) handle(ctx context.Context, channel string, m *messagebus.Message) error {
	w.inflight.Lock()
	defer w.inflight.Unlock()

	ctx, span := w.recorder().StartSpan(
		ctx,
		"delivery.handle",
		telemetry.String("channel", channel),
		telemetry.Int("bus.sequence", m.Sequence),
	)
	defer span.End()

	qm, err := parcelstore.UnmarshalQueuedMessage(m.Data)
	if err != nil {
		span.Warn("dropping malformed queued message", telemetry.String("error", err.Error()))
		return m.Ack()
	}

	span.SetAttributes(
		telemetry.String("parcel.key", qm.ParcelObjectKey),
		telemetry.String("parcel.recipient", qm.ParcelRecipientAddress),
		telemetry.Int("delivery.attempts", qm.DeliveryAttempts),
	)

	if !parcelstore.IsEndpointBoundKey(qm.ParcelObjectKey) {
		span.Warn("dropping queued message that does not refer to an endpoint-bound parcel")
		return m.Ack()
	}

	if !qm.ParcelExpiryDate.After(w.now()) {
		span.Info("discarding expired parcel")
		return w.discard(ctx, m, qm)
	}

	parcel, ok, err := w.Parcels.RetrieveEndpointBound(ctx, qm.ParcelObjectKey)
	if err != nil {
		return fmt.Errorf("unable to retrieve parcel %q: %w", qm.ParcelObjectKey, err)
	}
	if !ok {
		span.Info("skipping parcel that no longer exists")
		return m.Ack()
	}

	if w.Limiter != nil {
		if err := w.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	err = w.Deliverer.Deliver(ctx, qm.ParcelRecipientAddress, parcel)

	var (
		invalid   pohttp.InvalidParcelError
		binding   pohttp.BindingError
		transient pohttp.TransientError
	)

	switch {
	case err == nil:
		span.Info("delivered parcel")
		return w.discard(ctx, m, qm)

	case errors.As(err, &invalid), errors.As(err, &binding):
		span.Warn("parcel was rejected by its recipient", telemetry.String("error", err.Error()))
		return w.discard(ctx, m, qm)

	case errors.As(err, &transient):
		qm.DeliveryAttempts++

		if qm.DeliveryAttempts >= MaxDeliveryAttempts {
			span.Warn(
				"giving up on parcel delivery",
				telemetry.String("error", err.Error()),
				telemetry.Int("delivery.max_attempts", MaxDeliveryAttempts),
			)
			return w.discard(ctx, m, qm)
		}

		span.Info(
			"parcel delivery failed, will retry",
			telemetry.String("error", err.Error()),
		)
		return w.retry(ctx, m, qm)

	default:
		return fmt.Errorf("unable to deliver parcel %q: %w", qm.ParcelObjectKey, err)
	}
}

// discard deletes the parcel and acknowledges its queued message.
func (w *Worker) discard(ctx context.Context, m *messagebus.Message, qm parcelstore.QueuedMessage) error {
	if err := w.Parcels.DeleteEndpointBound(ctx, qm.ParcelObjectKey); err != nil {
		return err
	}
	return m.Ack()
}

// retry queues the parcel on the retry channel and acknowledges the original
// message.
func (w *Worker) retry(ctx context.Context, m *messagebus.Message, qm parcelstore.QueuedMessage) error {
	data, err := parcelstore.MarshalQueuedMessage(qm)
	if err != nil {
		return err
	}

	if err := w.Bus.PublishOne(ctx, parcelstore.OutboundRetryChannel, data); err != nil {
		return fmt.Errorf("unable to queue parcel for retry: %w", err)
	}

	return m.Ack()
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Worker) recorder() *telemetry.Recorder {
	return w.Telemetry.Recorder(
		"github.com/relaynet/gateway/internal/delivery",
		"delivery",
	)
}
