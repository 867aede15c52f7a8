package instrumentedpersistence

import (
	"context"
	"fmt"
	"time"

	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/persistence/kv"
)

// KeyValueStore is a decorator that adds instrumentation to a [kv.Store].
//
// If the underlying store implements [kv.Purger] then so does the decorator.
type KeyValueStore struct {
	Next      kv.Store
	Telemetry *telemetry.Provider
}

var _ kv.Purger = (*KeyValueStore)(nil)

// Open returns the keyspace with the given name.
func (s *KeyValueStore) Open(ctx context.Context, name string) (kv.Keyspace, error) {
	r := s.Telemetry.Recorder(
		"github.com/relaynet/gateway/persistence",
		"keyspace",
		telemetry.String("store", fmt.Sprintf("%T", s.Next)),
		telemetry.String("handle", handleID()),
		telemetry.String("name", name),
	)

	ctx, span := r.StartSpan(ctx, "keyspace.open")
	defer span.End()

	next, err := s.Next.Open(ctx, name)
	if err != nil {
		span.Error("could not open keyspace", err)
		return nil, err
	}

	ks := &keyspace{
		Next:      next,
		Telemetry: r,
		OpenCount: r.UpDownCounter("open", "{keyspace}", "The number of keyspaces that are currently open."),
		DataIO:    r.Counter("io", "By", "The cumulative size of the keys and values that have been read and written."),
		PairIO:    r.Counter("pair.io", "{pair}", "The number of key/value pairs that have been read and written."),
		ValueSize: r.Histogram("value.size", "By", "The sizes of the values that have been read and written."),
	}

	ks.OpenCount(ctx, 1)
	span.Debug("opened keyspace")

	return ks, nil
}

// Purge removes expired key/value pairs from the underlying store, if it
// supports purging.
func (s *KeyValueStore) Purge(ctx context.Context) (int, error) {
	p, ok := s.Next.(kv.Purger)
	if !ok {
		return 0, nil
	}

	r := s.Telemetry.Recorder(
		"github.com/relaynet/gateway/persistence",
		"keyspace",
		telemetry.String("store", fmt.Sprintf("%T", s.Next)),
	)

	ctx, span := r.StartSpan(ctx, "keyspace.purge")
	defer span.End()

	n, err := p.Purge(ctx)
	if err != nil {
		span.Error("could not purge expired key/value pairs", err)
		return n, err
	}

	span.SetAttributes(telemetry.Int("pairs_purged", n))
	span.Debug("purged expired key/value pairs")

	return n, nil
}

type keyspace struct {
	Next      kv.Keyspace
	Telemetry *telemetry.Recorder

	OpenCount telemetry.Instrument[int64]
	DataIO    telemetry.Instrument[int64]
	PairIO    telemetry.Instrument[int64]
	ValueSize telemetry.Instrument[int64]
}

func (ks *keyspace) Get(ctx context.Context, k []byte) ([]byte, error) {
	ctx, span := ks.Telemetry.StartSpan(
		ctx,
		"keyspace.get",
		telemetry.If(isShortASCII(k), telemetry.String("key", string(k))),
		telemetry.Int("key_size", len(k)),
	)
	defer span.End()

	v, err := ks.Next.Get(ctx, k)
	if err != nil {
		span.Error("could not fetch value", err)
		return nil, err
	}

	span.SetAttributes(
		telemetry.Int("value_size", len(v)),
	)

	ks.PairIO(ctx, 1, telemetry.ReadDirection)
	ks.DataIO(ctx, int64(len(v)), telemetry.ReadDirection)
	ks.ValueSize(ctx, int64(len(v)), telemetry.ReadDirection)

	span.Debug("fetched value")

	return v, nil
}

func (ks *keyspace) Has(ctx context.Context, k []byte) (bool, error) {
	ctx, span := ks.Telemetry.StartSpan(
		ctx,
		"keyspace.has",
		telemetry.If(isShortASCII(k), telemetry.String("key", string(k))),
		telemetry.Int("key_size", len(k)),
	)
	defer span.End()

	ok, err := ks.Next.Has(ctx, k)
	if err != nil {
		span.Error("could not check for presence of key", err)
		return false, err
	}

	span.SetAttributes(
		telemetry.Bool("key_present", ok),
	)

	ks.PairIO(ctx, 1, telemetry.ReadDirection)
	span.Debug("checked for presence of key")

	return ok, nil
}

func (ks *keyspace) Set(ctx context.Context, k, v []byte, expiresAt time.Time) error {
	ctx, span := ks.Telemetry.StartSpan(
		ctx,
		"keyspace.set",
		telemetry.If(isShortASCII(k), telemetry.String("key", string(k))),
		telemetry.Int("key_size", len(k)),
		telemetry.Int("value_size", len(v)),
		telemetry.If(!expiresAt.IsZero(), telemetry.Time("expires_at", expiresAt)),
	)
	defer span.End()

	ks.DataIO(ctx, int64(len(k)+len(v)), telemetry.WriteDirection)
	ks.PairIO(ctx, 1, telemetry.WriteDirection)
	ks.ValueSize(ctx, int64(len(v)), telemetry.WriteDirection)

	if err := ks.Next.Set(ctx, k, v, expiresAt); err != nil {
		span.Error("could not set key/value pair", err)
		return err
	}

	if len(v) == 0 {
		span.Debug("deleted key/value pair")
	} else {
		span.Debug("set key/value pair")
	}

	return nil
}

func (ks *keyspace) Range(ctx context.Context, fn kv.RangeFunc) error {
	ctx, span := ks.Telemetry.StartSpan(ctx, "keyspace.range")
	defer span.End()

	var (
		count     int
		totalSize int
		brokeLoop bool
	)

	span.Debug("reading key/value pairs")

	err := ks.Next.Range(
		ctx,
		func(ctx context.Context, k, v []byte) (bool, error) {
			count++
			totalSize += len(k) + len(v)

			ks.DataIO(ctx, int64(len(k)+len(v)), telemetry.ReadDirection)
			ks.PairIO(ctx, 1, telemetry.ReadDirection)

			ok, err := fn(ctx, k, v)
			if ok || err != nil {
				return ok, err
			}

			brokeLoop = true
			return false, nil
		},
	)

	span.SetAttributes(
		telemetry.Int("pairs_read", count),
		telemetry.Int("bytes_read", totalSize),
		telemetry.Bool("reached_end", !brokeLoop && err == nil),
	)

	if err != nil {
		span.Error("could not read key/value pairs", err)
		return err
	}

	span.Debug("completed reading key/value pairs")

	return nil
}

func (ks *keyspace) Close() error {
	ctx, span := ks.Telemetry.StartSpan(context.Background(), "keyspace.close")
	defer span.End()

	if ks.Next == nil {
		span.Warn("keyspace is already closed")
		return nil
	}

	defer func() {
		ks.Next = nil
		ks.OpenCount(ctx, -1)
	}()

	if err := ks.Next.Close(); err != nil {
		span.Error("could not close keyspace", err)
		return err
	}

	span.Debug("closed keyspace")

	return nil
}
