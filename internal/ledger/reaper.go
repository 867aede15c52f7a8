package ledger

import (
	"context"
	"time"

	"github.com/relaynet/gateway/internal/telemetry"
	"github.com/relaynet/gateway/persistence/kv"
)

// DefaultReapInterval is the default interval at which expired ledger records
// are purged.
const DefaultReapInterval = time.Hour

// Reaper periodically purges expired records from the ledger's keyspaces.
//
// Reads already ignore expired records. The reaper exists to reclaim storage
// in backends that lack native time-to-live support.
type Reaper struct {
	Purger    kv.Purger
	Interval  time.Duration
	Telemetry *telemetry.Provider
}

// Run purges expired records until ctx is canceled.
//
// A failure to purge is logged and retried at the next interval.
func (r *Reaper) Run(ctx context.Context) error {
	rec := r.Telemetry.Recorder(
		"github.com/relaynet/gateway/internal/ledger",
		"reaper",
	)

	interval := r.Interval
	if interval <= 0 {
		interval = DefaultReapInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.reap(ctx, rec)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reaper) reap(ctx context.Context, rec *telemetry.Recorder) {
	ctx, span := rec.StartSpan(ctx, "ledger.reap")
	defer span.End()

	n, err := r.Purger.Purge(ctx)
	if err != nil {
		if ctx.Err() == nil {
			span.Error("could not purge expired ledger records", err)
		}
		return
	}

	span.Debug("purged expired ledger records", telemetry.Int("records", n))
}
