package ledger_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/relaynet/gateway/internal/ledger"
	"github.com/relaynet/gateway/internal/test"
)

type purgerStub struct {
	calls atomic.Int64
}

func (p *purgerStub) Purge(context.Context) (int, error) {
	p.calls.Add(1)
	return 0, nil
}

func TestReaper(t *testing.T) {
	t.Run("it purges expired records at each interval", func(t *testing.T) {
		purger := &purgerStub{}

		reaper := &Reaper{
			Purger:    purger,
			Interval:  5 * time.Millisecond,
			Telemetry: test.NewTelemetryProvider(t),
		}

		task := test.
			RunInBackground(t, reaper.Run).
			UntilStopped()

		deadline := time.Now().Add(5 * time.Second)
		for purger.calls.Load() < 3 {
			if time.Now().After(deadline) {
				t.Fatal("reaper did not purge repeatedly")
			}
			time.Sleep(time.Millisecond)
		}

		task.StopAndWait()
	})
}
