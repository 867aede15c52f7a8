package test

import (
	"bytes"

	"github.com/relaynet/gateway/internal/telemetry"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/exp/slog"
)

// NewTelemetryProvider returns a new telemetry provider for use in tests.
//
// Log output is written to the test's log.
func NewTelemetryProvider(t TestingT) *telemetry.Provider {
	t.Helper()

	return &telemetry.Provider{
		TracerProvider: nooptrace.NewTracerProvider(),
		MeterProvider:  noopmetric.NewMeterProvider(),
		Logger: slog.New(
			slog.NewTextHandler(
				&testWriter{t},
				&slog.HandlerOptions{Level: slog.LevelDebug},
			),
		),
	}
}

type testWriter struct {
	t TestingT
}

func (w *testWriter) Write(data []byte) (int, error) {
	w.t.Log(string(bytes.TrimRight(data, "\n")))
	return len(data), nil
}
