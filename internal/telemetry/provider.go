package telemetry

import (
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Provider provides Recorder instances scoped to particular subsystems.
//
// The zero value of a *Provider is equivalent to a provider configured with
// no-op tracer and meter providers and a logger that discards all output.
type Provider struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Logger         *slog.Logger
	Attrs          []Attr
}

// Recorder records traces, metrics and logs for a particular subsystem.
type Recorder struct {
	name    string
	tracer  trace.Tracer
	meter   metric.Meter
	logger  *slog.Logger
	attrSet attribute.Set

	errorCount Instrument[int64]
}

// Recorder returns a new Recorder instance.
//
// pkg is the path of the Go package performing the recording. name is the
// name of the subsystem, which is used as a prefix for all metric names.
func (p *Provider) Recorder(pkg, name string, attrs ...Attr) *Recorder {
	var (
		tracerProvider trace.TracerProvider
		meterProvider  metric.MeterProvider
		logger         *slog.Logger
	)

	if p != nil {
		tracerProvider = p.TracerProvider
		meterProvider = p.MeterProvider
		logger = p.Logger

		attrs = append(
			slices.Clone(p.Attrs),
			attrs...,
		)
	}

	if tracerProvider == nil {
		tracerProvider = nooptrace.NewTracerProvider()
	}

	if meterProvider == nil {
		meterProvider = noopmetric.NewMeterProvider()
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	kvs := asAttrKeyValues(attrs)

	r := &Recorder{
		name:    name,
		tracer:  tracerProvider.Tracer(pkg, tracerVersion),
		meter:   meterProvider.Meter(pkg, meterVersion),
		logger:  logger.With(slog.String("subsystem", name)),
		attrSet: attribute.NewSet(kvs...),
	}

	for _, a := range asSlogAttrs(attrs) {
		r.logger = r.logger.With(a)
	}

	r.errorCount = r.Counter("errors", "{error}", "The number of errors that have occurred.")

	return r
}
