package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"
)

// Span represents a single named and timed operation of a workflow.
type Span struct {
	recorder *Recorder
	ctx      context.Context
	span     trace.Span
	logger   *slog.Logger
}

// StartSpan starts a new span.
func (r *Recorder) StartSpan(
	ctx context.Context,
	name string,
	attrs ...Attr,
) (context.Context, *Span) {
	ctx, span := r.tracer.Start(
		ctx,
		name,
		trace.WithAttributes(asAttrKeyValues(attrs)...),
	)

	logger := r.logger.With(slog.String("span_name", name))
	for _, a := range asSlogAttrs(attrs) {
		logger = logger.With(a)
	}

	if sctx := span.SpanContext(); sctx.HasSpanID() {
		logger = logger.With(
			slog.String("trace_id", sctx.TraceID().String()),
			slog.String("span_id", sctx.SpanID().String()),
		)
	}

	return ctx, &Span{r, ctx, span, logger}
}

// End completes the span.
func (s *Span) End() {
	s.span.End()
}

// SetAttributes sets attributes on the span. They are also included in any
// subsequent log events.
func (s *Span) SetAttributes(attrs ...Attr) {
	s.span.SetAttributes(asAttrKeyValues(attrs)...)

	for _, a := range asSlogAttrs(attrs) {
		s.logger = s.logger.With(a)
	}
}

// Debug logs a debug-level event.
func (s *Span) Debug(message string, attrs ...Attr) {
	s.log(slog.LevelDebug, message, attrs)
}

// Info logs an info-level event.
func (s *Span) Info(message string, attrs ...Attr) {
	s.log(slog.LevelInfo, message, attrs)
}

// Warn logs a warning-level event.
func (s *Span) Warn(message string, attrs ...Attr) {
	s.log(slog.LevelWarn, message, attrs)
}

// Error logs an error-level event.
//
// It marks the span as an error and increments the "errors" metric.
func (s *Span) Error(message string, err error, attrs ...Attr) {
	s.span.SetStatus(codes.Error, err.Error())
	s.span.RecordError(err, trace.WithAttributes(asAttrKeyValues(attrs)...))
	s.recorder.errorCount(s.ctx, 1)

	if !s.logger.Enabled(s.ctx, slog.LevelError) {
		return
	}

	s.logger.LogAttrs(
		s.ctx,
		slog.LevelError,
		message,
		asSlogAttrs(attrs, slog.String("error", err.Error()))...,
	)
}

func (s *Span) log(level slog.Level, message string, attrs []Attr) {
	if !s.logger.Enabled(s.ctx, level) {
		return
	}

	s.span.AddEvent(message, trace.WithAttributes(asAttrKeyValues(attrs)...))
	s.logger.LogAttrs(s.ctx, level, message, asSlogAttrs(attrs)...)
}
