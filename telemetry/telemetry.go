// Package telemetry defines the small logging, tracing, and metrics
// interfaces shared by every other package in the platform. Concrete
// implementations (noop, Clue-backed) live alongside the interfaces so
// callers never depend on a specific backend.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger is the structured logging contract used throughout the
	// kernel, plugin host, middleware pipeline, and orchestrator.
	// Implementations are expected to treat keyvals as alternating
	// key/value pairs.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics exposes counter, timer, and gauge helpers for runtime
	// instrumentation.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer abstracts span creation so callers remain agnostic of the
	// underlying OpenTelemetry provider.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	}

	// Span represents an in-flight tracing span.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, keyvals ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}
)

type (
	noopLogger  struct{}
	noopMetrics struct{}
	noopTracer  struct{}
	noopSpan    struct{}
)

// NewNoopLogger returns a Logger that discards everything. It is the
// default used by every constructor in this platform when no logger is
// supplied.
func NewNoopLogger() Logger { return noopLogger{} }

// NewNoopMetrics returns a Metrics recorder that discards everything.
func NewNoopMetrics() Metrics { return noopMetrics{} }

// NewNoopTracer returns a Tracer that produces spans which record
// nothing and never sample.
func NewNoopTracer() Tracer { return noopTracer{} }

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}

func (noopMetrics) IncCounter(string, float64, ...string)        {}
func (noopMetrics) RecordTimer(string, time.Duration, ...string) {}
func (noopMetrics) RecordGauge(string, float64, ...string)       {}

func (noopTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) End(...trace.SpanEndOption)              {}
func (noopSpan) AddEvent(string, ...any)                 {}
func (noopSpan) SetStatus(codes.Code, string)            {}
func (noopSpan) RecordError(error, ...trace.EventOption) {}

// PrefixLogger decorates a Logger so every message it emits is prefixed,
// matching the Plugin Host's namespaced-logger requirement:
// every plugin receives a logger whose messages are prefixed with
// "[pluginId]".
type PrefixLogger struct {
	Prefix string
	Next   Logger
}

// NewPrefixLogger returns a Logger that prepends "[prefix] " to every
// message before delegating to next. A nil next falls back to a noop
// logger.
func NewPrefixLogger(prefix string, next Logger) Logger {
	if next == nil {
		next = NewNoopLogger()
	}
	return &PrefixLogger{Prefix: prefix, Next: next}
}

func (l *PrefixLogger) decorate(msg string) string {
	return "[" + l.Prefix + "] " + msg
}

func (l *PrefixLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	l.Next.Debug(ctx, l.decorate(msg), keyvals...)
}

func (l *PrefixLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	l.Next.Info(ctx, l.decorate(msg), keyvals...)
}

func (l *PrefixLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	l.Next.Warn(ctx, l.decorate(msg), keyvals...)
}

func (l *PrefixLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	l.Next.Error(ctx, l.decorate(msg), keyvals...)
}
