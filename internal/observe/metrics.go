// Package observe provides application-wide observability primitives for
// dictato: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed to
// Prometheus through the exporter bridge set up by [InitProvider]. Packages
// that accept a nil *Metrics fall back to [DefaultMetrics]; tests should use
// [NewMetrics] with a ManualReader-backed provider to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all dictato metrics.
const meterName = "github.com/MrWong99/dictato"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// GlossaryRules tracks the number of rules currently held by the glossary.
	GlossaryRules metric.Int64UpDownCounter

	// Substitutions counts individual replacements made during process passes.
	Substitutions metric.Int64Counter

	// RuleSkips counts rules skipped because their key could not be compiled.
	RuleSkips metric.Int64Counter

	// PersistenceErrors counts failed glossary loads and saves. Use with
	// attribute.String("op", "load"|"save").
	PersistenceErrors metric.Int64Counter

	// ProcessDuration tracks the latency of one full glossary pass.
	ProcessDuration metric.Float64Histogram

	// CorrectionDuration tracks the latency of the transcript correction
	// pipeline (glossary + phonetic stages).
	CorrectionDuration metric.Float64Histogram

	// RewriteDuration tracks AI rewrite latency. Use with
	// attribute.String("status", "ok"|"error").
	RewriteDuration metric.Float64Histogram

	// Segments counts transcript segments received over dictation sessions.
	// Use with attribute.Bool("final", ...).
	Segments metric.Int64Counter

	// ActiveSessions tracks the number of open dictation WebSocket sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Glossary passes are
// in-process and sub-millisecond; rewrites go over the network.
var latencyBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Glossary.
	if met.GlossaryRules, err = m.Int64UpDownCounter("dictato.glossary.rules",
		metric.WithDescription("Number of substitution rules in the glossary."),
	); err != nil {
		return nil, err
	}
	if met.Substitutions, err = m.Int64Counter("dictato.glossary.substitutions",
		metric.WithDescription("Replacements made by glossary rules while processing text."),
	); err != nil {
		return nil, err
	}
	if met.RuleSkips, err = m.Int64Counter("dictato.glossary.rule_skips",
		metric.WithDescription("Rules skipped because their match key failed to compile."),
	); err != nil {
		return nil, err
	}
	if met.PersistenceErrors, err = m.Int64Counter("dictato.glossary.persistence_errors",
		metric.WithDescription("Glossary load and save failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.ProcessDuration, err = m.Float64Histogram("dictato.glossary.process.duration",
		metric.WithDescription("Latency of a full glossary substitution pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Transcript pipeline and rewrite.
	if met.CorrectionDuration, err = m.Float64Histogram("dictato.transcript.correction.duration",
		metric.WithDescription("Latency of the transcript correction pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RewriteDuration, err = m.Float64Histogram("dictato.rewrite.duration",
		metric.WithDescription("Latency of AI-assisted rewrites by status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Dictation sessions.
	if met.Segments, err = m.Int64Counter("dictato.dictation.segments",
		metric.WithDescription("Transcript segments received from dictation sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("dictato.dictation.active_sessions",
		metric.WithDescription("Number of open dictation sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("dictato.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordPersistenceError increments the persistence error counter for op.
func (m *Metrics) RecordPersistenceError(ctx context.Context, op string) {
	m.PersistenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordRewrite records one rewrite call's latency with its outcome.
func (m *Metrics) RecordRewrite(ctx context.Context, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RewriteDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordSegment increments the dictation segment counter.
func (m *Metrics) RecordSegment(ctx context.Context, final bool) {
	m.Segments.Add(ctx, 1, metric.WithAttributes(attribute.Bool("final", final)))
}
