// Package observe provides application-wide observability primitives for
// kurogo: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all kurogo metrics.
const meterName = "github.com/kurogo-live/kurogo"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// AgentDuration tracks agent generation latency.
	AgentDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// ASRDuration tracks speech recognition latency per utterance.
	ASRDuration metric.Float64Histogram

	// --- Counters ---

	// FramesEmitted counts outbound frames by kind.
	FramesEmitted metric.Int64Counter

	// FramesDropped counts frames dropped under backpressure, by kind.
	FramesDropped metric.Int64Counter

	// ChatMessages counts ingested chat messages by platform and outcome.
	ChatMessages metric.Int64Counter

	// AutonomousTicks counts autonomous scheduler dispatches by status.
	AutonomousTicks metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live renderer sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for generation and synthesis latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AgentDuration, err = m.Float64Histogram("kurogo.agent.duration",
		metric.WithDescription("Latency of agent text generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("kurogo.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ASRDuration, err = m.Float64Histogram("kurogo.asr.duration",
		metric.WithDescription("Latency of speech recognition per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesEmitted, err = m.Int64Counter("kurogo.frames.emitted",
		metric.WithDescription("Total outbound frames by kind."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("kurogo.frames.dropped",
		metric.WithDescription("Total frames dropped under backpressure, by kind."),
	); err != nil {
		return nil, err
	}
	if met.ChatMessages, err = m.Int64Counter("kurogo.chat.messages",
		metric.WithDescription("Total ingested chat messages by platform and outcome."),
	); err != nil {
		return nil, err
	}
	if met.AutonomousTicks, err = m.Int64Counter("kurogo.autonomous.ticks",
		metric.WithDescription("Total autonomous dispatches by status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("kurogo.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("kurogo.active_sessions",
		metric.WithDescription("Number of live renderer sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("kurogo.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
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

// RecordChatMessage records one ingested chat message with its pipeline
// outcome.
func (m *Metrics) RecordChatMessage(ctx context.Context, platform, outcome string) {
	m.ChatMessages.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("platform", platform),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordFrameEmitted records one outbound frame.
func (m *Metrics) RecordFrameEmitted(ctx context.Context, kind string) {
	m.FramesEmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordFrameDropped records one frame dropped under backpressure.
func (m *Metrics) RecordFrameDropped(ctx context.Context, kind string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordProviderError records one provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
