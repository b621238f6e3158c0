// Package observe provides application-wide observability primitives for
// Herald: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Herald metrics.
const meterName = "github.com/novakeep/herald"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// BrainDuration tracks brain completion stream latency (start to close).
	BrainDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// PipelineDuration tracks utterance-finalized to first-audio latency.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts finalized utterances by disposition. Use with:
	//   attribute.String("disposition", "dispatched"|"rejected"|"dropped"|"stop"|"wake_only")
	Utterances metric.Int64Counter

	// Tasks counts finished tasks by outcome. Use with:
	//   attribute.String("outcome", "completed"|"aborted"|"failed")
	Tasks metric.Int64Counter

	// Sentences counts emitted reply sentences by route. Use with:
	//   attribute.String("route", "voice"|"handoff")
	Sentences metric.Int64Counter

	// Alerts counts received alerts. Use with:
	//   attribute.String("priority", "urgent"|"normal")
	Alerts metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveTasks tracks the number of in-flight brain tasks.
	ActiveTasks metric.Int64UpDownCounter

	// QueueDepth tracks the number of segments waiting in the playback queue.
	QueueDepth metric.Int64UpDownCounter

	// InboxDepth tracks the number of alerts waiting in the inbox.
	InboxDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
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
	if met.STTDuration, err = m.Float64Histogram("herald.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BrainDuration, err = m.Float64Histogram("herald.brain.duration",
		metric.WithDescription("Latency of brain completion streams."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("herald.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("herald.pipeline.duration",
		metric.WithDescription("Utterance-finalized to first-audio latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("herald.utterances",
		metric.WithDescription("Total finalized utterances by disposition."),
	); err != nil {
		return nil, err
	}
	if met.Tasks, err = m.Int64Counter("herald.tasks",
		metric.WithDescription("Total finished tasks by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Sentences, err = m.Int64Counter("herald.sentences",
		metric.WithDescription("Total emitted reply sentences by route."),
	); err != nil {
		return nil, err
	}
	if met.Alerts, err = m.Int64Counter("herald.alerts",
		metric.WithDescription("Total received alerts by priority."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("herald.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("herald.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTasks, err = m.Int64UpDownCounter("herald.active_tasks",
		metric.WithDescription("Number of in-flight brain tasks."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("herald.queue_depth",
		metric.WithDescription("Number of segments waiting in the playback queue."),
	); err != nil {
		return nil, err
	}
	if met.InboxDepth, err = m.Int64UpDownCounter("herald.inbox_depth",
		metric.WithDescription("Number of alerts waiting in the inbox."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("herald.http.request.duration",
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordUtterance records one finalized utterance with its disposition.
func (m *Metrics) RecordUtterance(ctx context.Context, disposition string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("disposition", disposition)),
	)
}

// RecordTask records one finished task with its outcome.
func (m *Metrics) RecordTask(ctx context.Context, outcome string) {
	m.Tasks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordSentence records one emitted reply sentence with its route.
func (m *Metrics) RecordSentence(ctx context.Context, route string) {
	m.Sentences.Add(ctx, 1,
		metric.WithAttributes(attribute.String("route", route)),
	)
}

// RecordAlert records one received alert with its priority.
func (m *Metrics) RecordAlert(ctx context.Context, priority string) {
	m.Alerts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("priority", priority)),
	)
}
