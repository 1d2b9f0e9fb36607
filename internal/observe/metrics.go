// Package observe provides application-wide observability primitives for
// Vaani: OpenTelemetry metrics, tracing, and HTTP middleware tying them
// together.
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

// meterName is the instrumentation scope name used for all Vaani metrics.
const meterName = "github.com/vaanibank/vaani"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// AssistantDuration tracks one assistant endpoint round trip as observed
	// by the dialog core.
	AssistantDuration metric.Float64Histogram

	// CaptureDuration tracks how long a speech capture was active before it
	// produced an utterance or gave up.
	CaptureDuration metric.Float64Histogram

	// ClassifyDuration tracks NLU intent classification latency.
	ClassifyDuration metric.Float64Histogram

	// Intents counts classified intents. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("status", ...)
	Intents metric.Int64Counter

	// Transfers counts executed money transfers by status.
	Transfers metric.Int64Counter

	// ClassifierErrors counts NLU classifier failures by classifier name.
	ClassifierErrors metric.Int64Counter

	// ActiveDialogs tracks the number of open dialog sessions.
	ActiveDialogs metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// interactive voice latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AssistantDuration, err = m.Float64Histogram("vaani.assistant.duration",
		metric.WithDescription("Latency of one assistant endpoint round trip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("vaani.capture.duration",
		metric.WithDescription("Duration of one speech capture activation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("vaani.nlu.classify.duration",
		metric.WithDescription("Latency of NLU intent classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Intents, err = m.Int64Counter("vaani.intents",
		metric.WithDescription("Total classified intents by name and status."),
	); err != nil {
		return nil, err
	}
	if met.Transfers, err = m.Int64Counter("vaani.transfers",
		metric.WithDescription("Total executed transfers by status."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierErrors, err = m.Int64Counter("vaani.nlu.errors",
		metric.WithDescription("Total NLU classifier failures by classifier name."),
	); err != nil {
		return nil, err
	}

	if met.ActiveDialogs, err = m.Int64UpDownCounter("vaani.active_dialogs",
		metric.WithDescription("Number of open dialog sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("vaani.http.request.duration",
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

// RecordIntent records one classified intent with the standard attribute set.
func (m *Metrics) RecordIntent(ctx context.Context, intent, status string) {
	m.Intents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("status", status),
		),
	)
}

// RecordTransfer records one transfer attempt by outcome.
func (m *Metrics) RecordTransfer(ctx context.Context, status string) {
	m.Transfers.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordClassifierError records one classifier failure.
func (m *Metrics) RecordClassifierError(ctx context.Context, classifier string) {
	m.ClassifierErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("classifier", classifier)),
	)
}
