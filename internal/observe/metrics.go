// Package observe provides application-wide observability primitives for
// Lectora: OpenTelemetry metrics, distributed tracing, structured logging,
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
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lectora metrics.
const meterName = "github.com/MrWong99/lectora"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// ScoringDuration tracks alignment and scoring latency.
	ScoringDuration metric.Float64Histogram

	// EvaluationDuration tracks a full evaluation: transcription, scoring,
	// persistence and exercise derivation.
	EvaluationDuration metric.Float64Histogram

	// --- Score distribution ---

	// Accuracy records the curved accuracy of each evaluation.
	Accuracy metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Evaluations counts stored evaluations. Use with attributes:
	//   attribute.String("status", ...), attribute.String("tier", ...)
	Evaluations metric.Int64Counter

	// PronunciationErrors counts detected reading errors. Use with attribute:
	//   attribute.String("kind", ...)
	PronunciationErrors metric.Int64Counter

	// ExercisesDerived counts created practice exercises. Use with attribute:
	//   attribute.String("kind", ...)
	ExercisesDerived metric.Int64Counter

	// PracticeAttempts counts practice attempts. Use with attribute:
	//   attribute.String("improved", ...)
	PracticeAttempts metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// TranscriptionFailures counts evaluations scored against an empty
	// transcript because transcription failed.
	TranscriptionFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveEvaluations tracks the number of evaluations in flight.
	ActiveEvaluations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Batch
// transcription of a read passage takes seconds, not milliseconds.
var latencyBuckets = []float64{
	0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// accuracyBuckets covers the curved accuracy range [50, 100].
var accuracyBuckets = []float64{50, 60, 70, 75, 80, 85, 90, 95, 100}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	latency := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}
	if met.STTDuration, err = latency("lectora.stt.duration",
		"Latency of speech-to-text transcription."); err != nil {
		return nil, err
	}
	if met.ScoringDuration, err = latency("lectora.scoring.duration",
		"Latency of aligning and scoring a transcript."); err != nil {
		return nil, err
	}
	if met.EvaluationDuration, err = latency("lectora.evaluation.duration",
		"Latency of a complete reading evaluation."); err != nil {
		return nil, err
	}
	if met.Accuracy, err = m.Float64Histogram("lectora.evaluation.accuracy",
		metric.WithDescription("Curved accuracy of evaluated readings."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(accuracyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("lectora.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Evaluations, err = m.Int64Counter("lectora.evaluations",
		metric.WithDescription("Total stored evaluations by status and tier."),
	); err != nil {
		return nil, err
	}
	if met.PronunciationErrors, err = m.Int64Counter("lectora.pronunciation_errors",
		metric.WithDescription("Total detected reading errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.ExercisesDerived, err = m.Int64Counter("lectora.exercises.derived",
		metric.WithDescription("Total practice exercises created by kind."),
	); err != nil {
		return nil, err
	}
	if met.PracticeAttempts, err = m.Int64Counter("lectora.practice.attempts",
		metric.WithDescription("Total practice attempts by outcome."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("lectora.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionFailures, err = m.Int64Counter("lectora.transcription.failures",
		metric.WithDescription("Evaluations scored against an empty transcript after a transcription failure."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveEvaluations, err = m.Int64UpDownCounter("lectora.active_evaluations",
		metric.WithDescription("Number of evaluations in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lectora.http.request.duration",
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

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordEvaluation records one stored evaluation and its accuracy.
func (m *Metrics) RecordEvaluation(ctx context.Context, status, tier string, accuracy float64) {
	m.Evaluations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("tier", tier),
		),
	)
	m.Accuracy.Record(ctx, accuracy)
}

// RecordPronunciationErrors adds n errors of the given kind.
func (m *Metrics) RecordPronunciationErrors(ctx context.Context, kind string, n int) {
	if n <= 0 {
		return
	}
	m.PronunciationErrors.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordExercise records one derived exercise of the given kind.
func (m *Metrics) RecordExercise(ctx context.Context, kind string) {
	m.ExercisesDerived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordPracticeAttempt records one practice attempt.
func (m *Metrics) RecordPracticeAttempt(ctx context.Context, improved bool) {
	m.PracticeAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("improved", strconv.FormatBool(improved))),
	)
}
