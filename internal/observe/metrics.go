// Package observe provides OpenTelemetry metrics for the audio pipeline.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// through a Prometheus bridge set up by [InitProvider], so they can be
// scraped from the control server's /metrics endpoint. Tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all Willow metrics.
const meterName = "github.com/willowvoice/willow"

// Metrics holds the pipeline's metric instruments. All fields are safe for
// concurrent use; the underlying OTel types handle their own
// synchronisation.
type Metrics struct {
	// TranscriptionDuration tracks per-segment speech-to-text latency.
	TranscriptionDuration metric.Float64Histogram

	// SegmentsDetected counts speech segments emitted by the segmenter.
	SegmentsDetected metric.Int64Counter

	// SegmentsDiscarded counts segments whose transcription came back
	// empty after normalization.
	SegmentsDiscarded metric.Int64Counter

	// Commands counts dispatched command outcomes. Recorded with
	// attribute "outcome" set to "executed" or "suppressed".
	Commands metric.Int64Counter

	// TypedUtterances counts utterances forwarded to the typing actuator.
	TypedUtterances metric.Int64Counter

	// EngineErrors counts failed transcription calls.
	EngineErrors metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized
// for local and hosted transcription latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation
// fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptionDuration, err = m.Float64Histogram("willow.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription per segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDetected, err = m.Int64Counter("willow.segments.detected",
		metric.WithDescription("Total speech segments emitted by the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsDiscarded, err = m.Int64Counter("willow.segments.discarded",
		metric.WithDescription("Total segments dropped because the cleaned transcription was empty."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("willow.commands",
		metric.WithDescription("Total dispatched commands by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TypedUtterances, err = m.Int64Counter("willow.typed.utterances",
		metric.WithDescription("Total utterances forwarded to the typing actuator."),
	); err != nil {
		return nil, err
	}
	if met.EngineErrors, err = m.Int64Counter("willow.engine.errors",
		metric.WithDescription("Total failed transcription calls."),
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
// on first call using [otel.GetMeterProvider]. Panics if instrument
// creation fails, which cannot happen with the global provider.
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

// RecordTranscription records one transcription call's latency.
func (m *Metrics) RecordTranscription(ctx context.Context, d time.Duration) {
	m.TranscriptionDuration.Record(ctx, d.Seconds())
}

// CommandExecuted counts one executed command.
func (m *Metrics) CommandExecuted() {
	m.Commands.Add(context.Background(), 1,
		metric.WithAttributes(outcomeAttr("executed")))
}

// CommandSuppressed counts one guard-suppressed command.
func (m *Metrics) CommandSuppressed() {
	m.Commands.Add(context.Background(), 1,
		metric.WithAttributes(outcomeAttr("suppressed")))
}

// UtteranceTyped counts one typed utterance.
func (m *Metrics) UtteranceTyped() {
	m.TypedUtterances.Add(context.Background(), 1)
}
