// Package observe provides application-wide observability primitives for
// Parley: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Parley metrics.
const meterName = "github.com/MrWong99/parley"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use. The underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// MTDuration tracks machine-translation latency.
	MTDuration metric.Float64Histogram

	// TTSFirstByte tracks time from synthesis request to the first audio
	// chunk arriving.
	TTSFirstByte metric.Float64Histogram

	// PipelineDuration tracks end-to-end utterance latency, from the
	// moment a segment closes to the first synthesized chunk.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts segmented utterances by outcome. Use with attributes:
	//   attribute.String("engine", ...), attribute.String("outcome", ...)
	// where outcome is one of "translated", "dropped", "error".
	Utterances metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("stage", ...), attribute.String("kind", ...)
	// where stage is the pipeline stage that failed ("stt", "mt", "tts")
	// and kind separates failed requests ("request") from transfers that
	// broke off mid-stream ("stream").
	ProviderErrors metric.Int64Counter

	// CaptureOverruns counts capture frames discarded because the frame
	// buffer was full. Use with attribute: attribute.String("engine", ...)
	CaptureOverruns metric.Int64Counter

	// --- Gauges ---

	// PlaybackHolds tracks how many playback sinks currently hold the
	// capture interlock.
	PlaybackHolds metric.Int64UpDownCounter

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
	if met.STTDuration, err = m.Float64Histogram("parley.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MTDuration, err = m.Float64Histogram("parley.mt.duration",
		metric.WithDescription("Latency of machine translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSFirstByte, err = m.Float64Histogram("parley.tts.first_byte",
		metric.WithDescription("Time to first synthesized audio chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("parley.pipeline.duration",
		metric.WithDescription("End-to-end utterance latency from segment close to first audio."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("parley.utterances",
		metric.WithDescription("Total segmented utterances by engine and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("parley.provider.errors",
		metric.WithDescription("Total provider errors by pipeline stage and kind."),
	); err != nil {
		return nil, err
	}
	if met.CaptureOverruns, err = m.Int64Counter("parley.capture.overruns",
		metric.WithDescription("Capture frames discarded because the buffer was full."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.PlaybackHolds, err = m.Int64UpDownCounter("parley.playback.holds",
		metric.WithDescription("Playback sinks currently holding the capture interlock."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("parley.http.request.duration",
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

// RecordUtterance records an utterance counter increment with the standard
// attribute set.
func (m *Metrics) RecordUtterance(ctx context.Context, engine, outcome string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, stage, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("kind", kind),
		),
	)
}

// RecordCaptureOverruns adds n discarded capture periods to the overrun
// counter. Callers report deltas since their previous reading.
func (m *Metrics) RecordCaptureOverruns(ctx context.Context, engine string, n int64) {
	if n <= 0 {
		return
	}
	m.CaptureOverruns.Add(ctx, n,
		metric.WithAttributes(attribute.String("engine", engine)),
	)
}

// RecordPlaybackHold moves the playback-holds gauge by delta on behalf of
// one engine. Pass +1 when the interlock is acquired and -1 on release.
func (m *Metrics) RecordPlaybackHold(ctx context.Context, engine string, delta int64) {
	m.PlaybackHolds.Add(ctx, delta,
		metric.WithAttributes(attribute.String("engine", engine)),
	)
}

// RecordPipeline records all four stage latencies of one translated
// utterance in a single call.
func (m *Metrics) RecordPipeline(ctx context.Context, engine string, stt, mt, ttsFirstByte, total time.Duration) {
	attrs := metric.WithAttributes(attribute.String("engine", engine))
	m.STTDuration.Record(ctx, stt.Seconds(), attrs)
	m.MTDuration.Record(ctx, mt.Seconds(), attrs)
	m.TTSFirstByte.Record(ctx, ttsFirstByte.Seconds(), attrs)
	m.PipelineDuration.Record(ctx, total.Seconds(), attrs)
}
