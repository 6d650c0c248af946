// Package telemetry instruments the engine with OpenTelemetry metrics,
// exported for Prometheus scraping, the same meter-and-instrument shape
// MrWong99-glyphoxa's internal/observe package uses, reworked around the
// decoder's own counters: tokens surviving the beam per frame, pass-2
// heap pops, the adaptive beam floor, and acoustic-score cache hits.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/julius-speech/julius-sub004"

// Metrics holds every OpenTelemetry instrument the engine records
// against. All fields are safe for concurrent use; the underlying OTel
// instruments handle their own synchronization.
type Metrics struct {
	// UtteranceDuration tracks wall-clock time from the start of
	// RecognizeOneUtterance (including draining the stream's frames) to its
	// result, labeled by outcome.
	UtteranceDuration metric.Float64Histogram

	// Pass1Duration and Pass2Duration track each pass's own wall time.
	Pass1Duration metric.Float64Histogram
	Pass2Duration metric.Float64Histogram

	// TokensPerFrame records the pass-1 envelope occupancy each frame.
	TokensPerFrame metric.Int64Histogram

	// Pass2Pops counts priority-queue pops per utterance's pass-2 run.
	Pass2Pops metric.Int64Histogram

	// BeamFloor reports the current adaptive pruning threshold.
	BeamFloor metric.Float64Gauge

	// AcousticCacheHits and AcousticCacheMisses count the per-frame,
	// per-state score cache pass-1 and pass-2 share.
	AcousticCacheHits   metric.Int64Counter
	AcousticCacheMisses metric.Int64Counter

	// Utterances counts completed recognitions, labeled by outcome
	// (ok, no_path, aborted).
	Utterances metric.Int64Counter

	// ActiveStreams tracks concurrently open audio streams.
	ActiveStreams metric.Int64UpDownCounter

	// GrammarReloads counts successful and failed grammar hot-reloads.
	GrammarReloads metric.Int64Counter
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20}

// NewMetrics creates every instrument against the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.UtteranceDuration, err = m.Float64Histogram("lvcsr.utterance.duration",
		metric.WithDescription("Wall-clock time to recognize one utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Pass1Duration, err = m.Float64Histogram("lvcsr.pass1.duration",
		metric.WithDescription("Wall-clock time of the pass-1 frame-synchronous beam search."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Pass2Duration, err = m.Float64Histogram("lvcsr.pass2.duration",
		metric.WithDescription("Wall-clock time of the pass-2 A* stack decoding search."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TokensPerFrame, err = m.Int64Histogram("lvcsr.pass1.tokens_per_frame",
		metric.WithDescription("Number of surviving tokens per pass-1 frame."),
	); err != nil {
		return nil, err
	}
	if met.Pass2Pops, err = m.Int64Histogram("lvcsr.pass2.pops",
		metric.WithDescription("Priority-queue pops consumed per pass-2 run."),
	); err != nil {
		return nil, err
	}
	if met.BeamFloor, err = m.Float64Gauge("lvcsr.pass1.beam_floor",
		metric.WithDescription("Current adaptive pruning beam width."),
	); err != nil {
		return nil, err
	}
	if met.AcousticCacheHits, err = m.Int64Counter("lvcsr.acoustic.cache_hits",
		metric.WithDescription("Acoustic score cache hits."),
	); err != nil {
		return nil, err
	}
	if met.AcousticCacheMisses, err = m.Int64Counter("lvcsr.acoustic.cache_misses",
		metric.WithDescription("Acoustic score cache misses."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("lvcsr.utterances",
		metric.WithDescription("Completed utterances by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("lvcsr.active_streams",
		metric.WithDescription("Number of currently open audio streams."),
	); err != nil {
		return nil, err
	}
	if met.GrammarReloads, err = m.Int64Counter("lvcsr.grammar.reloads",
		metric.WithDescription("Grammar hot-reload attempts by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
	defaultErr         error
)

// Default returns a lazily-initialized Metrics backed by mp, memoizing
// both the result and any instrument-creation error across calls.
func Default(mp metric.MeterProvider) (*Metrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultErr = NewMetrics(mp)
	})
	return defaultMetrics, defaultErr
}

// RecordUtterance records a completed utterance's outcome and latency.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Utterances.Add(ctx, 1, attrs)
	m.UtteranceDuration.Record(ctx, seconds, attrs)
}

// RecordGrammarReload records a hot-reload attempt's outcome.
func (m *Metrics) RecordGrammarReload(ctx context.Context, outcome string) {
	m.GrammarReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCacheAccess records a single acoustic-score cache lookup.
func (m *Metrics) RecordCacheAccess(ctx context.Context, hit bool) {
	if hit {
		m.AcousticCacheHits.Add(ctx, 1)
		return
	}
	m.AcousticCacheMisses.Add(ctx, 1)
}
