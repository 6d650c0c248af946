package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsCreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordUtteranceIncrementsCounterAndHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUtterance(ctx, "ok", 1.5)
	m.RecordUtterance(ctx, "ok", 2.5)
	m.RecordUtterance(ctx, "no_path", 0.2)

	rm := collect(t, reader)

	countMet := findMetric(rm, "lvcsr.utterances")
	if countMet == nil {
		t.Fatal("lvcsr.utterances not found")
	}
	sum, ok := countMet.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("lvcsr.utterances is not a sum")
	}
	var okCount int64
	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "outcome" && kv.Value.AsString() == "ok" {
				okCount = dp.Value
			}
		}
	}
	if okCount != 2 {
		t.Errorf("outcome=ok count = %d; want 2", okCount)
	}

	durMet := findMetric(rm, "lvcsr.utterance.duration")
	if durMet == nil {
		t.Fatal("lvcsr.utterance.duration not found")
	}
	if _, ok := durMet.Data.(metricdata.Histogram[float64]); !ok {
		t.Fatal("lvcsr.utterance.duration is not a histogram")
	}
}

func TestRecordCacheAccessSplitsHitsAndMisses(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheAccess(ctx, true)
	m.RecordCacheAccess(ctx, true)
	m.RecordCacheAccess(ctx, false)

	rm := collect(t, reader)

	hits := findMetric(rm, "lvcsr.acoustic.cache_hits")
	misses := findMetric(rm, "lvcsr.acoustic.cache_misses")
	if hits == nil || misses == nil {
		t.Fatal("expected both cache hit and miss metrics to be present")
	}
	hitSum := hits.Data.(metricdata.Sum[int64])
	missSum := misses.Data.(metricdata.Sum[int64])
	if hitSum.DataPoints[0].Value != 2 {
		t.Errorf("cache hits = %d; want 2", hitSum.DataPoints[0].Value)
	}
	if missSum.DataPoints[0].Value != 1 {
		t.Errorf("cache misses = %d; want 1", missSum.DataPoints[0].Value)
	}
}

func TestBeamFloorGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.BeamFloor.Record(ctx, 123.5)

	rm := collect(t, reader)
	met := findMetric(rm, "lvcsr.pass1.beam_floor")
	if met == nil {
		t.Fatal("lvcsr.pass1.beam_floor not found")
	}
	gauge, ok := met.Data.(metricdata.Gauge[float64])
	if !ok {
		t.Fatal("lvcsr.pass1.beam_floor is not a gauge")
	}
	if len(gauge.DataPoints) == 0 || gauge.DataPoints[0].Value != 123.5 {
		t.Errorf("beam floor value mismatch: %+v", gauge.DataPoints)
	}
}

func TestTokensPerFrameHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.TokensPerFrame.Record(ctx, 120)
	m.TokensPerFrame.Record(ctx, 340)

	rm := collect(t, reader)
	met := findMetric(rm, "lvcsr.pass1.tokens_per_frame")
	if met == nil {
		t.Fatal("lvcsr.pass1.tokens_per_frame not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatal("lvcsr.pass1.tokens_per_frame is not a histogram")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 2 {
		t.Errorf("tokens-per-frame sample count mismatch: %+v", hist.DataPoints)
	}
}

func TestActiveStreamsUpDownCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveStreams.Add(ctx, 1)
	m.ActiveStreams.Add(ctx, 1)
	m.ActiveStreams.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "lvcsr.active_streams")
	if met == nil {
		t.Fatal("lvcsr.active_streams not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("lvcsr.active_streams is not a sum")
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active streams = %+v; want 1", sum.DataPoints)
	}
}

func TestDefaultMemoizesInstance(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	a, err := Default(mp)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	b, err := Default(mp)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if a != b {
		t.Error("Default returned different pointers across calls")
	}
}
