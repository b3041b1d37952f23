package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/speakerhub/logger"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v", cfg.SampleRate)
	}
	if cfg.MetricInterval != 15*time.Second {
		t.Errorf("MetricInterval = %v", cfg.MetricInterval)
	}

	cfg.SampleRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sample rate above 1")
	}
}

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() = %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation is %T, want Sum[int64]", agg)
	}
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestStartStageRecordsSpanAndDuration(t *testing.T) {
	rec := newRecorder(t)
	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	_, end := StartStage(context.Background(), m, "diarization")
	end(errors.New("sidecar down"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d", len(spans))
	}
	if spans[0].Name() != "pipeline.diarization" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v", spans[0].Status())
	}

	data := collect(t, reader)
	h, ok := data["speakerhub.stage.duration"].(metricdata.Histogram[float64])
	if !ok || len(h.DataPoints) != 1 || h.DataPoints[0].Count != 1 {
		t.Fatalf("stage.duration = %#v", data["speakerhub.stage.duration"])
	}
}

func TestMetricsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	m.JobFinished(ctx, "staged", nil)
	m.JobFinished(ctx, "staged", nil)
	m.JobFinished(ctx, "single_call", errors.New("boom"))
	m.SpeakerCreated(ctx, false)
	m.SpeakerCreated(ctx, true)
	m.RequestDone(ctx, "GET", "/health", 200, time.Millisecond)

	data := collect(t, reader)
	checks := map[string]int64{
		"speakerhub.jobs.completed":     2,
		"speakerhub.jobs.failed":        1,
		"speakerhub.speakers.created":   2,
		"speakerhub.speakers.ambiguous": 1,
		"http.server.requests":          1,
	}
	for name, want := range checks {
		if got := sumOf(t, data[name]); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.JobFinished(ctx, "staged", nil)
	m.SpeakerCreated(ctx, true)
	m.StageDone(ctx, "x", time.Second, nil)
	m.RequestDone(ctx, "GET", "/", 200, time.Second)
}

func TestTraceID(t *testing.T) {
	newRecorder(t)
	if TraceID(context.Background()) != "" {
		t.Error("expected empty trace id without a span")
	}
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	if len(TraceID(ctx)) != 32 {
		t.Errorf("TraceID = %q", TraceID(ctx))
	}
}

func TestComponentDisabled(t *testing.T) {
	c := NewComponent(Config{}, logger.Nop())
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if c.Metrics() == nil {
		t.Fatal("Metrics() is nil")
	}
	if h := c.Health(ctx); h.Message != "disabled" {
		t.Errorf("Health() = %+v", h)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}
