package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/speakerhub/logger"
)

// InitMeter installs a global meter provider exporting over OTLP/HTTP.
// The caller shuts it down on exit.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.MetricInterval.String(),
	))
	return mp, nil
}

// Metrics holds the service's instruments.
type Metrics struct {
	jobsCompleted    metric.Int64Counter
	jobsFailed       metric.Int64Counter
	speakersCreated  metric.Int64Counter
	ambiguousMatches metric.Int64Counter
	stageDuration    metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.jobsCompleted, err = meter.Int64Counter("speakerhub.jobs.completed",
		metric.WithDescription("Processing jobs that reached COMPLETED")); err != nil {
		return nil, fmt.Errorf("creating jobs.completed counter: %w", err)
	}
	if m.jobsFailed, err = meter.Int64Counter("speakerhub.jobs.failed",
		metric.WithDescription("Processing jobs that reached FAILED")); err != nil {
		return nil, fmt.Errorf("creating jobs.failed counter: %w", err)
	}
	if m.speakersCreated, err = meter.Int64Counter("speakerhub.speakers.created",
		metric.WithDescription("Speaker identities created by resolution")); err != nil {
		return nil, fmt.Errorf("creating speakers.created counter: %w", err)
	}
	if m.ambiguousMatches, err = meter.Int64Counter("speakerhub.speakers.ambiguous",
		metric.WithDescription("Resolutions whose best similarity fell in the review band")); err != nil {
		return nil, fmt.Errorf("creating speakers.ambiguous counter: %w", err)
	}
	if m.stageDuration, err = meter.Float64Histogram("speakerhub.stage.duration",
		metric.WithDescription("Pipeline stage duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating stage.duration histogram: %w", err)
	}
	if m.requestTotal, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, fmt.Errorf("creating http.server.requests counter: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating http.server.duration histogram: %w", err)
	}
	return &m, nil
}

// DefaultMetrics builds instruments on the global provider.
func DefaultMetrics() *Metrics {
	m, err := NewMetrics(otel.Meter(tracerName))
	if err != nil {
		// The global provider never rejects these instrument names.
		panic(err)
	}
	return m
}

// JobFinished counts a terminal job outcome.
func (m *Metrics) JobFinished(ctx context.Context, variant string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("variant", variant))
	if err != nil {
		m.jobsFailed.Add(ctx, 1, attrs)
		return
	}
	m.jobsCompleted.Add(ctx, 1, attrs)
}

// SpeakerCreated counts a new identity.
func (m *Metrics) SpeakerCreated(ctx context.Context, ambiguous bool) {
	if m == nil {
		return
	}
	m.speakersCreated.Add(ctx, 1)
	if ambiguous {
		m.ambiguousMatches.Add(ctx, 1)
	}
}

// StageDone records a stage's duration and outcome.
func (m *Metrics) StageDone(ctx context.Context, stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", statusOf(err)),
	))
}

// RequestDone records a served HTTP request.
func (m *Metrics) RequestDone(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
