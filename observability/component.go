package observability

import (
	"context"
	"errors"
	"sync"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/logger"
)

// Component owns the tracer and meter providers.
type Component struct {
	cfg Config
	log *logger.Logger

	mu      sync.Mutex
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	metrics *Metrics
}

// NewComponent creates the observability component. Metrics are usable
// before Start; instruments created on the global provider follow it once
// Start installs the SDK provider.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("observability"), metrics: DefaultMetrics()}
}

// Name implements component.Component.
func (c *Component) Name() string { return "observability" }

// Start installs the exporters when enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Debug("observability disabled")
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	tp, err := InitTracer(ctx, c.cfg)
	if err != nil {
		return err
	}
	mp, err := InitMeter(ctx, c.cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return err
	}

	c.mu.Lock()
	c.tracer, c.meter = tp, mp
	c.mu.Unlock()
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.tracer != nil {
		errs = append(errs, c.tracer.Shutdown(ctx))
		c.tracer = nil
	}
	if c.meter != nil {
		errs = append(errs, c.meter.Shutdown(ctx))
		c.meter = nil
	}
	return errors.Join(errs...)
}

// Health implements component.Component.
func (c *Component) Health(context.Context) component.Health {
	msg := "disabled"
	if c.cfg.Enabled {
		msg = "exporting to " + c.cfg.Endpoint
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: msg}
}

// Metrics returns the service instruments.
func (c *Component) Metrics() *Metrics { return c.metrics }
