package storage

import (
	"context"
	"fmt"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/logger"
)

var _ component.Component = (*Component)(nil)

// Component manages a Storage backend lifecycle.
type Component struct {
	storage Storage
	cfg     Config
	log     *logger.Logger
}

// NewComponent creates a storage component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log}
}

// Storage returns the backend, or nil before Start.
func (c *Component) Storage() Storage { return c.storage }

func (c *Component) Name() string { return "storage" }

func (c *Component) Start(_ context.Context) error {
	s, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	c.storage = s
	return nil
}

func (c *Component) Stop(_ context.Context) error { return nil }

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.storage == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
		return h
	}
	if _, err := c.storage.Exists(ctx, ".health"); err != nil {
		h.Status, h.Message = component.StatusDegraded, err.Error()
	}
	return h
}

func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider
	switch c.cfg.Provider {
	case ProviderS3:
		details += " bucket=" + c.cfg.S3.Bucket
	case ProviderLocal:
		details += " path=" + c.cfg.BasePath
	}
	return component.Description{Name: "Storage", Type: "storage", Details: details}
}
