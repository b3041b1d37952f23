package redis

import (
	"context"
	"fmt"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/logger"
)

var _ component.Component = (*Component)(nil)

// Component manages the Client lifecycle.
type Component struct {
	client *Client
	cfg    Config
	log    *logger.Logger
}

// NewComponent creates a Redis component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log}
}

// Client returns the client, or nil before Start.
func (c *Component) Client() *Client { return c.client }

func (c *Component) Name() string { return "redis" }

// Start creates the client and verifies connectivity.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis start: %w", err)
	}
	c.client = client
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.client == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	} else if err := c.client.Ping(ctx); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, err.Error()
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Redis",
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d pool=%d", c.cfg.Addr, c.cfg.DB, c.cfg.PoolSize),
	}
}
