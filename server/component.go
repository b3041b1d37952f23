package server

import (
	"context"
	"fmt"

	"github.com/kbukum/speakerhub/component"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component adapts Server to the component lifecycle.
type Component struct {
	server *Server
}

// NewComponent wraps s.
func NewComponent(s *Server) *Component {
	return &Component{server: s}
}

func (c *Component) Name() string                    { return "http-server" }
func (c *Component) Start(ctx context.Context) error { return c.server.Start(ctx) }
func (c *Component) Stop(ctx context.Context) error  { return c.server.Stop(ctx) }

func (c *Component) Health(context.Context) component.Health {
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: c.server.Addr()}
}

func (c *Component) Describe() component.Description {
	cfg := c.server.config
	return component.Description{
		Name:    "HTTP Server",
		Type:    "server",
		Details: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Port:    cfg.Port,
	}
}
