package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/logger"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component runs a Hub under the component lifecycle.
type Component struct {
	hub *Hub
	wg  sync.WaitGroup
}

// NewComponent creates the component with a fresh hub.
func NewComponent(log *logger.Logger) *Component {
	return &Component{hub: NewHub(log)}
}

// Hub returns the hub for publishing and serving.
func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return "sse" }

// Start runs the hub loop in the background.
func (c *Component) Start(context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

// Stop closes all streams and waits for the hub loop to exit.
func (c *Component) Stop(context.Context) error {
	c.hub.Stop()
	c.wg.Wait()
	return nil
}

func (c *Component) Health(context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{Name: "SSE Hub", Type: "sse", Details: "job progress streams"}
}
