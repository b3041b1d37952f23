package vectorindex

import (
	"context"
	"fmt"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/storage"
)

var _ component.Component = (*Component)(nil)

// StorageProvider yields the snapshot backend once it has started.
type StorageProvider interface {
	Storage() storage.Storage
}

// Component loads the index from storage on Start.
type Component struct {
	cfg     Config
	storage StorageProvider
	log     *logger.Logger
	index   *Index
}

// NewComponent creates an index component. Register it after the storage
// component.
func NewComponent(cfg Config, sp StorageProvider, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, storage: sp, log: log}
}

// Index returns the loaded index, or nil before Start.
func (c *Component) Index() *Index { return c.index }

func (c *Component) Name() string { return "vectorindex" }

func (c *Component) Start(ctx context.Context) error {
	var s storage.Storage
	if c.storage != nil {
		s = c.storage.Storage()
	}
	c.index = New(c.cfg, s, c.log)
	c.index.Load(ctx)
	return nil
}

func (c *Component) Stop(_ context.Context) error { return nil }

func (c *Component) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.index == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
		return h
	}
	st := c.index.Stats()
	h.Message = fmt.Sprintf("live=%d total=%d", st.Live, st.Total)
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Speaker index",
		Type:    "vectorindex",
		Details: fmt.Sprintf("dim=%d prefix=%s", c.cfg.Dimension, c.cfg.Prefix),
	}
}
