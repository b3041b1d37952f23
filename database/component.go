package database

import (
	"context"
	"fmt"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/logger"
)

var _ component.Component = (*Component)(nil)
var _ component.Describable = (*Component)(nil)

// Migrator applies versioned migrations to an open database.
type Migrator func(ctx context.Context, db *DB) error

// Component manages the DB lifecycle.
type Component struct {
	db       *DB
	cfg      Config
	log      *logger.Logger
	models   []interface{}
	migrator Migrator
}

// NewComponent creates a database component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log}
}

// WithAutoMigrate registers models migrated on Start when auto_migrate is on.
func (c *Component) WithAutoMigrate(models ...interface{}) *Component {
	c.models = append(c.models, models...)
	return c
}

// WithMigrator sets the function run on Start when migrations is versioned.
func (c *Component) WithMigrator(m Migrator) *Component {
	c.migrator = m
	return c
}

// DB returns the underlying *DB, or nil before Start.
func (c *Component) DB() *DB { return c.db }

func (c *Component) Name() string { return "database" }

// Start connects and optionally migrates.
func (c *Component) Start(ctx context.Context) error {
	db, err := New(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	c.db = db
	if !c.cfg.AutoMigrate {
		return nil
	}
	if c.cfg.Migrations == MigrationsVersioned {
		if c.migrator == nil {
			return fmt.Errorf("database: versioned migrations requested but no migrator set")
		}
		return c.migrator(ctx, db)
	}
	if len(c.models) > 0 {
		if err := db.AutoMigrate(c.models...); err != nil {
			return fmt.Errorf("database auto-migrate: %w", err)
		}
	}
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.db == nil {
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	} else if err := c.db.PingContext(ctx); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, "ping failed: "+err.Error()
	}
	return h
}

func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("driver=%s pool=%d/%d", c.cfg.Driver, c.cfg.MaxOpenConns, c.cfg.MaxIdleConns)
	if c.cfg.AutoMigrate {
		details += " migrations=" + c.cfg.Migrations
	}
	return component.Description{Name: "Database", Type: "database", Details: details}
}
