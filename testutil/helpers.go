package testutil

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/database"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/redis"
	"github.com/kbukum/speakerhub/storage/local"
)

// THelper binds component setup to a test.
type THelper struct {
	t   testing.TB
	ctx context.Context
	log *logger.Logger
}

// T wraps t. Components are stopped automatically when the test ends.
func T(t testing.TB) *THelper {
	return &THelper{t: t, ctx: context.Background(), log: logger.Nop()}
}

// WithContext sets the context passed to Start and Stop.
func (h *THelper) WithContext(ctx context.Context) *THelper {
	h.ctx = ctx
	return h
}

// WithLogger sets the logger handed to components.
func (h *THelper) WithLogger(log *logger.Logger) *THelper {
	h.log = log
	return h
}

// Setup starts c and registers its Stop with t.Cleanup.
func (h *THelper) Setup(c component.Component) {
	h.t.Helper()
	if err := c.Start(h.ctx); err != nil {
		h.t.Fatalf("failed to start component %s: %v", c.Name(), err)
	}
	h.t.Cleanup(func() {
		if err := c.Stop(h.ctx); err != nil {
			h.t.Errorf("failed to stop component %s: %v", c.Name(), err)
		}
	})
}

// Database starts an in-memory SQLite database migrated with models.
func (h *THelper) Database(models ...interface{}) *database.DB {
	h.t.Helper()
	c := database.NewComponent(database.Config{
		Enabled:     true,
		Driver:      database.DriverSQLite,
		DSN:         ":memory:",
		MaxRetries:  1,
		AutoMigrate: true,
		LogLevel:    "silent",
	}, h.log).WithAutoMigrate(models...)
	h.Setup(c)
	return c.DB()
}

// Redis starts a miniredis server and a client connected to it.
func (h *THelper) Redis() (*redis.Client, *miniredis.Miniredis) {
	h.t.Helper()
	mini := miniredis.RunT(h.t)
	c := redis.NewComponent(redis.Config{Enabled: true, Addr: mini.Addr()}, h.log)
	h.Setup(c)
	return c.Client(), mini
}

// Storage returns a local storage rooted in a temporary directory.
func (h *THelper) Storage() *local.Storage {
	h.t.Helper()
	s, err := local.NewStorage(h.t.TempDir())
	if err != nil {
		h.t.Fatalf("local storage: %v", err)
	}
	return s
}
