package storage

import (
	"fmt"
	"sync"

	"github.com/kbukum/speakerhub/logger"
)

// Factory creates a Storage from configuration.
type Factory func(cfg Config, log *logger.Logger) (Storage, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes a backend available to New under name.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New creates the backend selected by cfg.Provider. The backend package
// must have been imported so that its factory is registered.
func New(cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: provider %q not registered", cfg.Provider)
	}
	log.WithComponent("storage").Info("initializing storage", map[string]interface{}{"provider": cfg.Provider})
	return f(cfg, log)
}
