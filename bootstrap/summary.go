package bootstrap

import (
	"context"
	"time"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/logger"
)

// Summary collects what the service started with, for a single startup log.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	routes          []string
}

// NewSummary creates an empty summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) { s.startupDuration = d }

// TrackRoute records an HTTP route as "METHOD path".
func (s *Summary) TrackRoute(method, path string) {
	s.routes = append(s.routes, method+" "+path)
}

// Routes returns the tracked routes.
func (s *Summary) Routes() []string { return s.routes }

// Log writes the startup summary: one line per component with its
// self-description and live health, then the service line.
func (s *Summary) Log(ctx context.Context, registry *component.Registry, log *logger.Logger) {
	for _, c := range registry.All() {
		h := c.Health(ctx)
		fields := map[string]interface{}{
			logger.FieldComponent: c.Name(),
			"status":              string(h.Status),
		}
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			fields["type"] = desc.Type
			fields["details"] = desc.Details
			if desc.Port > 0 {
				fields["port"] = desc.Port
			}
		}
		if h.Message != "" {
			fields["message"] = h.Message
		}
		log.Info("component ready", fields)
	}
	log.Info("service started", map[string]interface{}{
		"name":       s.serviceName,
		"version":    s.version,
		"routes":     len(s.routes),
		"startup_ms": s.startupDuration.Milliseconds(),
	})
}
