package httpclient

import (
	"fmt"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config configures the HTTP client.
type Config struct {
	// BaseURL is prepended to every request path.
	BaseURL string

	// Timeout bounds a whole request including reading the body. Defaults to 30s.
	Timeout time.Duration

	// Auth is applied to every request unless the request overrides it.
	Auth *AuthConfig

	// Headers are default headers applied to all requests.
	Headers map[string]string
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	return nil
}
