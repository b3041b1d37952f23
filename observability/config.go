package observability

import (
	"fmt"
	"time"
)

// Config configures the OTLP exporters.
type Config struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP host:port, e.g. "localhost:4318".
	Endpoint       string        `mapstructure:"endpoint"`
	Insecure       bool          `mapstructure:"insecure"`
	SampleRate     float64       `mapstructure:"sample_rate"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`

	ServiceName    string `mapstructure:"-"`
	ServiceVersion string `mapstructure:"-"`
	Environment    string `mapstructure:"-"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.MetricInterval <= 0 {
		c.MetricInterval = 15 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability sample_rate must be within [0,1], got %v", c.SampleRate)
	}
	return nil
}
