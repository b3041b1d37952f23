package worker

import "fmt"

// Dispatch modes.
const (
	ModeInline = "inline"
	ModeKafka  = "kafka"
)

// DefaultTopic carries JobEvents in kafka mode.
const DefaultTopic = "speakerhub.jobs"

// Config holds dispatch settings.
type Config struct {
	Mode string `mapstructure:"mode"`
	// Workers bounds how many jobs run at once.
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
	Topic     string `mapstructure:"topic"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeInline
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Mode != ModeInline && c.Mode != ModeKafka {
		return fmt.Errorf("dispatch.mode must be inline or kafka (got: %s)", c.Mode)
	}
	return nil
}
