package kafka

import (
	"fmt"
	"slices"
	"time"
)

// Config holds Kafka connection and client configuration.
type Config struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`

	EnableTLS     bool   `mapstructure:"enable_tls"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	TLSCAFile     string `mapstructure:"tls_ca_file"`

	EnableSASL    bool   `mapstructure:"enable_sasl"`
	SASLMechanism string `mapstructure:"sasl_mechanism"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`

	// Compression is one of none, gzip, snappy, lz4, zstd.
	Compression  string `mapstructure:"compression"`
	Retries      int    `mapstructure:"retries"`
	BatchTimeout string `mapstructure:"batch_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	RequiredAcks int    `mapstructure:"required_acks"`

	SessionTimeout    string `mapstructure:"session_timeout"`
	HeartbeatInterval string `mapstructure:"heartbeat_interval"`
	DialTimeout       string `mapstructure:"dial_timeout"`
}

var saslMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.GroupID == "" {
		c.GroupID = "speakerhub-workers"
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.BatchTimeout == "" {
		// Job events are rare and latency matters more than batching.
		c.BatchTimeout = "10ms"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "10s"
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	if c.SessionTimeout == "" {
		c.SessionTimeout = "30s"
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = "3s"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "10s"
	}
	if c.EnableSASL && c.SASLMechanism == "" {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	for name, v := range map[string]string{
		"batch_timeout":      c.BatchTimeout,
		"write_timeout":      c.WriteTimeout,
		"session_timeout":    c.SessionTimeout,
		"heartbeat_interval": c.HeartbeatInterval,
		"dial_timeout":       c.DialTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if c.EnableSASL {
		if !slices.Contains(saslMechanisms, c.SASLMechanism) {
			return fmt.Errorf("unsupported SASL mechanism: %s", c.SASLMechanism)
		}
		if c.Username == "" {
			return fmt.Errorf("SASL username is required")
		}
	}
	return nil
}

// ParseDuration parses s, returning zero when it is empty or invalid.
func ParseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
