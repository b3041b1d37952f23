package vectorindex

import "fmt"

// Default settings.
const (
	DefaultDimension = 192
	DefaultPrefix    = "index"
	// SearchDepth is how many nearest neighbours FindMatch groups by identity.
	SearchDepth = 10
)

// Config holds embedding index settings.
type Config struct {
	// Dimension is the embedding length produced by the extractor.
	Dimension int `mapstructure:"dimension"`
	// Prefix is the storage key prefix of the snapshot pair.
	Prefix string `mapstructure:"prefix"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Dimension <= 0 {
		c.Dimension = DefaultDimension
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("index.dimension must be positive (got: %d)", c.Dimension)
	}
	return nil
}
