package storage

import (
	"errors"
	"fmt"
)

// Provider names.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Config holds storage configuration.
type Config struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Provider selects the backend: local or s3.
	Provider string `mapstructure:"provider" json:"provider"`
	// BasePath is the root directory for the local backend.
	BasePath string   `mapstructure:"base_path" json:"base_path"`
	S3       S3Config `mapstructure:"s3" json:"s3"`
}

// S3Config holds settings for Amazon S3 and S3-compatible stores such as MinIO.
type S3Config struct {
	Bucket         string `mapstructure:"bucket" json:"bucket"`
	Region         string `mapstructure:"region" json:"region"`
	Endpoint       string `mapstructure:"endpoint" json:"endpoint"`
	AccessKey      string `mapstructure:"access_key" json:"access_key"`
	SecretKey      string `mapstructure:"secret_key" json:"-"`
	ForcePathStyle bool   `mapstructure:"force_path_style" json:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.BasePath == "" {
		c.BasePath = "./data"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}

// Validate checks the settings required by the selected provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for local provider")
		}
	case ProviderS3:
		var errs []error
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("bucket is required"))
		}
		if c.S3.Region == "" {
			errs = append(errs, errors.New("region is required"))
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, errors.New("access_key and secret_key must be set together"))
		}
		if len(errs) > 0 {
			return fmt.Errorf("storage: invalid s3 config: %w", errors.Join(errs...))
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
