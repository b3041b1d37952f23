package pipeline

import (
	"fmt"
	"strings"
)

// Variant names.
const (
	VariantStaged     = "staged"
	VariantSingleCall = "single_call"
)

// DefaultAllowedExtensions are the accepted upload formats.
var DefaultAllowedExtensions = []string{"mp3", "wav", "m4a", "flac", "ogg", "aac", "wma", "opus", "webm"}

// Config holds pipeline settings.
type Config struct {
	Variant string `mapstructure:"variant"`
	// Language hints transcription; empty lets the backend detect it.
	Language string `mapstructure:"language"`
	// MinSegmentDuration drops diarized turns shorter than this many
	// seconds after merging. Zero keeps everything.
	MinSegmentDuration float64 `mapstructure:"min_segment_duration"`
	NumSpeakers        int     `mapstructure:"num_speakers"`
	MinSpeakers        int     `mapstructure:"min_speakers"`
	MaxSpeakers        int     `mapstructure:"max_speakers"`

	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxUploadMB       int64    `mapstructure:"max_upload_mb"`
	// ProgressTTL is how long progress snapshots stay in Redis.
	ProgressTTL string `mapstructure:"progress_ttl"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Variant == "" {
		c.Variant = VariantStaged
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = DefaultAllowedExtensions
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 500
	}
	if c.ProgressTTL == "" {
		c.ProgressTTL = "24h"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Variant != VariantStaged && c.Variant != VariantSingleCall {
		return fmt.Errorf("pipeline.variant must be staged or single_call (got: %s)", c.Variant)
	}
	if c.MinSegmentDuration < 0 {
		return fmt.Errorf("pipeline.min_segment_duration must not be negative")
	}
	if c.MinSpeakers > 0 && c.MaxSpeakers > 0 && c.MinSpeakers > c.MaxSpeakers {
		return fmt.Errorf("pipeline.min_speakers (%d) must be <= max_speakers (%d)", c.MinSpeakers, c.MaxSpeakers)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

// Allowed reports whether ext (with or without the dot) is an accepted format.
func (c *Config) Allowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range c.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}
