package speaker

import (
	"fmt"
	"time"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Merge modes for the source speaker's embeddings.
const (
	MergeTombstone = "tombstone"
	MergeReassign  = "reassign"
)

// Config holds identity resolution settings.
type Config struct {
	// MatchThreshold is the minimum mean similarity to reuse an identity.
	MatchThreshold float64 `mapstructure:"match_threshold"`
	// NewSpeakerThreshold is the lower bound of the ambiguous band. A new
	// speaker whose best candidate scores at or above it is flagged for review.
	NewSpeakerThreshold float64 `mapstructure:"new_speaker_threshold"`
	Lock                string  `mapstructure:"lock"`
	LockTTL             string  `mapstructure:"lock_ttl"`
	MergeMode           string  `mapstructure:"merge_mode"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MatchThreshold == 0 {
		c.MatchThreshold = 0.85
	}
	if c.NewSpeakerThreshold == 0 {
		c.NewSpeakerThreshold = 0.70
	}
	if c.Lock == "" {
		c.Lock = LockLocal
	}
	if c.LockTTL == "" {
		c.LockTTL = "30s"
	}
	if c.MergeMode == "" {
		c.MergeMode = MergeTombstone
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("resolver.match_threshold must be in (0, 1] (got: %v)", c.MatchThreshold)
	}
	if c.NewSpeakerThreshold < 0 || c.NewSpeakerThreshold > c.MatchThreshold {
		return fmt.Errorf("resolver.new_speaker_threshold must be in [0, match_threshold] (got: %v)", c.NewSpeakerThreshold)
	}
	if c.Lock != LockLocal && c.Lock != LockRedis {
		return fmt.Errorf("resolver.lock must be local or redis (got: %s)", c.Lock)
	}
	if c.MergeMode != MergeTombstone && c.MergeMode != MergeReassign {
		return fmt.Errorf("resolver.merge_mode must be tombstone or reassign (got: %s)", c.MergeMode)
	}
	if _, err := time.ParseDuration(c.LockTTL); err != nil {
		return fmt.Errorf("invalid lock_ttl %q: %w", c.LockTTL, err)
	}
	return nil
}

// LockTTLDuration returns the parsed lock TTL.
func (c *Config) LockTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.LockTTL)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
