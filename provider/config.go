package provider

import (
	"fmt"
	"time"

	"github.com/kbukum/speakerhub/httpclient"
)

// Config is the configuration section shared by every collaborator client
// (diarization, transcription, llm, analysis).
type Config struct {
	// Provider selects the registered backend by name.
	Provider string `mapstructure:"provider"`

	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`

	// Timeout bounds a single HTTP call. Long audio needs generous values.
	Timeout string `mapstructure:"timeout"`

	// Retries is the number of attempts per call, including the first.
	Retries int `mapstructure:"retries"`

	// MaxFailures consecutive failures open the circuit for ResetTimeout.
	MaxFailures  int    `mapstructure:"max_failures"`
	ResetTimeout string `mapstructure:"reset_timeout"`
}

// ApplyDefaults fills zero-valued fields. defaultProvider and defaultURL are
// supplied by the owning section.
func (c *Config) ApplyDefaults(defaultProvider, defaultURL string) {
	if c.Provider == "" {
		c.Provider = defaultProvider
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultURL
	}
	if c.Timeout == "" {
		c.Timeout = "300s"
	}
	if c.Retries <= 0 {
		c.Retries = 2
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.ResetTimeout == "" {
		c.ResetTimeout = "30s"
	}
}

// Validate checks the section for obvious mistakes.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider: name is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider %s: invalid timeout %q: %w", c.Provider, c.Timeout, err)
	}
	if _, err := time.ParseDuration(c.ResetTimeout); err != nil {
		return fmt.Errorf("provider %s: invalid reset_timeout %q: %w", c.Provider, c.ResetTimeout, err)
	}
	return nil
}

// TimeoutDuration returns Timeout parsed, or 300s when unset or invalid.
func (c *Config) TimeoutDuration() time.Duration {
	return parseOr(c.Timeout, 300*time.Second)
}

// ResetTimeoutDuration returns ResetTimeout parsed, or 30s when unset or invalid.
func (c *Config) ResetTimeoutDuration() time.Duration {
	return parseOr(c.ResetTimeout, 30*time.Second)
}

func parseOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// HTTPClient builds a sidecar client for this section. A non-empty APIKey is
// sent as a bearer token.
func (c *Config) HTTPClient() *httpclient.Client {
	hc := httpclient.Config{BaseURL: c.BaseURL, Timeout: c.TimeoutDuration()}
	if c.APIKey != "" {
		hc.Auth = httpclient.BearerAuth(c.APIKey)
	}
	return httpclient.New(hc)
}
