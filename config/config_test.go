package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testSection struct {
	MatchThreshold float64       `mapstructure:"match_threshold"`
	Lock           string        `mapstructure:"lock"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type testConfig struct {
	ServiceConfig `mapstructure:",squash"`
	Resolver      testSection `mapstructure:"resolver"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	cfg := ServiceConfig{Name: "speakerhub"}
	cfg.ApplyDefaults()
	if cfg.Environment != "development" || !cfg.Debug {
		t.Errorf("got env=%q debug=%v", cfg.Environment, cfg.Debug)
	}
	if cfg.Logging.ServiceName != "speakerhub" {
		t.Errorf("logging service name = %q", cfg.Logging.ServiceName)
	}

	prod := ServiceConfig{Name: "speakerhub", Environment: "production"}
	prod.ApplyDefaults()
	if prod.Debug {
		t.Error("production should not enable debug")
	}
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    ServiceConfig
		errMsg string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"bad environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Fatalf("expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: speakerhub
environment: staging
resolver:
  match_threshold: 0.9
  lock: redis
  timeout: 3s
`)
	var cfg testConfig
	if err := LoadConfig("speakerhub", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "missing.env"))); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "speakerhub" || cfg.Environment != "staging" {
		t.Errorf("base fields = %+v", cfg.ServiceConfig)
	}
	if cfg.Resolver.MatchThreshold != 0.9 || cfg.Resolver.Lock != "redis" {
		t.Errorf("resolver = %+v", cfg.Resolver)
	}
	if cfg.Resolver.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Resolver.Timeout)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: speakerhub\nresolver:\n  match_threshold: 0.85\n")
	t.Setenv("RESOLVER_MATCH_THRESHOLD", "0.75")
	t.Setenv("RESOLVER_LOCK", "local")

	var cfg testConfig
	if err := LoadConfig("speakerhub", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "none"))); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Resolver.MatchThreshold != 0.75 {
		t.Errorf("match_threshold = %v, want 0.75", cfg.Resolver.MatchThreshold)
	}
	// Not present in the YAML at all.
	if cfg.Resolver.Lock != "local" {
		t.Errorf("lock = %q, want local", cfg.Resolver.Lock)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yml", "name: speakerhub\n")
	envPath := writeFile(t, dir, ".env", "ENVIRONMENT=production\n")
	t.Cleanup(func() { os.Unsetenv("ENVIRONMENT") })

	var cfg testConfig
	if err := LoadConfig("speakerhub", &cfg, WithConfigFile(cfgPath), WithEnvFile(envPath)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("environment = %q", cfg.Environment)
	}
}

type fakeFS struct{ files map[string]bool }

func (f fakeFS) Exists(path string) bool   { return f.files[path] }
func (f fakeFS) LoadEnv(path string) error { return nil }

func TestFirstExistingOrder(t *testing.T) {
	fs := fakeFS{files: map[string]bool{"./config.yml": true, "./cmd/speakerhub/config.yml": true}}
	if got := firstExisting(fs, configCandidates("speakerhub")); got != "./cmd/speakerhub/config.yml" {
		t.Errorf("got %q", got)
	}
	if got := firstExisting(fakeFS{}, configCandidates("speakerhub")); got != "" {
		t.Errorf("expected no match, got %q", got)
	}
}

func TestLoadConfigRejectsNonStruct(t *testing.T) {
	var n int
	if err := LoadConfig("speakerhub", &n, WithFileSystem(fakeFS{})); err == nil {
		t.Fatal("expected error for non-struct target")
	}
}
