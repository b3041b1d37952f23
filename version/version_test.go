package version

import (
	"strings"
	"testing"
)

func restore() func() {
	v, c, b := Version, GitCommit, BuildTime
	return func() { Version, GitCommit, BuildTime = v, c, b }
}

func TestGetUsesLinkerValues(t *testing.T) {
	defer restore()()
	Version = "1.4.0"
	GitCommit = "abcdef0123456"
	BuildTime = "2026-01-02T03:04:05Z"

	info := Get()
	if info.Version != "1.4.0" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.GitCommit != "abcdef0" {
		t.Errorf("GitCommit = %q, want truncated to 7", info.GitCommit)
	}
	if info.BuildTime != BuildTime {
		t.Errorf("BuildTime = %q", info.BuildTime)
	}
}

func TestShort(t *testing.T) {
	defer restore()()
	Version = "2.0.0"
	GitCommit = "1234567"

	if s := Short(); !strings.HasPrefix(s, "2.0.0-1234567") {
		t.Errorf("Short() = %q", s)
	}
}
