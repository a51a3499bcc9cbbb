// ABOUTME: Tests for config loading: defaults, file overlay, and parse errors.
// ABOUTME: Uses temp-dir YAML files; no environment mutation.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	def := Default()
	if cfg != def {
		t.Errorf("missing file should yield defaults:\ngot  %+v\nwant %+v", cfg, def)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "listen: \"0.0.0.0:9000\"\nbuild_timeout_sec: 30\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.BuildTimeout() != 30*time.Second {
		t.Errorf("BuildTimeout = %s, want 30s", cfg.BuildTimeout())
	}
	// Untouched fields keep their defaults.
	if cfg.InstallTimeoutSec != Default().InstallTimeoutSec {
		t.Errorf("InstallTimeoutSec = %d, want default", cfg.InstallTimeoutSec)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail on malformed YAML")
	}
}
