// ABOUTME: YAML configuration for the orchestrator: paths, timeouts, listen address.
// ABOUTME: File values overlay defaults; CLI flags overlay both (handled in cmd).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the orchestrator reads at startup.
type Config struct {
	// Root is the temp directory holding one project per appID.
	Root string `yaml:"root"`

	// Listen is the HTTP control API address.
	Listen string `yaml:"listen"`

	// HistoryPath is the SQLite attempt-log file. Empty disables history.
	HistoryPath string `yaml:"history_path"`

	InstallTimeoutSec int `yaml:"install_timeout_sec"`
	BuildTimeoutSec   int `yaml:"build_timeout_sec"`
	StopGraceSec      int `yaml:"stop_grace_sec"`

	// ErrorTailBytes bounds build output carried on errors and records.
	ErrorTailBytes int `yaml:"error_tail_bytes"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Root:              filepath.Join(os.TempDir(), "greenroom"),
		Listen:            "127.0.0.1:2390",
		HistoryPath:       filepath.Join(os.TempDir(), "greenroom", "history.db"),
		InstallTimeoutSec: 180,
		BuildTimeoutSec:   120,
		StopGraceSec:      5,
		ErrorTailBytes:    4096,
	}
}

// Load reads path over the defaults. A missing file is not an error; a
// malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) InstallTimeout() time.Duration {
	return time.Duration(c.InstallTimeoutSec) * time.Second
}
func (c Config) BuildTimeout() time.Duration { return time.Duration(c.BuildTimeoutSec) * time.Second }
func (c Config) StopGrace() time.Duration    { return time.Duration(c.StopGraceSec) * time.Second }
