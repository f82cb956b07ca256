package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Paths   PathsConfig
	Logging LogConfig
	Pip     PipConfig
	Runtime RuntimeConfig
	Poller  PollerConfig
}

// PathsConfig holds the on-disk layout roots.
type PathsConfig struct {
	// DataDir is the root under which apps/, pythons/ and pip-cache/ live.
	// Defaults to the directory of the running executable.
	DataDir string `envconfig:"DATA_DIR"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	Dir         string `envconfig:"LOG_DIR" default:"logs"`
}

// PipConfig holds package-installer configuration shared by all apps.
type PipConfig struct {
	// IndexURL overrides pip's package index; empty uses pip's own default.
	IndexURL string `envconfig:"PIP_INDEX_URL"`
	// CacheDir overrides pip's cache location; empty uses a cache under DataDir,
	// the literal "system" uses pip's own default.
	CacheDir string `envconfig:"PIP_CACHE_DIR"`
}

// RuntimeConfig holds Python runtime provisioning configuration.
type RuntimeConfig struct {
	// DefaultVersion is the major.minor series used when a profile does not
	// constrain the runtime.
	DefaultVersion string `envconfig:"PYTHON_VERSION" default:"3.12"`
	// PreferMirror swaps the primary and mirror download URLs.
	PreferMirror bool `envconfig:"PREFER_MIRROR" default:"false"`
}

// PollerConfig holds the background liveness poller configuration.
type PollerConfig struct {
	Interval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
}

// Load loads configuration from PYAPPIFY_-prefixed environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("pyappify", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = defaultDataDir()
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Dir:         "logs",
		},
		Runtime: RuntimeConfig{
			DefaultVersion: "3.12",
		},
		Poller: PollerConfig{
			Interval: 2 * time.Second,
		},
	}
}

// EffectivePipCacheDir resolves the configured cache mode to a concrete
// directory, or "" when pip's own default should be used.
func (c *Config) EffectivePipCacheDir() string {
	switch c.Pip.CacheDir {
	case "":
		return filepath.Join(c.Paths.DataDir, "pip-cache")
	case "system":
		return ""
	default:
		return c.Pip.CacheDir
	}
}

func defaultDataDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
