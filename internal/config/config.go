// Package config loads application configuration from a YAML file with
// environment variable overrides, fills defaults, and validates the result.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FetchConfig tunes the retry/backoff/rate-limit behavior of the fetcher.
type FetchConfig struct {
	TimeoutSec        int     `yaml:"timeout_sec" validate:"min=1,max=600"`
	MaxRetries        uint64  `yaml:"max_retries" validate:"max=10"`
	InitialBackoffMS  int     `yaml:"initial_backoff_ms" validate:"min=1"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" validate:"min=1"`
}

// Config holds all application configuration.
type Config struct {
	DataDir         string      `yaml:"data_dir" validate:"required"`
	RawDB           string      `yaml:"raw_db"`
	CanonicalPath   string      `yaml:"canonical_path"`
	InstrumentsFile string      `yaml:"instruments_file" validate:"required"`
	SourcePriority  []string    `yaml:"source_priority" validate:"min=1,unique"`
	Workers         int         `yaml:"workers" validate:"min=1,max=64"`
	LogLevel        string      `yaml:"log_level" validate:"oneof=debug info warn error"`
	Fetch           FetchConfig `yaml:"fetch"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides, then defaults. A missing file is not an error; env + defaults
// still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PRICEFEED_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PRICEFEED_INSTRUMENTS"); v != "" {
		cfg.InstrumentsFile = v
	}
	if v := os.Getenv("PRICEFEED_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.InstrumentsFile == "" {
		cfg.InstrumentsFile = "instruments.yaml"
	}
	if len(cfg.SourcePriority) == 0 {
		cfg.SourcePriority = []string{"stooq", "yahoo"}
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Fetch.TimeoutSec == 0 {
		cfg.Fetch.TimeoutSec = 30
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 4
	}
	if cfg.Fetch.InitialBackoffMS == 0 {
		cfg.Fetch.InitialBackoffMS = 500
	}
	if cfg.Fetch.RequestsPerSecond == 0 {
		cfg.Fetch.RequestsPerSecond = 2
	}
	if cfg.Fetch.Burst == 0 {
		cfg.Fetch.Burst = 1
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// RawDBPath returns the raw store database path.
func (c *Config) RawDBPath() string {
	if c.RawDB != "" {
		return c.RawDB
	}
	return filepath.Join(c.DataDir, "raw", "prices.db")
}

// CanonicalFile returns the canonical dataset path.
func (c *Config) CanonicalFile() string {
	if c.CanonicalPath != "" {
		return c.CanonicalPath
	}
	return filepath.Join(c.DataDir, "canonical", "ohlcv.parquet")
}

// ReportDir returns where update run reports are written.
func (c *Config) ReportDir() string {
	return c.DataDir
}
