package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("default data_dir: %q", cfg.DataDir)
	}
	if cfg.Workers != 4 {
		t.Errorf("default workers: %d", cfg.Workers)
	}
	if len(cfg.SourcePriority) != 2 || cfg.SourcePriority[0] != "stooq" {
		t.Errorf("default source_priority: %v", cfg.SourcePriority)
	}
	if cfg.RawDBPath() != filepath.Join("data", "raw", "prices.db") {
		t.Errorf("derived raw db path: %q", cfg.RawDBPath())
	}
	if cfg.CanonicalFile() != filepath.Join("data", "canonical", "ohlcv.parquet") {
		t.Errorf("derived canonical path: %q", cfg.CanonicalFile())
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricefeed.yaml")
	content := `
data_dir: /var/lib/pricefeed
workers: 8
source_priority: [yahoo, stooq]
fetch:
  timeout_sec: 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRICEFEED_WORKERS", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/pricefeed" {
		t.Errorf("data_dir: %q", cfg.DataDir)
	}
	if cfg.Workers != 2 {
		t.Errorf("env override should win, workers = %d", cfg.Workers)
	}
	if cfg.SourcePriority[0] != "yahoo" {
		t.Errorf("source_priority: %v", cfg.SourcePriority)
	}
	if cfg.Fetch.TimeoutSec != 10 {
		t.Errorf("fetch.timeout_sec: %d", cfg.Fetch.TimeoutSec)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad log level":     "log_level: loud\n",
		"too many workers":  "workers: 1000\n",
		"duplicate sources": "source_priority: [stooq, stooq]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pricefeed.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
