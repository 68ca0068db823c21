// Package export serializes the canonical dataset to a parquet file,
// atomically replacing any prior version.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"pricefeed/internal/model"
)

// SchemaVersion identifies the canonical column layout:
// instrument, date, open, high, low, close, volume, sorted by
// (instrument, date) ascending.
const SchemaVersion = "1"

// Write persists bars to dest. The file is written to a temporary path in
// the destination directory and renamed over dest, so readers always see
// either the previous complete file or the new complete file, never a
// truncated one. Callers pass bars already sorted by (instrument, date).
func Write(bars []model.CanonicalBar, dest string) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp-%d", dest, os.Getpid())
	if err := parquet.WriteFile(tmp, bars,
		parquet.KeyValueMetadata("schema_version", SchemaVersion)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write canonical parquet: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace canonical file: %w", err)
	}
	return nil
}

// Read loads a canonical file back, primarily for downstream consumers and
// tests.
func Read(path string) ([]model.CanonicalBar, error) {
	bars, err := parquet.ReadFile[model.CanonicalBar](path)
	if err != nil {
		return nil, fmt.Errorf("read canonical parquet: %w", err)
	}
	return bars, nil
}
