// Package store persists raw price records in a SQLite database.
//
// The store is append-only: one row per (instrument, source, date,
// ingested_at). A re-fetch of an already-present date is a no-op when the
// values match and a new version under a later ingestion timestamp when they
// differ, so fetch history stays auditable. All workers share one database
// file; writes are serialized by a store-level mutex.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"pricefeed/internal/model"
)

// ErrStoreCorrupt marks an unreadable raw store. Fatal for canonicalization.
var ErrStoreCorrupt = errors.New("raw store corrupt")

// Store is a handle to the raw price database. Open at process start, Close
// at the end; pass explicitly to the updater and the canonicalization path.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS raw_prices (
			instrument  TEXT    NOT NULL,
			source      TEXT    NOT NULL,
			date        TEXT    NOT NULL,
			open        REAL    NOT NULL,
			high        REAL    NOT NULL,
			low         REAL    NOT NULL,
			close       REAL    NOT NULL,
			volume      REAL    NOT NULL,
			ingested_at INTEGER NOT NULL,
			PRIMARY KEY (instrument, source, date, ingested_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_watermark ON raw_prices(instrument, source, date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Watermark returns the latest trading date stored for (instrument, source),
// or the zero time when nothing is stored yet.
func (s *Store) Watermark(ctx context.Context, instrument, source string) (time.Time, error) {
	var max sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM raw_prices WHERE instrument = ? AND source = ?`,
		instrument, source).Scan(&max)
	if err != nil {
		return time.Time{}, fmt.Errorf("query watermark for %s/%s: %w", instrument, source, err)
	}
	if !max.Valid {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(model.DateFormat, max.String, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q for %s/%s", ErrStoreCorrupt, max.String, instrument, source)
	}
	return t, nil
}

// AppendBatch writes one instrument's records in a single transaction and
// returns how many rows were actually inserted. Records whose latest stored
// version carries identical values are skipped; differing values insert a
// superseding version. A failed batch leaves the store unchanged.
func (s *Store) AppendBatch(ctx context.Context, recs []model.RawPriceRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	latest, err := tx.PrepareContext(ctx,
		`SELECT open, high, low, close, volume FROM raw_prices
		 WHERE instrument = ? AND source = ? AND date = ?
		 ORDER BY ingested_at DESC LIMIT 1`)
	if err != nil {
		return 0, fmt.Errorf("prepare lookup: %w", err)
	}
	defer latest.Close()

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_prices (instrument, source, date, open, high, low, close, volume, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	inserted := 0
	for _, r := range recs {
		date := r.Date.Format(model.DateFormat)

		var o, h, l, c, v float64
		err := latest.QueryRowContext(ctx, r.Instrument, r.Source, date).Scan(&o, &h, &l, &c, &v)
		switch {
		case err == nil:
			if o == r.Open && h == r.High && l == r.Low && c == r.Close && v == r.Volume {
				continue // identical re-fetch, no-op
			}
		case !errors.Is(err, sql.ErrNoRows):
			return 0, fmt.Errorf("lookup %s/%s/%s: %w", r.Instrument, r.Source, date, err)
		}

		if _, err := insert.ExecContext(ctx, r.Instrument, r.Source, date,
			r.Open, r.High, r.Low, r.Close, r.Volume, r.IngestedAt); err != nil {
			return 0, fmt.Errorf("insert %s/%s/%s: %w", r.Instrument, r.Source, date, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

// Snapshot returns every raw record in a fixed global order (instrument,
// date, source, ingested_at), the deterministic input to canonicalization.
// Read failures surface as ErrStoreCorrupt.
func (s *Store) Snapshot(ctx context.Context) ([]model.RawPriceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT instrument, source, date, open, high, low, close, volume, ingested_at
		 FROM raw_prices
		 ORDER BY instrument, date, source, ingested_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	defer rows.Close()

	var recs []model.RawPriceRecord
	for rows.Next() {
		var r model.RawPriceRecord
		var date string
		if err := rows.Scan(&r.Instrument, &r.Source, &date,
			&r.Open, &r.High, &r.Low, &r.Close, &r.Volume, &r.IngestedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		r.Date, err = time.ParseInLocation(model.DateFormat, date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrStoreCorrupt, date)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	return recs, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
