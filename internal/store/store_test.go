package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pricefeed/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "raw", "prices.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(inst, source string, date time.Time, close float64, ingested int64) model.RawPriceRecord {
	return model.RawPriceRecord{
		Instrument: inst, Source: source, Date: date,
		Open: close - 1, High: close + 1, Low: close - 2, Close: close, Volume: 1000,
		IngestedAt: ingested,
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestAppendBatchIsIdempotent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	batch := []model.RawPriceRecord{
		rec("abc", "stooq", day(2), 101, 1000),
		rec("abc", "stooq", day(3), 102, 1000),
	}
	n, err := s.AppendBatch(ctx, batch)
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if n != 2 {
		t.Fatalf("first append inserted %d, want 2", n)
	}

	// Same values re-fetched later must be a no-op.
	again := []model.RawPriceRecord{
		rec("abc", "stooq", day(2), 101, 2000),
		rec("abc", "stooq", day(3), 102, 2000),
	}
	n, err = s.AppendBatch(ctx, again)
	if err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	if n != 0 {
		t.Fatalf("identical re-fetch inserted %d rows, want 0", n)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 2 {
		t.Fatalf("store has %d rows, want 2", len(snap))
	}
}

func TestAppendBatchSupersedesChangedValues(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.AppendBatch(ctx, []model.RawPriceRecord{rec("abc", "stooq", day(2), 101, 1000)}); err != nil {
		t.Fatal(err)
	}

	// Corrected close re-ingested later becomes a new version, not an overwrite.
	corrected := rec("abc", "stooq", day(2), 101.5, 2000)
	n, err := s.AppendBatch(ctx, []model.RawPriceRecord{corrected})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("superseding insert count = %d, want 1", n)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 2 {
		t.Fatalf("expected both versions kept, got %d rows", len(snap))
	}
	if snap[0].IngestedAt != 1000 || snap[1].IngestedAt != 2000 {
		t.Errorf("snapshot not ordered by ingestion: %+v", snap)
	}
}

func TestWatermark(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	wm, err := s.Watermark(ctx, "abc", "stooq")
	if err != nil {
		t.Fatal(err)
	}
	if !wm.IsZero() {
		t.Fatalf("empty store watermark = %v, want zero", wm)
	}

	if _, err := s.AppendBatch(ctx, []model.RawPriceRecord{
		rec("abc", "stooq", day(2), 101, 1000),
		rec("abc", "stooq", day(5), 104, 1000),
		rec("abc", "yahoo", day(9), 104, 1000),
	}); err != nil {
		t.Fatal(err)
	}

	wm, err = s.Watermark(ctx, "abc", "stooq")
	if err != nil {
		t.Fatal(err)
	}
	if !wm.Equal(day(5)) {
		t.Errorf("watermark = %v, want %v (per source, not per instrument)", wm, day(5))
	}
}

func TestSnapshotDeterministicOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.AppendBatch(ctx, []model.RawPriceRecord{
		rec("xyz", "stooq", day(3), 50, 1000),
		rec("abc", "yahoo", day(2), 101, 1000),
		rec("abc", "stooq", day(2), 100, 1000),
	}); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct{ inst, source string }{
		{"abc", "stooq"}, {"abc", "yahoo"}, {"xyz", "stooq"},
	}
	for i, w := range want {
		if snap[i].Instrument != w.inst || snap[i].Source != w.source {
			t.Errorf("snap[%d] = %s/%s, want %s/%s", i, snap[i].Instrument, snap[i].Source, w.inst, w.source)
		}
	}
}
