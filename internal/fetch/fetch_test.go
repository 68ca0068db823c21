package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pricefeed/internal/model"
	"pricefeed/internal/provider"
)

// fakeProvider fails a fixed number of times, then returns bars.
type fakeProvider struct {
	name     string
	failures int
	failWith error
	bars     []model.Bar
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Daily(ctx context.Context, symbol string, since time.Time) ([]model.Bar, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("%w: fake", f.failWith)
	}
	return f.bars, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func goodBar(d time.Time) model.Bar {
	return model.Bar{Date: d, Open: 100, High: 102, Low: 99, Close: 101, Volume: 1000}
}

func testOpts() Options {
	return Options{MaxRetries: 3, InitialBackoff: time.Millisecond, RequestsPerSec: 10000, Burst: 100}
}

func testInstrument() model.Instrument {
	return model.Instrument{Key: "abc", Identifiers: map[string]string{"fake": "ABC"}}
}

func TestFetchRetriesTransient(t *testing.T) {
	fake := &fakeProvider{
		name: "fake", failures: 2, failWith: provider.ErrSourceUnavailable,
		bars: []model.Bar{goodBar(day(2024, 1, 2))},
	}
	c := NewClient([]provider.Provider{fake}, testOpts())

	res, err := c.Fetch(context.Background(), testInstrument(), "fake", time.Time{}, 42)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", fake.calls)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	rec := res.Records[0]
	if rec.Instrument != "abc" || rec.Source != "fake" || rec.IngestedAt != 42 {
		t.Errorf("provenance not stamped: %+v", rec)
	}
}

func TestFetchDoesNotRetryPermanent(t *testing.T) {
	fake := &fakeProvider{name: "fake", failures: 10, failWith: provider.ErrInvalidInstrument}
	c := NewClient([]provider.Provider{fake}, testOpts())

	_, err := c.Fetch(context.Background(), testInstrument(), "fake", time.Time{}, 0)
	if !errors.Is(err, provider.ErrInvalidInstrument) {
		t.Fatalf("got %v, want ErrInvalidInstrument", err)
	}
	if fake.calls != 1 {
		t.Errorf("permanent error retried: %d attempts", fake.calls)
	}
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeProvider{name: "fake", failures: 100, failWith: provider.ErrRateLimited}
	c := NewClient([]provider.Provider{fake}, testOpts())

	_, err := c.Fetch(context.Background(), testInstrument(), "fake", time.Time{}, 0)
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
	if fake.calls != 4 { // 1 try + 3 retries
		t.Errorf("expected 4 attempts, got %d", fake.calls)
	}
}

func TestFetchDropsMalformedRecords(t *testing.T) {
	bad := model.Bar{Date: day(2024, 1, 3), Open: 100, High: 99, Low: 98, Close: 100, Volume: 10} // high < open
	negative := model.Bar{Date: day(2024, 1, 4), Open: 100, High: 102, Low: 99, Close: 101, Volume: -5}
	fake := &fakeProvider{name: "fake", bars: []model.Bar{goodBar(day(2024, 1, 2)), bad, negative}}
	c := NewClient([]provider.Provider{fake}, testOpts())

	res, err := c.Fetch(context.Background(), testInstrument(), "fake", time.Time{}, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Malformed != 2 {
		t.Errorf("expected 2 malformed, got %d", res.Malformed)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 valid record, got %d", len(res.Records))
	}
}

func TestFetchEnforcesWatermark(t *testing.T) {
	fake := &fakeProvider{name: "fake", bars: []model.Bar{
		goodBar(day(2024, 1, 2)), goodBar(day(2024, 1, 3)),
	}}
	c := NewClient([]provider.Provider{fake}, testOpts())

	res, err := c.Fetch(context.Background(), testInstrument(), "fake", day(2024, 1, 2), 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Records) != 1 || !res.Records[0].Date.Equal(day(2024, 1, 3)) {
		t.Errorf("watermark not enforced: %+v", res.Records)
	}
}

func TestFetchUnknownSource(t *testing.T) {
	c := NewClient(nil, testOpts())
	inst := model.Instrument{Key: "abc", Identifiers: map[string]string{"fake": "ABC"}}
	_, err := c.Fetch(context.Background(), inst, "fake", time.Time{}, 0)
	if !errors.Is(err, provider.ErrInvalidInstrument) {
		t.Fatalf("got %v, want ErrInvalidInstrument", err)
	}
}
