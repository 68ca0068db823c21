package model

import "time"

// DateFormat is the trading-date layout used everywhere (storage, parquet, reports).
const DateFormat = "2006-01-02"

// Instrument is one entry of the universe. Immutable after registry load.
type Instrument struct {
	Key         string            `yaml:"key"`
	Kind        string            `yaml:"kind"`
	Name        string            `yaml:"name"`
	Currency    string            `yaml:"currency"`
	Scale       float64           `yaml:"scale"`       // price multiplier (e.g. 0.01 for GBX-quoted lines), 0 means 1
	Identifiers map[string]string `yaml:"identifiers"` // source name → source-specific symbol
}

// PriceScale returns the multiplier applied to O/H/L/C when canonicalizing.
func (i Instrument) PriceScale() float64 {
	if i.Scale == 0 {
		return 1
	}
	return i.Scale
}

// Bar is one daily OHLCV observation as normalized at the provider boundary.
// Vendor response shapes never leave the provider packages; they are converted
// to Bar immediately.
type Bar struct {
	Date   time.Time // trading date, UTC midnight
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Valid reports whether the bar satisfies the OHLC consistency invariant:
// all fields non-negative, high >= max(open, close), low <= min(open, close).
func (b Bar) Valid() bool {
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 || b.Volume < 0 {
		return false
	}
	if b.High < b.Open || b.High < b.Close {
		return false
	}
	if b.Low > b.Open || b.Low > b.Close {
		return false
	}
	return true
}

// RawPriceRecord is one as-fetched observation in the raw store.
// Records are append-only: a re-fetch with different values becomes a new
// version under a later IngestedAt, never an in-place overwrite.
type RawPriceRecord struct {
	Instrument string
	Source     string
	Date       time.Time // trading date, UTC midnight
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	IngestedAt int64 // µs since epoch
}

// Bar returns the record's observation without provenance fields.
func (r RawPriceRecord) Bar() Bar {
	return Bar{Date: r.Date, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
}

// CanonicalBar is one row of the canonical dataset: exactly one per
// (instrument, date), chosen by the canonicalizer's conflict-resolution rule.
type CanonicalBar struct {
	Instrument string  `json:"instrument" parquet:"instrument"`
	Date       string  `json:"date" parquet:"date"` // DateFormat
	Open       float64 `json:"open" parquet:"open"`
	High       float64 `json:"high" parquet:"high"`
	Low        float64 `json:"low" parquet:"low"`
	Close      float64 `json:"close" parquet:"close"`
	Volume     float64 `json:"volume" parquet:"volume"`
}
