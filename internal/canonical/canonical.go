// Package canonical derives the canonical OHLCV dataset from a raw store
// snapshot: exactly one bar per (instrument, date), deterministically chosen.
package canonical

import (
	"sort"

	"pricefeed/internal/model"
	"pricefeed/internal/registry"
)

// Canonicalizer folds raw records into canonical bars. It never writes back
// into the raw store.
type Canonicalizer struct {
	rank     map[string]int // source name → priority rank, lower wins ties
	registry *registry.Registry
}

// New creates a Canonicalizer. priority is the configured source order used
// to break ingestion-timestamp ties; sources missing from it lose to every
// configured source and tie-break among themselves by name.
func New(priority []string, reg *registry.Registry) *Canonicalizer {
	rank := make(map[string]int, len(priority))
	for i, src := range priority {
		rank[src] = i
	}
	return &Canonicalizer{rank: rank, registry: reg}
}

// Result is the canonical dataset plus counts of excluded records.
type Result struct {
	Bars    []model.CanonicalBar
	Dropped int // records excluded for violating the OHLC invariant
}

// Build produces the canonical dataset from a snapshot. Output is a pure
// function of the snapshot and configuration: sorted by (instrument, date),
// independent of input order, wall-clock time and map iteration.
func (c *Canonicalizer) Build(snapshot []model.RawPriceRecord) Result {
	type key struct {
		instrument string
		date       string
	}

	best := make(map[key]model.RawPriceRecord, len(snapshot))
	for _, rec := range snapshot {
		k := key{rec.Instrument, rec.Date.Format(model.DateFormat)}
		cur, seen := best[k]
		if !seen || c.supersedes(rec, cur) {
			best[k] = rec
		}
	}

	res := Result{Bars: make([]model.CanonicalBar, 0, len(best))}
	for k, rec := range best {
		scale := 1.0
		if c.registry != nil {
			if inst, ok := c.registry.Get(rec.Instrument); ok {
				scale = inst.PriceScale()
			}
		}
		bar := model.Bar{
			Date:   rec.Date,
			Open:   rec.Open * scale,
			High:   rec.High * scale,
			Low:    rec.Low * scale,
			Close:  rec.Close * scale,
			Volume: rec.Volume,
		}
		// Defense in depth: the fetch boundary already rejects these, but the
		// store may hold records written by older builds.
		if !bar.Valid() {
			res.Dropped++
			continue
		}
		res.Bars = append(res.Bars, model.CanonicalBar{
			Instrument: k.instrument,
			Date:       k.date,
			Open:       bar.Open,
			High:       bar.High,
			Low:        bar.Low,
			Close:      bar.Close,
			Volume:     bar.Volume,
		})
	}

	sort.Slice(res.Bars, func(i, j int) bool {
		if res.Bars[i].Instrument != res.Bars[j].Instrument {
			return res.Bars[i].Instrument < res.Bars[j].Instrument
		}
		return res.Bars[i].Date < res.Bars[j].Date
	})
	return res
}

// supersedes reports whether a should replace b as the canonical record for
// their shared (instrument, date): later ingestion wins; ties fall back to
// configured source priority, then source name. The order is total because
// (instrument, source, date, ingested_at) is unique in the store.
func (c *Canonicalizer) supersedes(a, b model.RawPriceRecord) bool {
	if a.IngestedAt != b.IngestedAt {
		return a.IngestedAt > b.IngestedAt
	}
	ra, rb := c.sourceRank(a.Source), c.sourceRank(b.Source)
	if ra != rb {
		return ra < rb
	}
	return a.Source < b.Source
}

func (c *Canonicalizer) sourceRank(source string) int {
	if r, ok := c.rank[source]; ok {
		return r
	}
	return len(c.rank) // unconfigured sources lose to all configured ones
}
