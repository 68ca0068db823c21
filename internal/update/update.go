// Package update orchestrates fetching across the whole instrument universe:
// a bounded worker pool, per-instrument isolation, watermark-driven
// incremental fetches and a deterministic run report.
package update

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"pricefeed/internal/fetch"
	"pricefeed/internal/model"
	"pricefeed/internal/registry"
	"pricefeed/internal/store"
)

// Fetcher is the slice of fetch.Client the updater needs; tests substitute
// fakes.
type Fetcher interface {
	Fetch(ctx context.Context, inst model.Instrument, source string, since time.Time, ingestedAt int64) (fetch.Result, error)
}

// Updater runs one update cycle over the universe.
type Updater struct {
	store     *store.Store
	fetcher   Fetcher
	registry  *registry.Registry
	priority  []string
	workers   int
	reportDir string
	now       func() time.Time
}

// New creates an Updater. reportDir may be empty to skip run-report files.
func New(st *store.Store, f Fetcher, reg *registry.Registry, priority []string, workers int, reportDir string) *Updater {
	if workers < 1 {
		workers = 1
	}
	return &Updater{
		store:     st,
		fetcher:   f,
		registry:  reg,
		priority:  priority,
		workers:   workers,
		reportDir: reportDir,
		now:       time.Now,
	}
}

// Run processes every instrument and returns the report. A canceled context
// stops dispatching new instruments; in-flight fetches finish and commit, so
// re-running after an interrupt converges on the same store content. The
// report covers only processed instruments in that case, alongside ctx.Err().
func (u *Updater) Run(ctx context.Context) (*Report, error) {
	instruments := u.registry.Instruments()

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: u.now().UTC(),
		Outcomes:  make(map[string]Outcome, len(instruments)),
	}
	slog.Info("update run starting",
		"run_id", report.RunID, "instruments", len(instruments), "workers", u.workers)

	pending := make(chan model.Instrument, len(instruments))
	for _, inst := range instruments {
		pending <- inst
	}
	close(pending)

	results := make(chan Outcome, len(instruments))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range results {
			report.add(o)
		}
	}()

	workers := u.workers
	if workers > len(instruments) {
		workers = len(instruments)
	}
	workerDone := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { workerDone <- struct{}{} }()
			for {
				// Cancellation only gates dispatch: a job already dequeued
				// runs detached so its fetch finishes and its batch commits.
				if ctx.Err() != nil {
					return
				}
				select {
				case <-ctx.Done():
					return
				case inst, ok := <-pending:
					if !ok {
						return
					}
					results <- u.updateInstrument(context.WithoutCancel(ctx), inst)
				}
			}
		}()
	}
	for i := 0; i < workers; i++ {
		<-workerDone
	}
	close(results)
	<-done

	report.FinishedAt = u.now().UTC()
	slog.Info("update run finished",
		"run_id", report.RunID,
		"updated", report.Updated, "skipped", report.Skipped, "failed", report.Failed,
		"duration", report.FinishedAt.Sub(report.StartedAt))

	if u.reportDir != "" {
		if err := report.writeFiles(u.reportDir); err != nil {
			slog.Warn("could not write run report", "error", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// updateInstrument tries the configured sources in priority order and commits
// the first successful fetch as one transaction. Failures fall through to the
// next source; the last failure is reported if every source fails.
func (u *Updater) updateInstrument(ctx context.Context, inst model.Instrument) Outcome {
	ingestedAt := u.now().UTC().UnixMicro()
	yesterday := u.yesterday()

	var lastErr error
	tried := 0
	for _, source := range u.priority {
		if _, ok := inst.Identifiers[source]; !ok {
			continue
		}
		tried++

		wm, err := u.store.Watermark(ctx, inst.Key, source)
		if err != nil {
			lastErr = err
			continue
		}
		if !wm.Before(yesterday) {
			slog.Debug("instrument up to date", "instrument", inst.Key, "source", source,
				"watermark", wm.Format(model.DateFormat))
			return Outcome{Instrument: inst.Key, Source: source, Skipped: true}
		}

		res, err := u.fetcher.Fetch(ctx, inst, source, wm, ingestedAt)
		if err != nil {
			slog.Warn("fetch failed", "instrument", inst.Key, "source", source, "error", err)
			lastErr = fmt.Errorf("%s: %w", source, err)
			continue
		}

		inserted, err := u.store.AppendBatch(ctx, res.Records)
		if err != nil {
			slog.Error("append failed", "instrument", inst.Key, "source", source, "error", err)
			lastErr = fmt.Errorf("%s: %w", source, err)
			continue
		}

		if inserted == 0 && res.Malformed == 0 {
			// Fetch succeeded but brought nothing new (weekend, already covered).
			return Outcome{Instrument: inst.Key, Source: source, Skipped: true}
		}
		slog.Info("instrument updated", "instrument", inst.Key, "source", source,
			"inserted", inserted, "malformed", res.Malformed)
		return Outcome{Instrument: inst.Key, Source: source, Inserted: inserted, Malformed: res.Malformed}
	}

	if lastErr == nil {
		if tried == 0 {
			lastErr = fmt.Errorf("no identifier for any configured source %v", u.priority)
		} else {
			lastErr = fmt.Errorf("no source succeeded")
		}
	}
	return Outcome{Instrument: inst.Key, Error: lastErr.Error()}
}

// yesterday is the most recent trading date that can be complete. Fetching is
// skipped when the watermark already reaches it.
func (u *Updater) yesterday() time.Time {
	now := u.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// SetNow overrides the clock (tests).
func (u *Updater) SetNow(now func() time.Time) { u.now = now }

// SetWorkers overrides the configured pool size, for CLI flags.
func (u *Updater) SetWorkers(n int) {
	if n > 0 {
		u.workers = n
	}
}

// Keys returns the report's instrument keys in sorted order, so output is
// deterministic regardless of worker completion order.
func (r *Report) Keys() []string {
	keys := make([]string, 0, len(r.Outcomes))
	for k := range r.Outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
