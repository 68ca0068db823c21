// Package fetch wraps providers with retry, rate limiting and boundary
// validation. Transient failures (source unavailable, rate limited) are
// retried with exponential backoff; permanent ones are returned immediately.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"pricefeed/internal/model"
	"pricefeed/internal/provider"
)

// Options tunes retry and rate-limit behavior.
type Options struct {
	MaxRetries     uint64        // retry attempts after the first try
	InitialBackoff time.Duration // first backoff interval
	RequestsPerSec float64       // shared limit across all providers and workers
	Burst          int
}

// Result is the outcome of one instrument+source fetch.
type Result struct {
	Records   []model.RawPriceRecord
	Malformed int // records dropped for violating the OHLC invariant
}

// Client fetches validated raw records through registered providers.
type Client struct {
	providers map[string]provider.Provider
	limiter   *rate.Limiter
	opts      Options
}

// NewClient creates a Client over the given providers.
func NewClient(providers []provider.Provider, opts Options) *Client {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 4
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	byName := make(map[string]provider.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Client{
		providers: byName,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		opts:      opts,
	}
}

// Sources returns the names of all registered providers.
func (c *Client) Sources() []string {
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch retrieves records for one instrument from one source, covering
// (since, now]. Returned records carry the instrument key, source name and
// the supplied ingestion timestamp. Records violating the OHLC invariant are
// excluded and counted, never coerced.
func (c *Client) Fetch(ctx context.Context, inst model.Instrument, source string, since time.Time, ingestedAt int64) (Result, error) {
	symbol, ok := inst.Identifiers[source]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s has no %s identifier", provider.ErrInvalidInstrument, inst.Key, source)
	}
	p, ok := c.providers[source]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown source %q", provider.ErrInvalidInstrument, source)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialBackoff

	var bars []model.Bar
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		bs, err := p.Daily(ctx, symbol, since)
		if err != nil {
			if !provider.Transient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		bars = bs
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("fetch retry", "instrument", inst.Key, "source", source, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, c.opts.MaxRetries), ctx),
		notify)
	if err != nil {
		return Result{}, err
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	res := Result{Records: make([]model.RawPriceRecord, 0, len(bars))}
	for _, b := range bars {
		if !since.IsZero() && !b.Date.After(since) {
			continue // provider returned data at or before the watermark
		}
		if !b.Valid() {
			res.Malformed++
			slog.Debug("record dropped", "error", provider.ErrMalformedRecord,
				"instrument", inst.Key, "source", source, "date", b.Date.Format(model.DateFormat))
			continue
		}
		res.Records = append(res.Records, model.RawPriceRecord{
			Instrument: inst.Key,
			Source:     source,
			Date:       b.Date,
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			IngestedAt: ingestedAt,
		})
	}
	return res, nil
}
