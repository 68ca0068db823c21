// Package provider defines the contract a price source must satisfy and the
// error taxonomy shared by all sources. Vendor-specific response shapes stay
// inside the concrete provider packages; everything past this boundary is a
// model.Bar.
package provider

import (
	"context"
	"errors"
	"time"

	"pricefeed/internal/model"
)

// Sentinel errors. Providers classify every failure into one of these so the
// caller can decide between retry (transient) and skip (permanent) without
// inspecting vendor responses.
var (
	// ErrSourceUnavailable marks transient upstream failures (network errors,
	// 5xx responses, empty responses for known-good symbols).
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited marks upstream throttling (429).
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidInstrument marks a symbol the source does not know. Not retried.
	ErrInvalidInstrument = errors.New("invalid instrument")

	// ErrMalformedRecord marks a record failing the OHLC consistency invariant.
	// Such records are dropped and counted, never coerced.
	ErrMalformedRecord = errors.New("malformed record")
)

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrRateLimited)
}

// Provider fetches daily price history for one source-specific symbol.
type Provider interface {
	// Name returns the source name used in the raw store and in
	// source-priority configuration.
	Name() string

	// Daily returns daily bars strictly after since, ascending by date.
	// A zero since requests full available history.
	Daily(ctx context.Context, symbol string, since time.Time) ([]model.Bar, error)
}
