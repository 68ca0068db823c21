// Package stooq fetches daily OHLCV history from the Stooq CSV endpoint.
package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"pricefeed/internal/model"
	"pricefeed/internal/provider"
)

const defaultBaseURL = "https://stooq.com"

// Provider implements provider.Provider against Stooq's daily CSV download.
type Provider struct {
	client *resty.Client
}

// New creates a Stooq provider.
func New(timeout time.Duration) *Provider {
	return NewWithBaseURL(defaultBaseURL, timeout)
}

// NewWithBaseURL creates a Stooq provider against a custom base URL (tests).
func NewWithBaseURL(baseURL string, timeout time.Duration) *Provider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0")
	return &Provider{client: client}
}

func (p *Provider) Name() string { return "stooq" }

// Daily downloads the full history CSV and keeps bars strictly after since.
// Stooq has no range parameter, so filtering happens client-side.
func (p *Provider) Daily(ctx context.Context, symbol string, since time.Time) ([]model.Bar, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"s": symbol, "i": "d"}).
		Get("/q/d/l/")
	if err != nil {
		return nil, fmt.Errorf("%w: stooq %s: %v", provider.ErrSourceUnavailable, symbol, err)
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: stooq %s", provider.ErrRateLimited, symbol)
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: stooq %s", provider.ErrInvalidInstrument, symbol)
	case resp.IsError():
		return nil, fmt.Errorf("%w: stooq %s: status %d", provider.ErrSourceUnavailable, symbol, resp.StatusCode())
	}

	body := resp.String()
	// Stooq answers 200 with a short text body for unknown symbols and when
	// the daily hit limit is reached.
	switch {
	case strings.HasPrefix(body, "No data"):
		return nil, fmt.Errorf("%w: stooq %s", provider.ErrInvalidInstrument, symbol)
	case strings.Contains(body, "Exceeded the daily hits limit"):
		return nil, fmt.Errorf("%w: stooq %s: daily hit limit", provider.ErrRateLimited, symbol)
	}

	bars, err := parseCSV(body, since)
	if err != nil {
		return nil, fmt.Errorf("%w: stooq %s: %v", provider.ErrSourceUnavailable, symbol, err)
	}
	return bars, nil
}

// parseCSV reads the Date,Open,High,Low,Close[,Volume] layout. Rows without a
// parsable date or close are skipped; a missing volume is zero, matching
// index series that Stooq publishes without volume.
func parseCSV(body string, since time.Time) ([]model.Bar, error) {
	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	bars := make([]model.Bar, 0, len(rows)-1)
	for _, row := range rows[1:] {
		date, err := time.ParseInLocation(model.DateFormat, field(row, col["date"]), time.UTC)
		if err != nil {
			continue
		}
		if !since.IsZero() && !date.After(since) {
			continue
		}
		c, err := strconv.ParseFloat(field(row, col["close"]), 64)
		if err != nil {
			continue
		}
		b := model.Bar{
			Date:  date,
			Open:  parseFloat(row, col, "open"),
			High:  parseFloat(row, col, "high"),
			Low:   parseFloat(row, col, "low"),
			Close: c,
		}
		if vi, ok := col["volume"]; ok {
			b.Volume = parseFloatAt(row, vi)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFloat(row []string, col map[string]int, name string) float64 {
	return parseFloatAt(row, col[name])
}

func parseFloatAt(row []string, i int) float64 {
	v, err := strconv.ParseFloat(field(row, i), 64)
	if err != nil {
		return 0
	}
	return v
}
