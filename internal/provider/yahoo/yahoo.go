// Package yahoo fetches daily OHLCV history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"pricefeed/internal/model"
	"pricefeed/internal/provider"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Provider implements provider.Provider against the v8 chart endpoint.
type Provider struct {
	client *resty.Client
	now    func() time.Time
}

// New creates a Yahoo provider.
func New(timeout time.Duration) *Provider {
	return NewWithBaseURL(defaultBaseURL, timeout)
}

// NewWithBaseURL creates a Yahoo provider against a custom base URL (tests).
func NewWithBaseURL(baseURL string, timeout time.Duration) *Provider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0")
	return &Provider{client: client, now: time.Now}
}

func (p *Provider) Name() string { return "yahoo" }

// chart is the subset of the chart API response this provider reads.
// Quote arrays use pointers because Yahoo emits null for holiday rows.
type chart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Daily fetches daily bars after since. A zero since asks for the full
// history via range=max; otherwise period1/period2 bound the request.
func (p *Provider) Daily(ctx context.Context, symbol string, since time.Time) ([]model.Bar, error) {
	params := map[string]string{"interval": "1d"}
	if since.IsZero() {
		params["range"] = "max"
	} else {
		params["period1"] = strconv.FormatInt(since.AddDate(0, 0, 1).Unix(), 10)
		params["period2"] = strconv.FormatInt(p.now().Unix(), 10)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo %s: %v", provider.ErrSourceUnavailable, symbol, err)
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: yahoo %s", provider.ErrRateLimited, symbol)
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: yahoo %s", provider.ErrInvalidInstrument, symbol)
	case resp.IsError():
		return nil, fmt.Errorf("%w: yahoo %s: status %d", provider.ErrSourceUnavailable, symbol, resp.StatusCode())
	}

	var c chart
	if err := json.Unmarshal(resp.Body(), &c); err != nil {
		return nil, fmt.Errorf("%w: yahoo %s: decode: %v", provider.ErrSourceUnavailable, symbol, err)
	}
	if e := c.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, fmt.Errorf("%w: yahoo %s: %s", provider.ErrInvalidInstrument, symbol, e.Description)
		}
		return nil, fmt.Errorf("%w: yahoo %s: %s: %s", provider.ErrSourceUnavailable, symbol, e.Code, e.Description)
	}
	if len(c.Chart.Result) == 0 || len(c.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo %s: no data returned", provider.ErrSourceUnavailable, symbol)
	}

	result := c.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, cl := deref(quote.Open, i), deref(quote.High, i), deref(quote.Low, i), deref(quote.Close, i)
		if o == nil || h == nil || l == nil || cl == nil {
			continue // null bar (holiday, pre-open placeholder)
		}
		day := time.Unix(ts, 0).UTC()
		date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		if !since.IsZero() && !date.After(since) {
			continue
		}
		bars = append(bars, model.Bar{
			Date:   date,
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *cl,
			Volume: value(deref(quote.Volume, i)),
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func deref(vals []*float64, i int) *float64 {
	if i < 0 || i >= len(vals) {
		return nil
	}
	return vals[i]
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
