package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"priceresolver/internal/httpx"
	"priceresolver/internal/jsonx"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/ratelimit"
	"priceresolver/internal/symbol"
)

const (
	DefaultChartURL  = "https://query1.finance.yahoo.com/v8/finance/chart"
	DefaultSearchURL = "https://query1.finance.yahoo.com/v1/finance/search"
)

// fundIssuers appear in the names of exchange-traded and mutual funds.
var fundIssuers = []string{
	"ishares", "vanguard", "xtrackers", "amundi", "spdr", "invesco",
	"lyxor", "wisdomtree", "vaneck", "ucits", "etf",
}

// Client is a client for the unofficial Yahoo Finance chart and search
// endpoints.
type Client struct {
	chartURL   string
	searchURL  string
	httpClient httpx.HTTPClient
	policy     *ratelimit.Policy
}

// ClientOption is a configuration option for the Yahoo client.
type ClientOption func(*Client)

// WithChartURL sets the chart endpoint; the symbol is appended as a path
// segment.
func WithChartURL(u string) ClientOption {
	return func(c *Client) {
		c.chartURL = strings.TrimRight(u, "/")
	}
}

// WithSearchURL sets the search endpoint.
func WithSearchURL(u string) ClientOption {
	return func(c *Client) {
		c.searchURL = u
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient httpx.HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithPolicy sets the rate limit and retry discipline.
func WithPolicy(p *ratelimit.Policy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient creates a Yahoo client pointing at the public endpoints.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		chartURL:   DefaultChartURL,
		searchURL:  DefaultSearchURL,
		httpClient: http.DefaultClient,
		policy:     &ratelimit.Policy{Name: Name, MaxAttempts: 1, Logger: zerolog.Nop()},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Chart returns the latest usable intraday close of sym, or the regular
// market price when the series has none.
func (c *Client) Chart(ctx context.Context, sym string) (float64, error) {
	q := url.Values{"interval": {"1m"}, "range": {"1d"}}
	data, err := c.get(ctx, c.chartURL+"/"+url.PathEscape(sym)+"?"+q.Encode())
	if err != nil {
		return 0, err
	}

	if chartErr, ok := jsonx.Path[map[string]any](data, "chart", "error"); ok {
		desc, _ := jsonx.Field[string](chartErr, "description")
		return 0, fmt.Errorf("yahoo chart %s: %s: %w", sym, desc, provider.ErrNotFound)
	}
	results, _ := jsonx.Path[[]any](data, "chart", "result")
	result, ok := jsonx.Index[map[string]any](results, 0)
	if !ok {
		return 0, fmt.Errorf("yahoo chart %s: empty result: %w", sym, provider.ErrNotFound)
	}

	quotes, _ := jsonx.Path[[]any](result, "indicators", "quote")
	series, _ := jsonx.Index[map[string]any](quotes, 0)
	closes, _ := jsonx.Field[[]any](series, "close")
	for i := len(closes) - 1; i >= 0; i-- {
		if v, ok := jsonx.Index[float64](closes, i); ok && jsonx.PositivePrice(v) {
			return v, nil
		}
	}

	if v, ok := jsonx.Path[float64](result, "meta", "regularMarketPrice"); ok {
		return v, nil
	}
	return 0, fmt.Errorf("yahoo chart %s: no price: %w", sym, provider.ErrNotFound)
}

// Search runs the unified search for q, which may be a name, ticker or ISIN.
func (c *Client) Search(ctx context.Context, q string) ([]symbol.Candidate, error) {
	params := url.Values{"q": {q}, "quotesCount": {"10"}, "newsCount": {"0"}}
	data, err := c.get(ctx, c.searchURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	quotes, _ := jsonx.Field[[]any](data, "quotes")

	cands := make([]symbol.Candidate, 0, len(quotes))
	for _, r := range quotes {
		sym, _ := jsonx.Field[string](r, "symbol")
		kind, _ := jsonx.Field[string](r, "quoteType")
		short, _ := jsonx.Field[string](r, "shortname")
		long, _ := jsonx.Field[string](r, "longname")
		cands = append(cands, symbol.Candidate{
			Symbol: sym,
			Fund:   isFund(kind, short, long),
		})
	}
	return cands, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.policy.Do(ctx, c.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: %w", err)
	}
	return jsonx.Decode(body)
}

// isFund classifies a search result by its quote type, or failing that by
// a known fund issuer in its name.
func isFund(quoteType string, names ...string) bool {
	switch strings.ToUpper(quoteType) {
	case "ETF", "MUTUALFUND":
		return true
	}
	for _, name := range names {
		name = strings.ToLower(name)
		for _, issuer := range fundIssuers {
			if strings.Contains(name, issuer) {
				return true
			}
		}
	}
	return false
}
