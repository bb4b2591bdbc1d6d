package finnhub

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

// DefaultBaseURL is the Finnhub REST API root.
const DefaultBaseURL = "https://finnhub.io/api/v1"

// fundTypes are substrings of the search result "type" that mark funds.
var fundTypes = []string{"ETF", "ETP", "FUND"}

// Client is a client for the Finnhub API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient httpx.HTTPClient
	policy     *ratelimit.Policy
	// query contains parameters sent with each request, the token among them.
	query url.Values
}

// ClientOption is a configuration option for the Finnhub client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
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

// NewClient creates a Finnhub client authenticating with key.
func NewClient(key string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		policy:     &ratelimit.Policy{Name: Name, MaxAttempts: 1, Logger: zerolog.Nop()},
		query:      url.Values{},
	}
	if key != "" {
		// https://finnhub.io/docs/api/authentication
		c.query.Set("token", key)
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Quote returns the current price ("c") of symbol. The value is not
// validated; Finnhub answers 0 for symbols it does not know.
func (c *Client) Quote(ctx context.Context, sym string) (float64, error) {
	data, err := c.get(ctx, "/quote", url.Values{"symbol": {sym}})
	if err != nil {
		return 0, err
	}
	price, ok := jsonx.Field[float64](data, "c")
	if !ok {
		return 0, fmt.Errorf("finnhub quote %s: missing current price: %w", sym, provider.ErrNotFound)
	}
	return price, nil
}

// Search runs a symbol lookup for q.
func (c *Client) Search(ctx context.Context, q string) ([]symbol.Candidate, error) {
	data, err := c.get(ctx, "/search", url.Values{"q": {q}})
	if err != nil {
		return nil, err
	}
	results, _ := jsonx.Field[[]any](data, "result")

	cands := make([]symbol.Candidate, 0, len(results))
	for _, r := range results {
		sym, _ := jsonx.Field[string](r, "symbol")
		display, _ := jsonx.Field[string](r, "displaySymbol")
		kind, _ := jsonx.Field[string](r, "type")
		cands = append(cands, symbol.Candidate{
			Symbol:        sym,
			DisplaySymbol: display,
			Fund:          isFundType(kind),
		})
	}
	return cands, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (any, error) {
	q := url.Values{}
	for k, vs := range c.query {
		q[k] = vs
	}
	for k, vs := range params {
		q[k] = vs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.policy.Do(ctx, c.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("finnhub %s: %w", path, err)
	}
	return jsonx.Decode(body)
}

func isFundType(kind string) bool {
	kind = strings.ToUpper(kind)
	for _, t := range fundTypes {
		if strings.Contains(kind, t) {
			return true
		}
	}
	return false
}
