// Package openfigi maps ISINs to exchange tickers through the OpenFIGI
// symbology service.
package openfigi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"priceresolver/internal/httpx"
	"priceresolver/internal/jsonx"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/ratelimit"
)

// DefaultBaseURL is the public OpenFIGI API.
const DefaultBaseURL = "https://api.openfigi.com"

const mappingPath = "/v3/mapping"

// Client is a client for the OpenFIGI mapping API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// apiKey is optional; without it OpenFIGI applies a lower rate limit.
	apiKey     string
	httpClient httpx.HTTPClient
	policy     *ratelimit.Policy
}

// Option is a configuration option for the OpenFIGI client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithAPIKey sets the X-OPENFIGI-APIKEY header value.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient httpx.HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithPolicy sets the rate limit and retry discipline. Providers pass
// their own so mapping calls share the provider's request gate.
func WithPolicy(p *ratelimit.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// NewClient creates an OpenFIGI client.
func NewClient(options ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		policy:     &ratelimit.Policy{Name: "openfigi", MaxAttempts: 1, Logger: zerolog.Nop()},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type mappingJob struct {
	IDType  string `json:"idType"`
	IDValue string `json:"idValue"`
}

// MapISIN returns the ticker of the first instrument OpenFIGI maps isin to.
// An empty or warning-only answer is provider.ErrNotFound.
func (c *Client) MapISIN(ctx context.Context, isin string) (string, error) {
	payload, err := json.Marshal([]mappingJob{{IDType: "ID_ISIN", IDValue: isin}})
	if err != nil {
		return "", fmt.Errorf("encoding mapping request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+mappingPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-OPENFIGI-APIKEY", c.apiKey)
	}

	body, err := c.policy.Do(ctx, c.httpClient, req)
	if err != nil {
		return "", fmt.Errorf("openfigi mapping: %w", err)
	}

	data, err := jsonx.Decode(body)
	if err != nil {
		return "", err
	}
	job, ok := jsonx.Index[map[string]any](data, 0)
	if !ok {
		return "", fmt.Errorf("openfigi: unexpected response shape: %w", provider.ErrNotFound)
	}
	results, _ := jsonx.Field[[]any](job, "data")
	for i := range results {
		if ticker, ok := jsonx.Path[string](results[i], "ticker"); ok && strings.TrimSpace(ticker) != "" {
			return strings.TrimSpace(ticker), nil
		}
	}
	if warning, ok := jsonx.Field[string](job, "warning"); ok {
		return "", fmt.Errorf("openfigi: %s: %w", warning, provider.ErrNotFound)
	}
	return "", fmt.Errorf("openfigi: no ticker for %s: %w", isin, provider.ErrNotFound)
}
