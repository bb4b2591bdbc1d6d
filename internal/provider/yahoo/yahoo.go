// Package yahoo prices instruments through Yahoo Finance. One search
// endpoint drives both ISIN resolution and alternative listings.
package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"priceresolver/internal/httpx"
	"priceresolver/internal/jsonx"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/pipeline"
	"priceresolver/internal/provider/ratelimit"
	"priceresolver/internal/symbol"
)

// Name identifies the provider in config, logs and metrics.
const Name = "yahoo"

type Config struct {
	Enabled   bool
	ChartURL  string
	SearchURL string

	MinInterval          time.Duration
	MaxRequestsPerMinute int
	Burst                int
	MaxAttempts          int
	BaseDelay            time.Duration
	Timeout              time.Duration

	Cache pipeline.Options
}

// Provider resolves prices through Yahoo Finance.
type Provider struct {
	*pipeline.Pipeline
}

func New(cfg Config, hc httpx.HTTPClient, base zerolog.Logger) *Provider {
	log := base.With().Str("provider", Name).Logger()
	policy := &ratelimit.Policy{
		Name: Name,
		Limiter: ratelimit.Limiters{
			ratelimit.NewMinInterval(cfg.MinInterval),
			ratelimit.PerMinute(cfg.MaxRequestsPerMinute, cfg.Burst),
		},
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Timeout:     cfg.Timeout,
		Logger:      log,
	}

	up := &upstream{
		configured: cfg.Enabled && cfg.ChartURL != "" && cfg.SearchURL != "",
		client: NewClient(
			WithChartURL(cfg.ChartURL),
			WithSearchURL(cfg.SearchURL),
			WithHTTPClient(hc),
			WithPolicy(policy),
		),
	}
	return &Provider{Pipeline: pipeline.New(up, cfg.Cache, base)}
}

type upstream struct {
	configured bool
	client     *Client
}

func (u *upstream) Name() string     { return Name }
func (u *upstream) Configured() bool { return u.configured }

func (u *upstream) ResolveISIN(ctx context.Context, isin string) (string, error) {
	cands, err := u.client.Search(ctx, isin)
	if err != nil {
		return "", err
	}
	if ticker, ok := symbol.BestMatch(isin, cands); ok {
		return ticker, nil
	}
	return "", fmt.Errorf("yahoo search %s: %w", isin, provider.ErrNotFound)
}

func (u *upstream) Quote(ctx context.Context, ticker, _ string) (float64, error) {
	price, err := u.client.Chart(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if !jsonx.PositivePrice(price) {
		return 0, fmt.Errorf("yahoo chart %s: price %v: %w", ticker, price, provider.ErrNotFound)
	}
	return price, nil
}

func (u *upstream) Alternative(ctx context.Context, ticker string) (string, error) {
	cands, err := u.client.Search(ctx, ticker)
	if err != nil {
		return "", err
	}
	if alt, ok := symbol.Alternative(ticker, cands); ok {
		return alt, nil
	}
	return "", fmt.Errorf("no alternative for %s: %w", ticker, provider.ErrNotFound)
}
