// Package finnhub prices instruments through Finnhub, fronting ISIN
// resolution with OpenFIGI.
package finnhub

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"priceresolver/internal/httpx"
	"priceresolver/internal/jsonx"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/openfigi"
	"priceresolver/internal/provider/pipeline"
	"priceresolver/internal/provider/ratelimit"
	"priceresolver/internal/symbol"
)

// Name identifies the provider in config, logs and metrics.
const Name = "finnhub"

type Config struct {
	// APIKey is required; without it every lookup is absent.
	APIKey         string
	BaseURL        string
	OpenFIGIURL    string
	OpenFIGIAPIKey string

	MinInterval          time.Duration
	MaxRequestsPerMinute int
	Burst                int
	MaxAttempts          int
	BaseDelay            time.Duration
	Timeout              time.Duration

	Cache pipeline.Options
}

// Provider resolves prices through Finnhub.
type Provider struct {
	*pipeline.Pipeline
}

// New builds the provider. Finnhub and OpenFIGI calls pass one shared
// request gate.
func New(cfg Config, hc httpx.HTTPClient, base zerolog.Logger) *Provider {
	log := base.With().Str("provider", Name).Logger()
	limiter := ratelimit.Limiters{
		ratelimit.NewMinInterval(cfg.MinInterval),
		ratelimit.PerMinute(cfg.MaxRequestsPerMinute, cfg.Burst),
	}
	policy := func(name string) *ratelimit.Policy {
		return &ratelimit.Policy{
			Name:        name,
			Limiter:     limiter,
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			Timeout:     cfg.Timeout,
			Logger:      log,
		}
	}

	up := &upstream{
		configured: cfg.APIKey != "",
		client: NewClient(cfg.APIKey,
			WithBaseURL(cfg.BaseURL),
			WithHTTPClient(hc),
			WithPolicy(policy(Name)),
		),
		figi: openfigi.NewClient(
			openfigi.WithBaseURL(cfg.OpenFIGIURL),
			openfigi.WithAPIKey(cfg.OpenFIGIAPIKey),
			openfigi.WithHTTPClient(hc),
			openfigi.WithPolicy(policy("openfigi")),
		),
		log: log,
	}
	return &Provider{Pipeline: pipeline.New(up, cfg.Cache, base)}
}

type upstream struct {
	configured bool
	client     *Client
	figi       *openfigi.Client
	log        zerolog.Logger
}

func (u *upstream) Name() string     { return Name }
func (u *upstream) Configured() bool { return u.configured }

// ResolveISIN asks OpenFIGI first and falls back to a Finnhub search.
func (u *upstream) ResolveISIN(ctx context.Context, isin string) (string, error) {
	ticker, err := u.figi.MapISIN(ctx, isin)
	if err == nil {
		return ticker, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	u.log.Debug().Err(err).Str("isin", isin).Msg("openfigi mapping failed, searching finnhub")

	cands, err := u.client.Search(ctx, isin)
	if err != nil {
		return "", err
	}
	if ticker, ok := symbol.BestMatch(isin, cands); ok {
		return ticker, nil
	}
	return "", fmt.Errorf("finnhub search %s: %w", isin, provider.ErrNotFound)
}

func (u *upstream) Quote(ctx context.Context, ticker, _ string) (float64, error) {
	price, err := u.client.Quote(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if !jsonx.PositivePrice(price) {
		return 0, fmt.Errorf("finnhub quote %s: price %v: %w", ticker, price, provider.ErrNotFound)
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
