// Package factory builds the configured price provider.
package factory

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"priceresolver/internal/config"
	"priceresolver/internal/httpx"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/finnhub"
	"priceresolver/internal/provider/pipeline"
	"priceresolver/internal/provider/yahoo"
)

// Factory hands out the active provider. It holds a single instance, so
// every caller shares its rate limiter and caches.
type Factory struct {
	active provider.Provider
}

// New builds the provider named by cfg.Provider.Active. Outbound traffic
// goes through hc wrapped in an httpx.LoggingClient. A missing credential
// is not an error here; the provider then answers absent and says so in
// its logs.
func New(cfg config.Config, hc httpx.HTTPClient, log zerolog.Logger) (*Factory, error) {
	logged := httpx.NewLoggingClient(hc, log.With().Str("component", "http").Logger())

	var p provider.Provider
	switch name := strings.ToLower(strings.TrimSpace(cfg.Provider.Active)); name {
	case finnhub.Name, "":
		f := cfg.Finnhub
		if f.APIKey == "" {
			log.Warn().Str("provider", finnhub.Name).Msg("FINNHUB_API_KEY not set; all lookups will be absent")
		}
		p = finnhub.New(finnhub.Config{
			APIKey:               f.APIKey,
			BaseURL:              f.BaseURL,
			OpenFIGIURL:          f.OpenFIGIURL,
			OpenFIGIAPIKey:       f.OpenFIGIAPIKey,
			MinInterval:          f.MinInterval(),
			MaxRequestsPerMinute: f.MaxRequestsPerMinute,
			Burst:                f.Burst,
			MaxAttempts:          f.MaxAttempts,
			BaseDelay:            f.BaseDelay(),
			Timeout:              f.Timeout(),
			Cache:                cacheOptions(f.Limits),
		}, logged, log)
	case yahoo.Name:
		y := cfg.Yahoo
		if !y.Enabled {
			log.Warn().Str("provider", yahoo.Name).Msg("yahoo.enabled=false; all lookups will be absent")
		}
		p = yahoo.New(yahoo.Config{
			Enabled:              y.Enabled,
			ChartURL:             y.ChartURL,
			SearchURL:            y.SearchURL,
			MinInterval:          y.MinInterval(),
			MaxRequestsPerMinute: y.MaxRequestsPerMinute,
			Burst:                y.Burst,
			MaxAttempts:          y.MaxAttempts,
			BaseDelay:            y.BaseDelay(),
			Timeout:              y.Timeout(),
			Cache:                cacheOptions(y.Limits),
		}, logged, log)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Active)
	}

	log.Info().Str("provider", p.Name()).Msg("price provider ready")
	return &Factory{active: p}, nil
}

// Provider returns the active provider.
func (f *Factory) Provider() provider.Provider {
	return f.active
}

func cacheOptions(l config.Limits) pipeline.Options {
	return pipeline.Options{
		ISINTTL:         l.ISINCacheTTL(),
		ISINMaxEntries:  l.ISINCacheMaxItems,
		PriceTTL:        l.PriceCacheTTL(),
		PriceMaxEntries: l.PriceCacheMaxItems,
	}
}
