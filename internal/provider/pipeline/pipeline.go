// Package pipeline implements the resolution steps shared by every price
// provider: identifier classification, ISIN mapping, ticker validation,
// caching, quoting and a single alternative-symbol retry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"priceresolver/internal/jsonx"
	"priceresolver/internal/metrics"
	"priceresolver/internal/provider"
	"priceresolver/internal/provider/cache"
	"priceresolver/internal/provider/ratelimit"
	"priceresolver/internal/symbol"
)

// Defaults for the two per-provider caches.
const (
	DefaultISINTTL        = 24 * time.Hour
	DefaultISINMaxEntries = 1000

	DefaultPriceTTL        = 60 * time.Second
	DefaultPriceMaxEntries = 500
)

var (
	errNotConfigured = errors.New("provider not configured")
	errUnsafeTicker  = errors.New("unsafe ticker")
)

// Upstream is what a concrete market-data integration supplies to the
// pipeline.
type Upstream interface {
	Name() string
	// Configured reports whether the credentials and endpoints the
	// upstream needs are present.
	Configured() bool
	// ResolveISIN maps an ISIN to a ticker.
	ResolveISIN(ctx context.Context, isin string) (string, error)
	// Quote returns the current price of ticker.
	Quote(ctx context.Context, ticker, currency string) (float64, error)
	// Alternative returns another listing worth quoting when ticker had
	// no price.
	Alternative(ctx context.Context, ticker string) (string, error)
}

// Options sizes the caches. Zero values take the defaults above.
type Options struct {
	ISINTTL         time.Duration
	ISINMaxEntries  int
	PriceTTL        time.Duration
	PriceMaxEntries int

	// Clock overrides time.Now for both caches.
	Clock func() time.Time
}

// Pipeline is a provider.Provider driving one Upstream. All state, the
// caches and the in-flight map, belongs to the instance.
type Pipeline struct {
	up     Upstream
	isins  *cache.Store[string, string]
	prices *cache.Store[string, string]
	flight singleflight.Group
	log    zerolog.Logger
}

var _ provider.Provider = (*Pipeline)(nil)

// New returns a pipeline over up.
func New(up Upstream, opts Options, log zerolog.Logger) *Pipeline {
	if opts.ISINTTL <= 0 {
		opts.ISINTTL = DefaultISINTTL
	}
	if opts.ISINMaxEntries <= 0 {
		opts.ISINMaxEntries = DefaultISINMaxEntries
	}
	if opts.PriceTTL <= 0 {
		opts.PriceTTL = DefaultPriceTTL
	}
	if opts.PriceMaxEntries <= 0 {
		opts.PriceMaxEntries = DefaultPriceMaxEntries
	}
	var copts []cache.Option
	if opts.Clock != nil {
		copts = append(copts, cache.WithClock(opts.Clock))
	}

	return &Pipeline{
		up:     up,
		isins:  cache.New[string, string](opts.ISINMaxEntries, opts.ISINTTL, copts...),
		prices: cache.New[string, string](opts.PriceMaxEntries, opts.PriceTTL, copts...),
		log:    log.With().Str("provider", up.Name()).Logger(),
	}
}

func (p *Pipeline) Name() string { return p.up.Name() }

// GetCurrentPrice resolves identifier, a ticker or an ISIN, to a decimal
// price string. Every failure is logged and reported as ok == false.
// Concurrent calls for the same identifier and currency share one
// resolution; currency is compared after trimming and upper-casing. A
// caller whose ctx ends stops waiting for it.
func (p *Pipeline) GetCurrentPrice(ctx context.Context, identifier, currency string) (string, bool) {
	norm := symbol.Normalize(identifier)
	if norm == "" {
		p.record(false)
		return "", false
	}
	if !p.up.Configured() {
		p.log.Warn().Err(errNotConfigured).Str("identifier", norm).Msg("price unavailable")
		p.record(false)
		return "", false
	}

	currency = symbol.Normalize(currency)
	ch := p.flight.DoChan(norm+"|"+currency, func() (any, error) {
		return p.resolve(context.WithoutCancel(ctx), norm, currency)
	})

	select {
	case <-ctx.Done():
		p.log.Debug().Err(ctx.Err()).Str("identifier", norm).Msg("caller gave up waiting for price")
		p.record(false)
		return "", false
	case res := <-ch:
		if res.Err != nil {
			p.log.Info().Err(res.Err).Str("identifier", norm).Msg("price unavailable")
			p.record(false)
			return "", false
		}
		p.record(true)
		return res.Val.(string), true
	}
}

// resolve runs one resolution. A failed quote earns exactly one alternative
// listing, including after a terminal non-429 status: Yahoo answers 404 for
// a listing it does not carry, so that status alone does not end the lookup.
// This costs one extra search and quote. An exhausted retry budget or a
// cancelled ctx ends it immediately.
func (p *Pipeline) resolve(ctx context.Context, norm, currency string) (string, error) {
	ticker := norm
	if symbol.IsISIN(norm) {
		t, err := p.resolveISIN(ctx, norm)
		if err != nil {
			return "", fmt.Errorf("resolving isin %s: %w", norm, err)
		}
		ticker = t
	}
	if !symbol.IsSafeTicker(ticker) {
		return "", fmt.Errorf("%w: %q", errUnsafeTicker, ticker)
	}

	key := symbol.Normalize(ticker)
	if price, ok := p.prices.Get(key); ok {
		p.lookup("price", true)
		return price, nil
	}
	p.lookup("price", false)

	price, err := p.quote(ctx, ticker, currency)
	if err != nil {
		if errors.Is(err, ratelimit.ErrExhausted) || ctx.Err() != nil {
			return "", err
		}
		alt, ok := p.alternative(ctx, ticker)
		if !ok {
			return "", err
		}
		p.log.Debug().Str("ticker", ticker).Str("alternative", alt).Msg("retrying quote with alternative symbol")
		if price, err = p.quote(ctx, alt, currency); err != nil {
			return "", fmt.Errorf("alternative %s: %w", alt, err)
		}
	}

	p.prices.Set(key, price)
	return price, nil
}

func (p *Pipeline) resolveISIN(ctx context.Context, isin string) (string, error) {
	if t, ok := p.isins.Get(isin); ok {
		p.lookup("isin", true)
		return t, nil
	}
	p.lookup("isin", false)

	t, err := p.up.ResolveISIN(ctx, isin)
	if err != nil {
		return "", err
	}
	if t == "" {
		return "", provider.ErrNotFound
	}
	p.isins.Set(isin, t)
	p.log.Debug().Str("isin", isin).Str("ticker", t).Msg("resolved isin")
	return t, nil
}

func (p *Pipeline) quote(ctx context.Context, ticker, currency string) (string, error) {
	v, err := p.up.Quote(ctx, ticker, currency)
	if err != nil {
		return "", fmt.Errorf("quoting %s: %w", ticker, err)
	}
	if !jsonx.PositivePrice(v) {
		return "", fmt.Errorf("quoting %s: invalid price %v: %w", ticker, v, provider.ErrNotFound)
	}
	return decimal.NewFromFloat(v).String(), nil
}

// alternative looks up one other listing for ticker. The result must
// differ from ticker and be safe to put in a URL.
func (p *Pipeline) alternative(ctx context.Context, ticker string) (string, bool) {
	alt, err := p.up.Alternative(ctx, ticker)
	if err != nil {
		p.log.Debug().Err(err).Str("ticker", ticker).Msg("no alternative symbol")
		return "", false
	}
	if alt == "" || symbol.Normalize(alt) == symbol.Normalize(ticker) || !symbol.IsSafeTicker(alt) {
		return "", false
	}
	return alt, true
}

func (p *Pipeline) lookup(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(p.up.Name(), name, result).Inc()
}

func (p *Pipeline) record(found bool) {
	result := "absent"
	if found {
		result = "found"
	}
	metrics.PriceLookups.WithLabelValues(p.up.Name(), result).Inc()
}
