// Package aggregate resolves batches of identifiers against one provider.
package aggregate

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"priceresolver/internal/provider"
	"priceresolver/internal/symbol"
)

// DefaultConcurrency bounds in-flight lookups when the caller passes <= 0.
// The provider's own gate still spaces upstream requests.
const DefaultConcurrency = 4

// Resolve prices every identifier and returns one Quote per input, in input
// order. Identifiers equal after normalization are looked up once.
// Absences come back with Found false; Resolve itself never fails.
func Resolve(ctx context.Context, p provider.Provider, identifiers []string, currency string, concurrency int) []provider.Quote {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	unique := make(map[string]*provider.Quote, len(identifiers))
	order := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		norm := symbol.Normalize(id)
		if _, seen := unique[norm]; seen {
			continue
		}
		unique[norm] = &provider.Quote{Identifier: norm, Currency: currency, Source: p.Name()}
		order = append(order, norm)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, norm := range order {
		q := unique[norm]
		if norm == "" {
			q.ReceivedAt = time.Now().UTC()
			continue
		}
		g.Go(func() error {
			price, ok := p.GetCurrentPrice(gctx, norm, currency)
			q.Price, q.Found = price, ok
			q.ReceivedAt = time.Now().UTC()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]provider.Quote, 0, len(identifiers))
	for _, id := range identifiers {
		out = append(out, *unique[symbol.Normalize(id)])
	}
	return out
}

// Found counts the quotes that carry a price.
func Found(quotes []provider.Quote) int {
	n := 0
	for _, q := range quotes {
		if q.Found {
			n++
		}
	}
	return n
}
