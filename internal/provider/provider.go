package provider

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that an upstream had no usable answer: unknown
// instrument, empty search results or an invalid price.
var ErrNotFound = errors.New("provider: not found")

// Quote is the normalized shape served by the HTTP and CLI surfaces.
// Price stays a decimal string; an absent price is Found == false.
type Quote struct {
	Identifier string    `json:"identifier"`
	Price      string    `json:"price,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	Source     string    `json:"source"`
	Found      bool      `json:"found"`
	ReceivedAt time.Time `json:"received_at"`
}

// Provider resolves the current price of an instrument identified by
// ticker or ISIN. It never fails loudly: every failure, from missing
// credentials to an upstream outage, is reported as ok == false and is only
// visible in the logs.
type Provider interface {
	Name() string
	GetCurrentPrice(ctx context.Context, identifier, currency string) (price string, ok bool)
}
