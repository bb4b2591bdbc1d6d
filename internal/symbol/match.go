package symbol

import "strings"

// Candidate is one result of an upstream symbol search.
type Candidate struct {
	Symbol        string
	DisplaySymbol string
	// Fund marks results classified as an ETF or other fund product.
	Fund bool
}

// BestMatch picks a symbol for query out of search results. Preference order:
//  1. a symbol or display symbol equal to query
//  2. a symbol that is query followed by an exchange suffix ("." or ":")
//  3. the first fund/ETF result
//  4. the first result
//
// Results with an empty symbol are ignored. The pick is not checked with
// IsSafeTicker; callers validate it before building a URL.
func BestMatch(query string, cands []Candidate) (string, bool) {
	query = Normalize(query)

	usable := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if strings.TrimSpace(c.Symbol) != "" {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return "", false
	}

	for _, c := range usable {
		if Normalize(c.Symbol) == query || Normalize(c.DisplaySymbol) == query {
			return c.Symbol, true
		}
	}
	if query != "" {
		for _, c := range usable {
			s := Normalize(c.Symbol)
			if strings.HasPrefix(s, query+".") || strings.HasPrefix(s, query+":") {
				return c.Symbol, true
			}
		}
	}
	for _, c := range usable {
		if c.Fund {
			return c.Symbol, true
		}
	}
	return usable[0].Symbol, true
}

// Alternative returns the best search result for ticker that is not ticker
// itself, for retrying a quote under a different listing.
func Alternative(ticker string, cands []Candidate) (string, bool) {
	ticker = Normalize(ticker)
	others := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if Normalize(c.Symbol) != ticker {
			others = append(others, c)
		}
	}
	return BestMatch(ticker, others)
}
