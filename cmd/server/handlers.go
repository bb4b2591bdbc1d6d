package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"priceresolver/internal/aggregate"
	"priceresolver/internal/metrics"
	"priceresolver/internal/provider"
	"priceresolver/internal/symbol"
)

const defaultMaxBatch = 100

type server struct {
	provider    provider.Provider
	maxBatch    int
	concurrency int
	timeout     time.Duration
	log         zerolog.Logger
}

type quotesResponse struct {
	Quotes []provider.Quote `json:"quotes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/price", withJSONHeaders(http.HandlerFunc(s.handlePrice)))
	mux.Handle("/api/prices", withJSONHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleGetPrices(w, r)
		case http.MethodPost:
			s.handlePostPrices(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})))
	return withGzip(s.recoverPanic(s.accessLog(limitBody(mux))))
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("identifier"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing identifier query param")
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("currency")))

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()
	price, ok := s.provider.GetCurrentPrice(ctx, id, currency)
	if !ok {
		zerolog.Ctx(r.Context()).Debug().Str("identifier", id).Msg("price unavailable")
		writeError(w, http.StatusNotFound, "price unavailable")
		return
	}
	writeJSON(w, http.StatusOK, provider.Quote{
		Identifier: symbol.Normalize(id),
		Price:      price,
		Currency:   currency,
		Source:     s.provider.Name(),
		Found:      true,
		ReceivedAt: time.Now().UTC(),
	})
}

func (s *server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("identifiers")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "missing identifiers query param")
		return
	}
	s.writeQuotes(w, r, splitCSV(q), r.URL.Query().Get("currency"))
}

type postBody struct {
	Identifiers []string `json:"identifiers"`
	Currency    string   `json:"currency"`
}

func (s *server) handlePostPrices(w http.ResponseWriter, r *http.Request) {
	var b postBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(b.Identifiers) == 0 {
		writeError(w, http.StatusBadRequest, "identifiers cannot be empty")
		return
	}
	s.writeQuotes(w, r, b.Identifiers, b.Currency)
}

func (s *server) writeQuotes(w http.ResponseWriter, r *http.Request, ids []string, currency string) {
	limit := s.maxBatch
	if limit <= 0 {
		limit = defaultMaxBatch
	}
	if len(ids) > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("too many identifiers (max %d)", limit))
		return
	}

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()
	quotes := aggregate.Resolve(ctx, s.provider, ids, strings.ToUpper(strings.TrimSpace(currency)), s.concurrency)
	writeJSON(w, http.StatusOK, quotesResponse{Quotes: quotes})
}

func (s *server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.timeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// splitCSV returns the non-blank comma-separated fields of s.
func splitCSV(s string) []string {
	var out []string
	for field := range strings.SplitSeq(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}
