package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"priceresolver/internal/provider"
)

type fakeProvider struct{ prices map[string]string }

func (f fakeProvider) Name() string { return "fake" }
func (f fakeProvider) GetCurrentPrice(_ context.Context, identifier, _ string) (string, bool) {
	p, ok := f.prices[strings.ToUpper(strings.TrimSpace(identifier))]
	return p, ok
}

func newTestServer() *server {
	return &server{
		provider: fakeProvider{prices: map[string]string{"AAPL": "178.25", "US0378331005": "178.25"}},
		maxBatch: 3,
		timeout:  time.Second,
		log:      zerolog.Nop(),
	}
}

func TestPrice_Found(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer().routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/price?identifier=aapl&currency=usd", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var q provider.Quote
	if err := json.Unmarshal(rr.Body.Bytes(), &q); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if q.Identifier != "AAPL" || q.Price != "178.25" || q.Currency != "USD" || q.Source != "fake" || !q.Found {
		t.Fatalf("unexpected: %+v", q)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
}

func TestPrice_UnavailableIs404(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer().routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/price?identifier=ZZZZ", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"error":"price unavailable"}` {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestPrice_MissingIdentifier(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer().routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/price", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestPrices_GetKeepsOrder(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer().routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/prices?identifiers=ZZZZ,%20AAPL&currency=EUR", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp quotesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Quotes) != 2 {
		t.Fatalf("want 2 quotes, got %+v", resp.Quotes)
	}
	if resp.Quotes[0].Identifier != "ZZZZ" || resp.Quotes[0].Found {
		t.Fatalf("unexpected first: %+v", resp.Quotes[0])
	}
	if resp.Quotes[1].Identifier != "AAPL" || resp.Quotes[1].Price != "178.25" || resp.Quotes[1].Currency != "EUR" {
		t.Fatalf("unexpected second: %+v", resp.Quotes[1])
	}
}

func TestPrices_Post(t *testing.T) {
	rr := httptest.NewRecorder()
	body := strings.NewReader(`{"identifiers":["US0378331005"],"currency":"USD"}`)
	newTestServer().routes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/prices", body))

	var resp quotesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v (body=%s)", err, rr.Body.String())
	}
	if len(resp.Quotes) != 1 || !resp.Quotes[0].Found {
		t.Fatalf("unexpected: %+v", resp.Quotes)
	}
}

func TestPrices_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"too many", http.MethodGet, "/api/prices?identifiers=A,B,C,D", "", http.StatusBadRequest},
		{"missing", http.MethodGet, "/api/prices", "", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/prices", `{"symbols":["A"]}`, http.StatusBadRequest},
		{"empty", http.MethodPost, "/api/prices", `{"identifiers":[]}`, http.StatusBadRequest},
		{"method", http.MethodDelete, "/api/prices", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			rr := httptest.NewRecorder()
			newTestServer().routes().ServeHTTP(rr, httptest.NewRequest(tc.method, tc.target, body))
			if rr.Code != tc.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newTestServer().routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: %d", rr.Code)
	}
}

func TestGzip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/price?identifier=AAPL", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	newTestServer().routes().ServeHTTP(rr, req)

	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, headers=%v", rr.Header())
	}
	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	b, _ := io.ReadAll(zr)
	if !strings.Contains(string(b), `"price":"178.25"`) {
		t.Fatalf("body=%s", b)
	}
}

func TestRequestID(t *testing.T) {
	h := newTestServer().routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if id := rr.Header().Get("X-Request-ID"); len(id) != 26 {
		t.Fatalf("expected a generated ULID, got %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if id := rr.Header().Get("X-Request-ID"); id != "caller-id" {
		t.Fatalf("expected caller id to be echoed, got %q", id)
	}
}

func TestGzip_SkippedWithoutAcceptEncoding(t *testing.T) {
	for _, enc := range []string{"", "deflate", "br;q=1.0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/price?identifier=AAPL", nil)
		if enc != "" {
			req.Header.Set("Accept-Encoding", enc)
		}
		rr := httptest.NewRecorder()
		newTestServer().routes().ServeHTTP(rr, req)
		if rr.Header().Get("Content-Encoding") != "" {
			t.Fatalf("%q: unexpected encoding %q", enc, rr.Header().Get("Content-Encoding"))
		}
	}
}

func TestAcceptsGzip(t *testing.T) {
	cases := map[string]bool{
		"gzip":                  true,
		"deflate, GZIP;q=0.5":   true,
		"br, gzip":              true,
		"deflate":               false,
		"x-gzip-but-not-really": false,
		"":                      false,
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept-Encoding", header)
		if got := acceptsGzip(r); got != want {
			t.Fatalf("acceptsGzip(%q) = %v, want %v", header, got, want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer().routes().ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/prices", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("headers=%v", rr.Header())
	}
}

func TestLimitBody_RejectsOversizedPost(t *testing.T) {
	body := `{"identifiers":["` + strings.Repeat("A", maxRequestBody) + `"]}`
	rr := httptest.NewRecorder()
	newTestServer().routes().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/prices", strings.NewReader(body)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" aapl, ,MSFT,,US0378331005 ")
	want := []string{"aapl", "MSFT", "US0378331005"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("splitCSV = %q, want %q", got, want)
	}
	if got := splitCSV(" , "); len(got) != 0 {
		t.Fatalf("splitCSV of blanks = %q", got)
	}
}
