package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"priceresolver/internal/httpx"
	"priceresolver/internal/metrics"
)

// ErrExhausted is returned when every attempt failed transiently.
var ErrExhausted = errors.New("ratelimit: attempts exhausted")

// StatusError is a terminal non-success HTTP status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s -> %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Policy is the request discipline of one provider: every attempt passes
// the Limiter and runs under its own Timeout; attempts after the first are
// preceded by an exponential backoff of BaseDelay * 2^(n-1).
type Policy struct {
	// Name labels metrics and logs, usually the provider name.
	Name        string
	Limiter     Limiter
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// Do sends req through client until it succeeds, fails terminally or the
// attempt budget runs out. HTTP 429, network errors and timeouts are
// retried; any other non-2xx status is returned as *StatusError at once.
// The request body, if any, must be rewindable through GetBody.
func (p *Policy) Do(ctx context.Context, client httpx.HTTPClient, req *http.Request) ([]byte, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	target := httpx.RedactURL(req.URL)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay << (attempt - 1)
			p.Logger.Debug().
				Str("url", target).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("backoff", delay).
				Msg("retrying upstream request")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, status, err := p.attempt(ctx, client, req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.observe("network")
			p.Logger.Warn().Err(err).Str("url", target).Int("attempt", attempt+1).Msg("upstream request failed")
			lastErr = err
		case status == http.StatusTooManyRequests:
			p.observe("rate_limited")
			p.Logger.Warn().Str("url", target).Int("attempt", attempt+1).Msg("upstream rate limited")
			lastErr = fmt.Errorf("%s %s -> %d", req.Method, target, status)
		case status < 200 || status >= 300:
			p.observe("status")
			serr := &StatusError{Method: req.Method, URL: target, Code: status, Body: httpx.Truncate(string(body), 512)}
			p.Logger.Warn().Str("url", target).Int("status", status).Msg("upstream returned terminal status")
			return nil, serr
		default:
			p.observe("ok")
			return body, nil
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, attempts, lastErr)
}

// attempt performs one request under the per-attempt timeout. The body is
// read before the timeout is released so a stalled read also counts.
func (p *Policy) attempt(ctx context.Context, client httpx.HTTPClient, req *http.Request) ([]byte, int, error) {
	actx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	r := req.Clone(actx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, 0, fmt.Errorf("rewinding request body: %w", err)
		}
		r.Body = body
	}

	resp, err := client.Do(r)
	if err != nil {
		return nil, 0, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, httpx.MaxResponseBody))
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}
	return b, resp.StatusCode, nil
}

func (p *Policy) observe(outcome string) {
	metrics.UpstreamRequests.WithLabelValues(p.Name, outcome).Inc()
}
