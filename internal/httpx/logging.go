package httpx

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// DefaultMaxLoggedBody caps logged request and response bodies.
const DefaultMaxLoggedBody = 2000

// MaxResponseBody bounds how much of an upstream response is buffered.
const MaxResponseBody = 4 << 20

// truncatedMarker is appended to bodies cut at the cap.
const truncatedMarker = "…"

// redactedParams are query parameters whose values never reach the logs.
var redactedParams = []string{"token", "apikey", "api_key", "key"}

// LoggingClient records every request and response passing through Next.
// Logging is a side channel: the response handed back is equivalent to the
// one Next returned, with at most MaxResponseBody bytes of its body
// buffered in memory.
type LoggingClient struct {
	Next    HTTPClient
	Logger  zerolog.Logger
	MaxBody int
}

// NewLoggingClient wraps next with request/response logging at debug level.
func NewLoggingClient(next HTTPClient, logger zerolog.Logger) *LoggingClient {
	return &LoggingClient{Next: next, Logger: logger, MaxBody: DefaultMaxLoggedBody}
}

func (l *LoggingClient) Do(req *http.Request) (*http.Response, error) {
	limit := l.MaxBody
	if limit <= 0 {
		limit = DefaultMaxLoggedBody
	}

	reqBody := ""
	if req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			b, _ := io.ReadAll(io.LimitReader(rc, int64(limit)+1))
			_ = rc.Close()
			reqBody = string(b)
		}
	}
	target := RedactURL(req.URL)

	l.Logger.Debug().
		Str("method", req.Method).
		Str("url", target).
		Str("body", Truncate(reqBody, limit)).
		Msg("outbound request")

	start := time.Now()
	resp, err := l.Next.Do(req)
	if err != nil {
		l.Logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("url", target).
			Dur("elapsed", time.Since(start)).
			Msg("outbound request failed")
		return nil, err
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody))
	_ = resp.Body.Close()
	if err != nil {
		l.Logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("url", target).
			Int("status", resp.StatusCode).
			Msg("reading response body failed")
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(b))

	l.Logger.Debug().
		Str("method", req.Method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("body", Truncate(string(b), limit)).
		Msg("outbound response")
	return resp, nil
}

// Truncate shortens s to at most limit bytes, on a rune boundary, appending
// an ellipsis when anything was cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedMarker
}

// RedactURL renders u with credential query parameters masked.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	changed := false
	for key := range q {
		for _, p := range redactedParams {
			if strings.EqualFold(key, p) {
				q.Set(key, "REDACTED")
				changed = true
			}
		}
	}
	if !changed {
		return u.String()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
