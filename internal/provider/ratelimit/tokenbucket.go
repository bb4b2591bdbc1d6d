package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket caps the long-run request rate while allowing bursts.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewTokenBucket returns a bucket refilling tokensPerSecond up to burst.
func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// PerMinute returns a bucket allowing rpm requests per minute, or nil when
// rpm is not positive.
func PerMinute(rpm, burst int) *TokenBucket {
	if rpm <= 0 {
		return nil
	}
	return NewTokenBucket(float64(rpm)/60.0, burst)
}

// Wait blocks until one token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	if tb == nil {
		return ctx.Err()
	}
	for {
		tb.mu.Lock()
		now := time.Now()
		if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()

		waitDur := time.Duration(deficit / tb.rate * float64(time.Second))
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		if err := sleep(ctx, waitDur); err != nil {
			return err
		}
	}
}
