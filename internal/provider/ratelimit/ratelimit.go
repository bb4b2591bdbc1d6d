package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates outbound requests.
type Limiter interface {
	// Wait blocks until a request may start or ctx is done.
	Wait(ctx context.Context) error
}

// MinInterval enforces a minimum time between the starts of consecutive
// requests. Each caller reserves the next free slot under the lock and then
// sleeps outside it, so concurrent callers are spaced at least Interval
// apart without the lock being held while waiting.
type MinInterval struct {
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewMinInterval returns a gate spacing requests by interval.
func NewMinInterval(interval time.Duration) *MinInterval {
	return &MinInterval{Interval: interval}
}

func (m *MinInterval) Wait(ctx context.Context) error {
	if m.Interval <= 0 {
		return ctx.Err()
	}

	m.mu.Lock()
	now := time.Now()
	slot := now
	if !m.last.IsZero() {
		if next := m.last.Add(m.Interval); next.After(now) {
			slot = next
		}
	}
	m.last = slot
	m.mu.Unlock()

	return sleep(ctx, time.Until(slot))
}

// Limiters applies each limiter in order.
type Limiters []Limiter

func (ls Limiters) Wait(ctx context.Context) error {
	for _, l := range ls {
		if l == nil {
			continue
		}
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
