package ratelimit_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceresolver/internal/provider/ratelimit"
)

func TestMinInterval_SequentialCallsAreSpaced(t *testing.T) {
	t.Parallel()

	const interval = 30 * time.Millisecond
	gate := ratelimit.NewMinInterval(interval)

	start := time.Now()
	require.NoError(t, gate.Wait(t.Context()))
	first := time.Now()
	require.NoError(t, gate.Wait(t.Context()))
	second := time.Now()

	// Assert: the first call does not wait, the second waits the interval
	require.Less(t, first.Sub(start), interval)
	require.GreaterOrEqual(t, second.Sub(start), interval)
}

func TestMinInterval_ConcurrentCallersAreSpaced(t *testing.T) {
	t.Parallel()

	const (
		interval = 20 * time.Millisecond
		callers  = 6
	)
	gate := ratelimit.NewMinInterval(interval)

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Wait(context.Background()))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Assert: the i-th request to start did so no earlier than i intervals in
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	require.Len(t, times, callers)
	for i, ts := range times {
		require.GreaterOrEqualf(t, ts.Sub(start), time.Duration(i)*interval, "request %d started too early", i)
	}
}

func TestMinInterval_ContextCanceled(t *testing.T) {
	t.Parallel()

	gate := ratelimit.NewMinInterval(time.Hour)
	require.NoError(t, gate.Wait(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	err := gate.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMinInterval_ZeroIntervalNeverWaits(t *testing.T) {
	t.Parallel()

	gate := ratelimit.NewMinInterval(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, gate.Wait(t.Context()))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestTokenBucket_BurstThenWait(t *testing.T) {
	t.Parallel()

	// 50 tokens per second, burst of 2: two immediate calls, then ~20ms.
	tb := ratelimit.NewTokenBucket(50, 2)
	start := time.Now()
	require.NoError(t, tb.Wait(t.Context()))
	require.NoError(t, tb.Wait(t.Context()))
	require.Less(t, time.Since(start), 15*time.Millisecond)

	require.NoError(t, tb.Wait(t.Context()))
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestPerMinute_DisabledWhenZero(t *testing.T) {
	t.Parallel()

	tb := ratelimit.PerMinute(0, 1)
	require.Nil(t, tb)
	// A nil bucket inside a chain is a no-op.
	require.NoError(t, ratelimit.Limiters{tb, ratelimit.NewMinInterval(0)}.Wait(t.Context()))
}
