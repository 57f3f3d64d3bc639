package request

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Rate-limit backoff: 1200 weight/minute, 30 requests of
// weight 50 back-to-back. The first 24 (1200/50) are granted immediately;
// the 25th must wait for the bucket to refill, never be denied outright.
func TestLimiterWeightBudget(t *testing.T) {
	t.Parallel()

	l := NewLimiter()
	l.Register("binance", 1200, time.Second)

	start := time.Now()
	for i := 0; i < 24; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		require.NoError(t, l.Acquire(ctx, "binance", 50), "request %d must be granted from initial burst", i)
		cancel()
	}
	require.Less(t, time.Since(start), 500*time.Millisecond, "first 24 requests must not block on refill")

	// Refill is 1200/60 = 20 weight/s, so 50 weight takes about 2.5s.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	waitStart := time.Now()
	require.NoError(t, l.Acquire(ctx, "binance", 50), "25th request must eventually be granted, not denied")
	require.Greater(t, time.Since(waitStart), 50*time.Millisecond, "25th request should have waited for refill")
}

func TestLimiterAcquireRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	l := NewLimiter()
	l.Register("okx", 60, time.Second) // 1 weight/sec, burst 60

	// Drain the burst.
	require.NoError(t, l.Acquire(context.Background(), "okx", 60))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, "okx", 60)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterBackoffMultiplierCapsAndResets(t *testing.T) {
	t.Parallel()

	l := NewLimiter()
	l.Register("binance", 1200, 500*time.Millisecond)

	d1 := l.RecordStatus("binance", 418)
	require.Equal(t, time.Second, d1) // 500ms * 2

	d2 := l.RecordStatus("binance", 418)
	require.Equal(t, 2*time.Second, d2) // 500ms * 4

	d3 := l.RecordStatus("binance", 418)
	require.Equal(t, 4*time.Second, d3) // capped at 500ms * 8

	d4 := l.RecordStatus("binance", 418)
	require.Equal(t, 4*time.Second, d4, "ban multiplier must cap at 8x")

	l.ResetBackoff("binance")
	d5 := l.RecordStatus("binance", 418)
	require.Equal(t, time.Second, d5, "multiplier must reset after ResetBackoff")
}

func TestLimiterBackoffMultiplierForRateLimited(t *testing.T) {
	t.Parallel()

	l := NewLimiter()
	l.Register("okx", 600, 400*time.Millisecond)

	d1 := l.RecordStatus("okx", 429)
	require.Equal(t, 600*time.Millisecond, d1) // 400ms * 1.5

	for i := 0; i < 10; i++ {
		l.RecordStatus("okx", 429)
	}
	capped := l.RecordStatus("okx", 429)
	require.Equal(t, time.Duration(float64(400*time.Millisecond)*maxLimitMultiplier), capped)
}

func TestLimiterUnregisteredExchangeIsUnbounded(t *testing.T) {
	t.Parallel()

	l := NewLimiter()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, "deribit", 1000))
}

func TestStartupJitterBounds(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		j := StartupJitter()
		require.GreaterOrEqual(t, j, time.Duration(0))
		require.Less(t, j, 9*time.Second)
	}
}
