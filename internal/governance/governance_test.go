package governance

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimiterConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	rl, clock := newTestLimiter(RateLimiterConfig{RequestsPerSecond: 2, BurstSize: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients are limited independently")

	clock.advance(500 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	clock.advance(time.Hour)
	ok, remaining, _ := rl.Take("10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, 2, remaining, "refill is capped at the burst size")
}

func TestRateLimiterResetTime(t *testing.T) {
	rl, clock := newTestLimiter(RateLimiterConfig{RequestsPerSecond: 2, BurstSize: 3})
	start := clock.now()

	ok, remaining, reset := rl.Take("a")
	require.True(t, ok)
	assert.Equal(t, 2, remaining)
	assert.Equal(t, start.Add(500*time.Millisecond), reset)

	rl.Take("a")
	rl.Take("a")
	ok, remaining, reset = rl.Take("a")
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, start.Add(1500*time.Millisecond), reset, "an empty bucket refills at the configured rate")

	clock.advance(time.Second)
	ok, _, reset = rl.Take("a")
	require.True(t, ok)
	assert.Equal(t, clock.now().Add(time.Second), reset)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl, _ := newTestLimiter(RateLimiterConfig{})
	assert.False(t, rl.Enabled())
	for i := 0; i < 1000; i++ {
		require.True(t, rl.Allow("client"))
	}
}

func TestRateLimiterConfigure(t *testing.T) {
	rl, _ := newTestLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 5})
	assert.True(t, rl.Allow("a"))

	rl.Configure(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})
	assert.Equal(t, 1, rl.Limit().BurstSize)
	assert.True(t, rl.Allow("a"), "tokens are capped, not cleared")
	assert.False(t, rl.Allow("a"))

	rl.Configure(RateLimiterConfig{RequestsPerSecond: 2.5})
	assert.Equal(t, 3, rl.Limit().BurstSize, "burst defaults to the rounded-up rate")

	rl.Configure(RateLimiterConfig{})
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterPrunesFullBuckets(t *testing.T) {
	rl, clock := newTestLimiter(RateLimiterConfig{RequestsPerSecond: 100, BurstSize: 1})
	for i := 0; i < maxIdleBuckets; i++ {
		rl.Allow(string(rune('a'+i%26)) + time.Duration(i).String())
	}
	clock.advance(time.Second)
	assert.True(t, rl.Allow("newcomer"))
	assert.Len(t, rl.buckets, 1)
}

func TestRateLimiterAllowContext(t *testing.T) {
	rl, _ := newTestLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, rl.AllowContext(ctx, "a"))
	assert.True(t, rl.AllowContext(context.Background(), "a"))
}

func TestWriteRateLimitHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRateLimitHeaders(rec, 10, 4, time.Unix(1_700_000_123, 0))
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1700000123", rec.Header().Get("X-RateLimit-Reset"))
}

func TestTimeoutManager(t *testing.T) {
	tm := NewTimeoutManager(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, tm.Timeout())

	ctx, cancel := tm.WithComputationTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)

	tm.Configure(-time.Second)
	assert.Equal(t, time.Duration(0), tm.Timeout())

	ctx, cancel = tm.WithComputationTimeout(context.Background())
	_, ok = ctx.Deadline()
	assert.False(t, ok)
	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
