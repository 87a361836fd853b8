package governance

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxIdleBuckets bounds the number of per-client buckets kept in memory.
// Buckets that have refilled completely are dropped first.
const maxIdleBuckets = 10000

// RateLimiterConfig defines the per-client rate limit. A zero rate disables
// limiting.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// RateLimiter implements token bucket rate limiting per client key.
type RateLimiter struct {
	mu      sync.Mutex
	config  RateLimiterConfig
	buckets map[string]*tokenBucket
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with the provided configuration.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		now:     time.Now,
	}
	rl.Configure(config)
	return rl
}

// Configure replaces the limit. Existing buckets keep their tokens, capped at
// the new burst size.
func (rl *RateLimiter) Configure(config RateLimiterConfig) {
	if config.RequestsPerSecond > 0 && config.BurstSize <= 0 {
		config.BurstSize = int(math.Ceil(config.RequestsPerSecond))
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.config = config
	for _, bucket := range rl.buckets {
		bucket.configure(config.RequestsPerSecond, float64(config.BurstSize))
	}
}

// Enabled reports whether any limit is in force.
func (rl *RateLimiter) Enabled() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.config.RequestsPerSecond > 0
}

// Allow consumes a token for key. It returns false when the client has
// exhausted its burst.
func (rl *RateLimiter) Allow(key string) bool {
	allowed, _, _ := rl.Take(key)
	return allowed
}

// Take consumes a token for key. It reports the remaining whole tokens and
// the time at which the client's bucket will be full again.
func (rl *RateLimiter) Take(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if rl.config.RequestsPerSecond <= 0 {
		return true, math.MaxInt32, now
	}

	bucket, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxIdleBuckets {
			rl.pruneLocked(now)
		}
		bucket = newTokenBucket(rl.config.RequestsPerSecond, float64(rl.config.BurstSize), now)
		rl.buckets[key] = bucket
	}
	return bucket.take(now)
}

// AllowContext checks if a request is allowed, with context cancellation support.
func (rl *RateLimiter) AllowContext(ctx context.Context, key string) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	return rl.Allow(key)
}

// Limit returns the configured rate and burst.
func (rl *RateLimiter) Limit() RateLimiterConfig {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.config
}

// pruneLocked drops buckets that have refilled completely, which are
// indistinguishable from fresh ones.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	for key, bucket := range rl.buckets {
		bucket.refill(now)
		if bucket.tokens >= bucket.capacity {
			delete(rl.buckets, key)
		}
	}
}

// tokenBucket implements a token bucket. Callers hold RateLimiter.mu.
type tokenBucket struct {
	rate       float64 // tokens per second
	capacity   float64 // maximum burst size
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(rate, capacity float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		rate:       rate,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: now,
	}
}

func (tb *tokenBucket) configure(rate, capacity float64) {
	tb.rate = rate
	tb.capacity = capacity
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

func (tb *tokenBucket) take(now time.Time) (bool, int, time.Time) {
	tb.refill(now)
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), tb.fullAt(now)
	}
	return false, 0, tb.fullAt(now)
}

// fullAt returns when the bucket refills to capacity at the current rate.
func (tb *tokenBucket) fullAt(now time.Time) time.Time {
	missing := tb.capacity - tb.tokens
	if missing <= 0 {
		return now
	}
	return now.Add(time.Duration(missing / tb.rate * float64(time.Second)))
}

func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed*tb.rate)
		tb.lastRefill = now
	}
}

// WriteRateLimitHeaders adds rate limit status headers to the response.
func WriteRateLimitHeaders(w http.ResponseWriter, limit, remaining int, resetTime time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}
