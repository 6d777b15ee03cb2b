package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key, allowing limit calls per window
// with bursts up to limit
type RateLimiter struct {
	limiters sync.Map // key -> *rate.Limiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter creates a limiter. A limit below 1 disables limiting.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit: rate.Inf,
		burst: limit,
		now:   time.Now,
	}
	if limit >= 1 && window > 0 {
		rl.limit = rate.Every(window / time.Duration(limit))
	}
	return rl
}

// Allow reports whether a call for key is allowed now and consumes a token
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).AllowN(rl.now(), 1)
}

// Wait blocks until a call for key is allowed or ctx ends
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.limiter(key).Wait(ctx)
}

// Reset forgets the bucket for key
func (rl *RateLimiter) Reset(key string) {
	rl.limiters.Delete(key)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	limiterI, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.limit, rl.burst))
	return limiterI.(*rate.Limiter)
}
