package ratelimit

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is a token bucket backed by rate.Limiter.
//
// The bucket allows bursts up to its capacity while holding the average rate
// to the refill rate. Tokens are fractional so rates below one per second
// still refill smoothly. Every call reads the bucket's clock and passes the
// instant to the limiter explicitly, which lets tests step time.
//
// TokenBucket is safe for concurrent use.
type TokenBucket struct {
	lim        *rate.Limiter
	capacity   int64
	refillRate float64
	now        func() time.Time
}

// NewTokenBucket creates a full bucket holding capacity tokens that refills
// at refillRate tokens per second. refillRate must be positive.
//
//	// 10 requests/sec average, burst up to 50
//	bucket := NewTokenBucket(50, 10)
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity int64, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		lim:        rate.NewLimiter(rate.Limit(refillRate), int(capacity)),
		capacity:   capacity,
		refillRate: refillRate,
		now:        now,
	}
}

// Take attempts to consume n tokens and reports whether it did. A rejected
// take consumes nothing.
func (tb *TokenBucket) Take(n int64) bool {
	return tb.lim.AllowN(tb.now(), int(n))
}

// Remaining returns the whole tokens currently available.
func (tb *TokenBucket) Remaining() int64 {
	tokens := tb.lim.TokensAt(tb.now())
	if tokens <= 0 {
		return 0
	}
	return int64(math.Floor(tokens))
}

// Capacity returns the maximum bucket capacity.
func (tb *TokenBucket) Capacity() int64 {
	return tb.capacity
}

// TimeUntilAvailable returns how long until n tokens will be available, or
// zero if they are available now.
func (tb *TokenBucket) TimeUntilAvailable(n int64) time.Duration {
	needed := float64(n) - tb.lim.TokensAt(tb.now())
	if needed <= 0 {
		return 0
	}
	if tb.refillRate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(needed / tb.refillRate * float64(time.Second))
}
