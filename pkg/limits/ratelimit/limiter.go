package ratelimit

import (
	"sync"
	"time"

	"blackroad-os/carpool/pkg/config"
)

// Limiter throttles API callers with one token bucket per caller key and an
// optional process-wide cap on in-flight requests.
//
// Buckets untouched for longer than the idle TTL are dropped during later
// calls, so memory stays proportional to recently active callers. No
// background goroutine is started.
type Limiter struct {
	rate    float64
	burst   int64
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*callerBucket
	lastSweep time.Time

	concurrent *ConcurrentLimiter
}

type callerBucket struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now. Tests use it to step time.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a Limiter from cfg. A non-positive rate disables
// per-caller throttling and a non-positive MaxConcurrent disables the
// concurrency cap.
func NewLimiter(cfg config.RateLimitConfig, opts ...Option) *Limiter {
	l := &Limiter{
		rate:    cfg.RequestsPerSecond,
		burst:   int64(cfg.Burst),
		idleTTL: cfg.IdleTTL,
		now:     time.Now,
		buckets: make(map[string]*callerBucket),
	}
	if l.burst <= 0 {
		l.burst = int64(config.DefaultRateLimitBurst)
	}
	if l.idleTTL <= 0 {
		l.idleTTL = config.DefaultRateLimitIdleTTL
	}
	if cfg.MaxConcurrent > 0 {
		l.concurrent = NewConcurrentLimiter(cfg.MaxConcurrent)
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow takes one request from key's bucket.
func (l *Limiter) Allow(key string) *CheckResult {
	if l.rate <= 0 {
		return &CheckResult{Allowed: true}
	}

	l.mu.Lock()
	now := l.now()
	l.sweepLocked(now)
	cb, ok := l.buckets[key]
	if !ok {
		cb = &callerBucket{bucket: newTokenBucket(l.burst, l.rate, l.now)}
		l.buckets[key] = cb
	}
	cb.lastSeen = now
	l.mu.Unlock()

	if cb.bucket.Take(1) {
		return &CheckResult{Allowed: true, Limit: l.burst, Remaining: cb.bucket.Remaining()}
	}
	return &CheckResult{
		Allowed:    false,
		Limit:      l.burst,
		Remaining:  0,
		RetryAfter: cb.bucket.TimeUntilAvailable(1),
	}
}

// Acquire takes an in-flight slot. It always succeeds when no concurrency
// cap is configured. A true result must be paired with Release.
func (l *Limiter) Acquire() bool {
	if l.concurrent == nil {
		return true
	}
	return l.concurrent.Acquire()
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	if l.concurrent != nil {
		l.concurrent.Release()
	}
}

// Callers returns the number of caller buckets currently tracked.
func (l *Limiter) Callers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweepLocked drops idle buckets at most once per idle TTL.
// Caller must hold lock.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for key, cb := range l.buckets {
		if now.Sub(cb.lastSeen) >= l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
