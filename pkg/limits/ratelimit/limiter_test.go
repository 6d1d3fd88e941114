package ratelimit

import (
	"sync"
	"testing"
	"time"

	"blackroad-os/carpool/pkg/config"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestTokenBucket_TakeAndRefill(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)

	if !bucket.Take(10) {
		t.Fatal("full bucket should allow taking its capacity")
	}
	if bucket.Take(1) {
		t.Fatal("empty bucket should reject")
	}
	if got := bucket.TimeUntilAvailable(1); got != 100*time.Millisecond {
		t.Errorf("TimeUntilAvailable(1) = %v, want 100ms", got)
	}

	clock.Advance(250 * time.Millisecond)
	if got := bucket.Remaining(); got != 2 {
		t.Errorf("Remaining() after 250ms = %d, want 2", got)
	}

	clock.Advance(time.Hour)
	if got := bucket.Remaining(); got != bucket.Capacity() {
		t.Errorf("Remaining() = %d, should cap at capacity %d", got, bucket.Capacity())
	}
}

func TestTokenBucket_FractionalRate(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(1, 0.5, clock.Now)

	bucket.Take(1)
	clock.Advance(time.Second)
	if bucket.Take(1) {
		t.Error("half a token should not admit a request")
	}
	clock.Advance(time.Second)
	if !bucket.Take(1) {
		t.Error("two seconds at 0.5/s should refill one token")
	}
}

func TestTokenBucket_Concurrent(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(100, 1, clock.Now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if bucket.Take(1) {
					mu.Lock()
					taken++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if taken != 100 {
		t.Errorf("taken = %d, want exactly 100", taken)
	}
}

func TestTokenBucket_RejectedTakeKeepsTokens(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(3, 1, clock.Now)

	if bucket.Take(4) {
		t.Fatal("take above capacity should fail")
	}
	if got := bucket.Remaining(); got != 3 {
		t.Errorf("Remaining() = %d after rejected take, want 3", got)
	}
	if got := bucket.TimeUntilAvailable(2); got != 0 {
		t.Errorf("TimeUntilAvailable(2) = %v on a full bucket, want 0", got)
	}
}

func TestLimiter_PerCallerBuckets(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2}, WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		if res := l.Allow("alice"); !res.Allowed {
			t.Fatalf("request %d for alice rejected", i)
		}
	}

	res := l.Allow("alice")
	if res.Allowed {
		t.Fatal("third request within burst window should be rejected")
	}
	if res.Limit != 2 || res.Remaining != 0 {
		t.Errorf("result = %+v, want limit 2 remaining 0", res)
	}
	if res.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", res.RetryAfter)
	}

	if res := l.Allow("bob"); !res.Allowed {
		t.Error("a second caller gets a separate bucket")
	}

	clock.Advance(time.Second)
	if res := l.Allow("alice"); !res.Allowed {
		t.Error("alice should be admitted after refill")
	}
}

func TestLimiter_ZeroRateAllowsAll(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if !l.Allow("x").Allowed {
			t.Fatal("zero rate should not throttle")
		}
	}
	if l.Callers() != 0 {
		t.Errorf("Callers() = %d, want 0 when throttling is off", l.Callers())
	}
}

func TestLimiter_SweepsIdleCallers(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 5, Burst: 5, IdleTTL: time.Minute}, WithClock(clock.Now))

	l.Allow("a")
	l.Allow("b")
	clock.Advance(30 * time.Second)
	l.Allow("b")
	if got := l.Callers(); got != 2 {
		t.Fatalf("Callers() = %d, want 2", got)
	}

	clock.Advance(45 * time.Second)
	l.Allow("c")
	if got := l.Callers(); got != 2 {
		t.Errorf("Callers() after sweep = %d, want 2 (b and c)", got)
	}
}

func TestLimiter_Concurrency(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{MaxConcurrent: 2})

	if !l.Acquire() || !l.Acquire() {
		t.Fatal("first two acquires should succeed")
	}
	if l.Acquire() {
		t.Fatal("third acquire should fail at the cap")
	}
	l.Release()
	if !l.Acquire() {
		t.Error("acquire after release should succeed")
	}

	unlimited := NewLimiter(config.RateLimitConfig{})
	for i := 0; i < 10; i++ {
		if !unlimited.Acquire() {
			t.Fatal("no cap configured, acquire should always succeed")
		}
	}
}

func TestConcurrentLimiter_Remaining(t *testing.T) {
	cl := NewConcurrentLimiter(3)
	cl.Acquire()
	if cl.Current() != 1 || cl.Remaining() != 2 || cl.Limit() != 3 {
		t.Errorf("current=%d remaining=%d limit=%d", cl.Current(), cl.Remaining(), cl.Limit())
	}
	cl.Release()
	if cl.Current() != 0 {
		t.Errorf("Current() = %d after release", cl.Current())
	}
}
