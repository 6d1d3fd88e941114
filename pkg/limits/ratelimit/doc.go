// Package ratelimit throttles API callers.
//
// Limiter keeps one TokenBucket (a golang.org/x/time/rate limiter driven by
// an injectable clock) per caller key, typically the API key name
// or the client address, and an optional ConcurrentLimiter shared by every
// caller:
//
//	limiter := ratelimit.NewLimiter(cfg.Server.RateLimit)
//	if res := limiter.Allow(caller); !res.Allowed {
//	    // reply 429 with Retry-After: res.RetryAfter
//	}
//	if !limiter.Acquire() {
//	    // reply 503
//	}
//	defer limiter.Release()
//
// All types are safe for concurrent use.
package ratelimit
