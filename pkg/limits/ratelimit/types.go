package ratelimit

import "time"

// CheckResult is the outcome of Limiter.Allow.
type CheckResult struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Limit is the bucket capacity, reported as X-RateLimit-Limit.
	Limit int64

	// Remaining is how many requests the caller may still make at once.
	Remaining int64

	// RetryAfter is how long until one request is available again. Zero when
	// the request was allowed.
	RetryAfter time.Duration
}
