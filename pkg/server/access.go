package server

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"blackroad-os/carpool/pkg/security/auth"
)

// Rate limit response headers.
const (
	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
)

// Recorder receives request rejections and in-flight counts.
// *metrics.Collector satisfies it.
type Recorder interface {
	RecordRejection(reason string)
	AddInFlight(delta int)
}

type nopRecorder struct{}

func (nopRecorder) RecordRejection(string) {}
func (nopRecorder) AddInFlight(int)        {}

// protect applies authentication and throttling to an API handler. Auth
// runs first so that callers are throttled by key name rather than address.
func (s *Server) protect(scope auth.Scope, h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	if s.deps.Limiter != nil {
		handler = s.throttle(handler)
	}
	if s.deps.Auth != nil {
		handler = s.deps.Auth.Require(scope, s.rejectAuth, handler)
	}
	return handler
}

func (s *Server) rejectAuth(w http.ResponseWriter, r *http.Request, err error) {
	status, code, reason := http.StatusUnauthorized, codeUnauthorized, "unauthorized"
	if errors.Is(err, auth.ErrForbidden) {
		status, code, reason = http.StatusForbidden, codeForbidden, "forbidden"
	} else {
		w.Header().Set("WWW-Authenticate", `Bearer realm="carpool"`)
	}
	s.recorder.RecordRejection(reason)
	s.logger.WarnContext(r.Context(), "request rejected",
		"reason", reason, "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
	writeError(w, status, code, err.Error())
}

// throttle enforces the per-caller rate and the in-flight cap.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.deps.Limiter.Allow(callerKey(r))
		if res.Limit > 0 {
			w.Header().Set(RateLimitLimitHeader, strconv.FormatInt(res.Limit, 10))
			w.Header().Set(RateLimitRemainingHeader, strconv.FormatInt(res.Remaining, 10))
		}
		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
			s.recorder.RecordRejection("rate_limited")
			writeError(w, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded")
			return
		}

		if !s.deps.Limiter.Acquire() {
			w.Header().Set("Retry-After", "1")
			s.recorder.RecordRejection("overloaded")
			writeError(w, http.StatusServiceUnavailable, codeUnavailable, "too many requests in flight")
			return
		}
		defer s.deps.Limiter.Release()

		s.recorder.AddInFlight(1)
		defer s.recorder.AddInFlight(-1)
		next.ServeHTTP(w, r)
	})
}

// callerKey identifies the caller for throttling: the API key name when
// authenticated, otherwise the remote host.
func callerKey(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return "key:" + p.Name
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
