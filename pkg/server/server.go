package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger/chain"
	"blackroad-os/carpool/pkg/limits/ratelimit"
	"blackroad-os/carpool/pkg/routing"
	"blackroad-os/carpool/pkg/security/auth"
	"blackroad-os/carpool/pkg/telemetry/health"
	"blackroad-os/carpool/pkg/telemetry/tracing"
)

// Deps are the components the HTTP surface exposes. Router, Analyzer and
// Ledger are required; the rest are optional.
type Deps struct {
	Router   *routing.Router
	Analyzer *routing.Analyzer
	Ledger   *chain.Ledger

	// DefaultProviders is used when a route request names no providers.
	DefaultProviders []routing.Provider

	// Health, when set, is mounted at /healthz, /readyz and /version.
	Health *health.Checker

	// Metrics, when set, is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string

	Version   string
	Commit    string
	BuildTime string

	// Tracer, when set, starts a server span per request.
	Tracer *tracing.Tracer

	// Auth, when set, requires an API key with the endpoint's scope on
	// every /v1 route.
	Auth *auth.Authenticator

	// Limiter, when set, throttles /v1 routes per caller.
	Limiter *ratelimit.Limiter

	// Recorder receives rejections and in-flight counts.
	Recorder Recorder

	// TLS, when set, makes Start and Serve terminate HTTPS.
	TLS *tls.Config

	Logger *slog.Logger
}

// Server serves the routing and ledger API over HTTP.
type Server struct {
	config     config.ServerConfig
	deps       Deps
	logger     *slog.Logger
	recorder   Recorder
	httpServer *http.Server

	mu           sync.RWMutex
	isRunning    bool
	shutdownOnce sync.Once
}

// NewServer creates a server. It does not listen until Start or Serve.
func NewServer(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Router == nil || deps.Analyzer == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("router, analyzer and ledger are required")
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}
	var recorder Recorder = nopRecorder{}
	if deps.Recorder != nil {
		recorder = deps.Recorder
	}
	return &Server{config: cfg, deps: deps, logger: logger, recorder: recorder}, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	if s.deps.TLS != nil {
		ln = tls.NewListener(ln, s.deps.TLS)
	}
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String(), "tls", s.deps.TLS != nil)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errCh:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		srv := s.httpServer
		running := s.isRunning
		s.mu.RUnlock()
		if !running || srv == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/route", s.protect(auth.ScopeRoute, s.handleRoute))
	mux.Handle("POST /v1/analyze", s.protect(auth.ScopeRoute, s.handleAnalyze))
	mux.Handle("POST /v1/ledger/entries", s.protect(auth.ScopeLedgerWrite, s.handleAppend))
	mux.Handle("POST /v1/ledger/usage", s.protect(auth.ScopeLedgerWrite, s.handleUsage))
	mux.Handle("GET /v1/ledger/entries", s.protect(auth.ScopeLedgerRead, s.handleListEntries))
	mux.Handle("GET /v1/ledger/balances/{type}/{id}", s.protect(auth.ScopeLedgerRead, s.handleBalance))
	mux.Handle("GET /v1/ledger/verify", s.protect(auth.ScopeLedgerRead, s.handleVerify))

	if s.deps.Health != nil {
		health.Register(mux, s.deps.Health, s.deps.Version, s.deps.Commit, s.deps.BuildTime)
	}
	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.deps.MetricsPath, s.deps.Metrics)
	}

	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	if s.deps.Tracer != nil {
		handler = tracingMiddleware(s.deps.Tracer, handler)
	}
	handler = requestIDMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}
