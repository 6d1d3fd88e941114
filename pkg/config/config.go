package config

import "time"

// Config is the root configuration structure for CarPool.
// It contains all configuration sections for the HTTP surface, the routing
// engine, token processing, the credit ledger and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Routing contains configuration for the routing decision engine
	// including the default provider set and optional catalog override.
	Routing RoutingConfig `yaml:"routing"`

	// Processing contains configuration for task processing (token estimation).
	Processing ProcessingConfig `yaml:"processing"`

	// Ledger contains configuration for the append-only credit ledger
	// including storage backend, hashing scheme and periodic audits.
	Ledger LedgerConfig `yaml:"ledger"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8090").
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS enables HTTPS on the listener.
	TLS TLSConfig `yaml:"tls"`

	// Auth requires an API key on the /v1 endpoints.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit throttles /v1 requests per caller.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// TLSConfig contains TLS configuration for the HTTP listener.
type TLSConfig struct {
	// Enabled controls whether the server terminates TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM certificate chain.
	// Required when Enabled is true.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM private key.
	// Required when Enabled is true.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the certificate files are checked for
	// changes. Zero disables reloading.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// AuthConfig contains API key authentication configuration.
type AuthConfig struct {
	// Enabled controls whether /v1 requests must carry a valid key.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sources lists where keys are read from, in order.
	// Default: Authorization header with the Bearer scheme, then X-API-Key.
	Sources []APIKeySourceConfig `yaml:"sources"`

	// Keys is the list of accepted keys.
	Keys []APIKeyConfig `yaml:"keys"`
}

// APIKeySourceConfig defines where to extract an API key from a request.
type APIKeySourceConfig struct {
	// Type is the source type.
	// Options: "header", "query"
	Type string `yaml:"type"`

	// Name is the header or query parameter name.
	Name string `yaml:"name"`

	// Scheme is the authentication scheme for header-based extraction,
	// e.g. "Bearer". Leave empty for the raw header value.
	Scheme string `yaml:"scheme,omitempty"`
}

// APIKeyConfig contains configuration for a single API key.
type APIKeyConfig struct {
	// Name identifies the key in logs and rate limiting.
	Name string `yaml:"name"`

	// Key is the key value. Prefer KeyEnv so the secret stays out of the file.
	Key string `yaml:"key,omitempty"`

	// KeyEnv names an environment variable holding the key value.
	KeyEnv string `yaml:"key_env,omitempty"`

	// Scopes limits the endpoints the key may call.
	// Options: "route", "ledger:read", "ledger:write"
	// Default: all scopes
	Scopes []string `yaml:"scopes,omitempty"`

	// Disabled rejects the key without removing it from the file.
	Disabled bool `yaml:"disabled,omitempty"`
}

// RateLimitConfig contains per-caller request throttling configuration.
// Callers are identified by API key name when authenticated and by remote
// address otherwise.
type RateLimitConfig struct {
	// Enabled controls whether /v1 requests are throttled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained request rate per caller.
	// Default: 20
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests a caller may make at once.
	// Default: 40
	Burst int `yaml:"burst"`

	// MaxConcurrent caps in-flight /v1 requests across all callers.
	// Zero means no cap.
	MaxConcurrent int `yaml:"max_concurrent"`

	// IdleTTL is how long an unused caller bucket is kept.
	// Default: 10m
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// RoutingConfig contains configuration for the routing decision engine.
type RoutingConfig struct {
	// DefaultPreferredProvider is applied when a caller does not pass its own
	// preference. Empty means no preference.
	DefaultPreferredProvider string `yaml:"default_preferred_provider"`

	// AvailableProviders is the provider set used when a caller does not name
	// the providers its workspace has credentials for.
	// Default: ["openai", "anthropic", "google", "xai"]
	AvailableProviders []string `yaml:"available_providers"`

	// Catalog replaces the built-in capability catalog when non-empty.
	// It is read once at startup; the catalog is immutable afterwards.
	Catalog []CatalogEntryConfig `yaml:"catalog"`
}

// CatalogEntryConfig describes one model capability in the configuration file.
type CatalogEntryConfig struct {
	// Key is the catalog key used in routing decisions (e.g., "gpt-4o").
	Key string `yaml:"key"`

	// Provider is the provider tag (openai, anthropic, google, xai, local, custom).
	Provider string `yaml:"provider"`

	// ModelID is the provider-side model identifier.
	ModelID string `yaml:"model_id"`

	// ContextWindow is the maximum context size in tokens.
	ContextWindow int `yaml:"context_window"`

	// SupportsVision marks image-capable models.
	SupportsVision bool `yaml:"supports_vision"`

	// SupportsFunctionCalling marks tool-capable models.
	SupportsFunctionCalling bool `yaml:"supports_function_calling"`

	// CostPer1KTokens is the blended cost per 1000 tokens.
	CostPer1KTokens float64 `yaml:"cost_per_1k_tokens"`

	// SpeedTier is one of fast, medium, slow.
	SpeedTier string `yaml:"speed_tier"`

	// QualityTier is one of basic, good, excellent, expert.
	QualityTier string `yaml:"quality_tier"`
}

// ProcessingConfig contains task processing configuration.
type ProcessingConfig struct {
	// Tokens contains token estimation configuration.
	Tokens TokensConfig `yaml:"tokens"`
}

// TokensConfig contains token estimation configuration.
type TokensConfig struct {
	// Estimator is the token estimator type.
	// Options: "tiktoken", "simple"
	// Default: "tiktoken"
	Estimator string `yaml:"estimator"`

	// Encoding is the BPE vocabulary used by the tiktoken estimator.
	// Options: "cl100k_base", "p50k_base", "r50k_base"
	// Default: "cl100k_base"
	Encoding string `yaml:"encoding"`

	// Models contains model-specific characters-per-token ratios.
	// The "default" key is used when no model-specific ratio matches.
	Models map[string]float64 `yaml:"models"`
}

// LedgerConfig contains configuration for the credit ledger.
type LedgerConfig struct {
	// Backend specifies the storage backend for ledger entries.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// DefaultCurrency is used when an append does not name a currency.
	// Default: "ROADCOIN"
	DefaultCurrency string `yaml:"default_currency"`

	// HashScheme selects the digest used for new entries.
	// Options: "ps-sha256", "ps-sha512"
	// Default: "ps-sha256"
	HashScheme string `yaml:"hash_scheme"`

	// AmountScale is the number of decimal places used when amounts are
	// canonicalized for hashing.
	// Default: 8
	AmountScale int32 `yaml:"amount_scale"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Audit contains periodic chain verification configuration.
	Audit AuditConfig `yaml:"audit"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/ledger.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (modernc.org/sqlite, pure Go), "sqlite3" (mattn/go-sqlite3, cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables Write-Ahead Logging mode for concurrent readers.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`
}

// AuditConfig contains configuration for scheduled chain verification.
type AuditConfig struct {
	// Enabled controls whether the audit scheduler runs in serve mode.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard five-field cron expression.
	// Default: "*/15 * * * *"
	Schedule string `yaml:"schedule"`

	// Window bounds each audit to the last N entries below the tail.
	// Zero verifies the full chain from genesis.
	// Default: 0
	Window int64 `yaml:"window"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables automatic PII redaction in logs.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom PII redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "carpool"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "core"
	Subsystem string `yaml:"subsystem"`

	// ScoreBuckets defines histogram buckets for routing scores.
	// Default: [-50, -25, 0, 5, 10, 15, 20, 25, 30]
	ScoreBuckets []float64 `yaml:"score_buckets"`
}

// TracingConfig contains distributed tracing configuration. Spans cover
// HTTP requests, routing decisions and ledger appends.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter to use.
	// Options: "otlp"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "carpool"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
