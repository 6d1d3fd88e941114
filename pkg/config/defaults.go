package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Server security defaults
	DefaultTLSMinVersion     = "1.3"
	DefaultTLSReloadInterval = 5 * time.Minute
	DefaultRateLimitRPS      = 20.0
	DefaultRateLimitBurst    = 40
	DefaultRateLimitIdleTTL  = 10 * time.Minute

	// Processing defaults
	DefaultTokensEstimator     = "tiktoken"
	DefaultTokensEncoding      = "cl100k_base"
	DefaultTokensCharsPerToken = 4.0

	// Ledger defaults
	DefaultLedgerBackend        = "sqlite"
	DefaultLedgerCurrency       = "ROADCOIN"
	DefaultLedgerHashScheme     = "ps-sha256"
	DefaultLedgerAmountScale    = int32(8)
	DefaultLedgerSQLitePath     = "data/ledger.db"
	DefaultLedgerSQLiteDriver   = "sqlite"
	DefaultLedgerSQLiteWALMode  = true
	DefaultLedgerSQLiteBusy     = 5 * time.Second
	DefaultLedgerSQLiteMaxConns = 4
	DefaultLedgerAuditEnabled   = true
	DefaultLedgerAuditSchedule  = "*/15 * * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPII = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "carpool"
	DefaultMetricsSubsystem = "core"

	// Tracing defaults
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingExporter     = "otlp"
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "carpool"
	DefaultTracingInsecure     = true
	DefaultTracingTimeout      = 10 * time.Second
)

// DefaultAvailableProviders is the provider set assumed when neither the
// caller nor the configuration names one.
var DefaultAvailableProviders = []string{"openai", "anthropic", "google", "xai"}

// DefaultScoreBuckets spans the reachable routing score range, from a model
// that cannot fit the context (-50) to a tight, cheap, fast, preferred match.
var DefaultScoreBuckets = []float64{-50, -25, 0, 5, 10, 15, 20, 25, 30}

// NewDefaultConfig returns a configuration populated entirely with defaults.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Ledger.SQLite.WALMode = DefaultLedgerSQLiteWALMode
	cfg.Ledger.Audit.Enabled = DefaultLedgerAuditEnabled
	cfg.Ledger.AmountScale = DefaultLedgerAmountScale
	cfg.Telemetry.Logging.RedactPII = DefaultLoggingRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.OTLP.Insecure = DefaultTracingInsecure
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Boolean fields
// and the amount scale are left as parsed because their zero value is a
// meaningful setting; NewDefaultConfig seeds them instead.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyRoutingDefaults(&cfg.Routing)
	applyProcessingDefaults(&cfg.Processing)
	applyLedgerDefaults(&cfg.Ledger)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.TLS.MinVersion == "" {
		cfg.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.TLS.ReloadInterval == 0 {
		cfg.TLS.ReloadInterval = DefaultTLSReloadInterval
	}

	if len(cfg.Auth.Sources) == 0 {
		cfg.Auth.Sources = []APIKeySourceConfig{
			{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			{Type: "header", Name: "X-API-Key"},
		}
	}

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = DefaultRateLimitBurst
	}
	if cfg.RateLimit.IdleTTL == 0 {
		cfg.RateLimit.IdleTTL = DefaultRateLimitIdleTTL
	}
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if len(cfg.AvailableProviders) == 0 {
		cfg.AvailableProviders = append([]string(nil), DefaultAvailableProviders...)
	}
}

func applyProcessingDefaults(cfg *ProcessingConfig) {
	if cfg.Tokens.Estimator == "" {
		cfg.Tokens.Estimator = DefaultTokensEstimator
	}
	if cfg.Tokens.Encoding == "" {
		cfg.Tokens.Encoding = DefaultTokensEncoding
	}
	if cfg.Tokens.Models == nil {
		cfg.Tokens.Models = make(map[string]float64)
	}
	if _, ok := cfg.Tokens.Models["default"]; !ok {
		cfg.Tokens.Models["default"] = DefaultTokensCharsPerToken
	}
}

func applyLedgerDefaults(cfg *LedgerConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultLedgerBackend
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultLedgerCurrency
	}
	if cfg.HashScheme == "" {
		cfg.HashScheme = DefaultLedgerHashScheme
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultLedgerSQLitePath
	}
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultLedgerSQLiteDriver
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultLedgerSQLiteBusy
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultLedgerSQLiteMaxConns
	}
	if cfg.Audit.Schedule == "" {
		cfg.Audit.Schedule = DefaultLedgerAuditSchedule
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.ScoreBuckets) == 0 {
		cfg.Metrics.ScoreBuckets = append([]float64(nil), DefaultScoreBuckets...)
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 && cfg.Tracing.Sampler == "ratio" {
		cfg.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultTracingTimeout
	}
}
