package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "ledger.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var knownProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"google":    true,
	"xai":       true,
	"local":     true,
	"custom":    true,
}

var (
	validSpeedTiers     = map[string]bool{"fast": true, "medium": true, "slow": true}
	validQualityTiers   = map[string]bool{"basic": true, "good": true, "excellent": true, "expert": true}
	validTLSVersions    = map[string]bool{"1.2": true, "1.3": true}
	validAuthScopes     = map[string]bool{"route": true, "ledger:read": true, "ledger:write": true}
	validTokenEncodings = map[string]bool{"cl100k_base": true, "p50k_base": true, "r50k_base": true}
)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRouting(&cfg.Routing)...)
	errs = append(errs, validateProcessing(&cfg.Processing)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}

	errs = append(errs, validateTLS(&cfg.TLS)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)

	return errs
}

func validateTLS(cfg *TLSConfig) []FieldError {
	var errs []FieldError

	if !validTLSVersions[cfg.MinVersion] {
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("unsupported TLS version %q, must be 1.2 or 1.3", cfg.MinVersion),
		})
	}
	if cfg.ReloadInterval < 0 {
		errs = append(errs, FieldError{Field: "server.tls.reload_interval", Message: "reload interval must not be negative"})
	}
	if !cfg.Enabled {
		return errs
	}
	if cfg.CertFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "certificate file is required when TLS is enabled"})
	}
	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
	}
	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	for i, src := range cfg.Sources {
		field := fmt.Sprintf("server.auth.sources[%d]", i)
		if src.Type != "header" && src.Type != "query" {
			errs = append(errs, FieldError{Field: field + ".type", Message: fmt.Sprintf("invalid source type %q, must be header or query", src.Type)})
		}
		if src.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "source name is required"})
		}
	}

	if cfg.Enabled && len(cfg.Keys) == 0 {
		errs = append(errs, FieldError{Field: "server.auth.keys", Message: "at least one key is required when auth is enabled"})
	}

	names := make(map[string]bool, len(cfg.Keys))
	for i, key := range cfg.Keys {
		field := fmt.Sprintf("server.auth.keys[%d]", i)
		switch {
		case key.Name == "":
			errs = append(errs, FieldError{Field: field + ".name", Message: "key name is required"})
		case names[key.Name]:
			errs = append(errs, FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate key name %q", key.Name)})
		}
		names[key.Name] = true

		if (key.Key == "") == (key.KeyEnv == "") {
			errs = append(errs, FieldError{Field: field, Message: "exactly one of key or key_env is required"})
		}
		for j, scope := range key.Scopes {
			if !validAuthScopes[scope] {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.scopes[%d]", field, j),
					Message: fmt.Sprintf("invalid scope %q, must be route, ledger:read or ledger:write", scope),
				})
			}
		}
	}
	return errs
}

func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	if cfg.RequestsPerSecond < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.requests_per_second", Message: "rate must not be negative"})
	}
	if cfg.Burst < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.burst", Message: "burst must not be negative"})
	}
	if cfg.MaxConcurrent < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.max_concurrent", Message: "max concurrent must not be negative"})
	}
	if cfg.IdleTTL < 0 {
		errs = append(errs, FieldError{Field: "server.rate_limit.idle_ttl", Message: "idle TTL must not be negative"})
	}
	return errs
}

func validateRouting(cfg *RoutingConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultPreferredProvider != "" && !knownProviders[cfg.DefaultPreferredProvider] {
		errs = append(errs, FieldError{
			Field:   "routing.default_preferred_provider",
			Message: fmt.Sprintf("unknown provider %q", cfg.DefaultPreferredProvider),
		})
	}

	for i, p := range cfg.AvailableProviders {
		if !knownProviders[p] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("routing.available_providers[%d]", i),
				Message: fmt.Sprintf("unknown provider %q", p),
			})
		}
	}

	seen := make(map[string]bool, len(cfg.Catalog))
	for i, entry := range cfg.Catalog {
		prefix := fmt.Sprintf("routing.catalog[%d]", i)

		if entry.Key == "" {
			errs = append(errs, FieldError{Field: prefix + ".key", Message: "catalog key is required"})
		} else if seen[entry.Key] {
			errs = append(errs, FieldError{Field: prefix + ".key", Message: fmt.Sprintf("duplicate catalog key %q", entry.Key)})
		}
		seen[entry.Key] = true

		if !knownProviders[entry.Provider] {
			errs = append(errs, FieldError{Field: prefix + ".provider", Message: fmt.Sprintf("unknown provider %q", entry.Provider)})
		}
		if entry.ModelID == "" {
			errs = append(errs, FieldError{Field: prefix + ".model_id", Message: "model id is required"})
		}
		if entry.ContextWindow <= 0 {
			errs = append(errs, FieldError{Field: prefix + ".context_window", Message: "context window must be positive"})
		}
		if entry.CostPer1KTokens < 0 {
			errs = append(errs, FieldError{Field: prefix + ".cost_per_1k_tokens", Message: "cost must be non-negative"})
		}
		if !validSpeedTiers[entry.SpeedTier] {
			errs = append(errs, FieldError{
				Field:   prefix + ".speed_tier",
				Message: fmt.Sprintf("invalid speed tier %q: must be 'fast', 'medium', or 'slow'", entry.SpeedTier),
			})
		}
		if !validQualityTiers[entry.QualityTier] {
			errs = append(errs, FieldError{
				Field:   prefix + ".quality_tier",
				Message: fmt.Sprintf("invalid quality tier %q: must be 'basic', 'good', 'excellent', or 'expert'", entry.QualityTier),
			})
		}
	}

	return errs
}

func validateProcessing(cfg *ProcessingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Tokens.Estimator {
	case "tiktoken", "simple":
	default:
		errs = append(errs, FieldError{
			Field:   "processing.tokens.estimator",
			Message: fmt.Sprintf("invalid estimator %q: must be 'tiktoken' or 'simple'", cfg.Tokens.Estimator),
		})
	}

	if !validTokenEncodings[cfg.Tokens.Encoding] {
		errs = append(errs, FieldError{
			Field:   "processing.tokens.encoding",
			Message: fmt.Sprintf("invalid encoding %q: must be 'cl100k_base', 'p50k_base', or 'r50k_base'", cfg.Tokens.Encoding),
		})
	}

	for model, ratio := range cfg.Tokens.Models {
		if ratio <= 0 {
			errs = append(errs, FieldError{
				Field:   "processing.tokens.models." + model,
				Message: "characters per token must be positive",
			})
		}
	}

	return errs
}

func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "ledger.sqlite.path",
				Message: "sqlite path is required when backend is 'sqlite'",
			})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "ledger.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "ledger.sqlite.busy_timeout", Message: "busy timeout must be positive"})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "ledger.sqlite.max_open_conns", Message: "max open connections must be at least 1"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if strings.TrimSpace(cfg.DefaultCurrency) == "" {
		errs = append(errs, FieldError{Field: "ledger.default_currency", Message: "default currency is required"})
	}

	if cfg.HashScheme != "ps-sha256" && cfg.HashScheme != "ps-sha512" {
		errs = append(errs, FieldError{
			Field:   "ledger.hash_scheme",
			Message: fmt.Sprintf("invalid hash scheme %q: must be 'ps-sha256' or 'ps-sha512'", cfg.HashScheme),
		})
	}

	if cfg.AmountScale < 0 || cfg.AmountScale > 18 {
		errs = append(errs, FieldError{Field: "ledger.amount_scale", Message: "amount scale must be between 0 and 18"})
	}

	if cfg.Audit.Enabled {
		if _, err := cron.ParseStandard(cfg.Audit.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "ledger.audit.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Audit.Schedule, err),
			})
		}
	}
	if cfg.Audit.Window < 0 {
		errs = append(errs, FieldError{Field: "ledger.audit.window", Message: "audit window must be non-negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: "pattern is required",
			})
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path is required when metrics are enabled",
			})
		} else if cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
		if cfg.Metrics.Namespace == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.namespace",
				Message: "metrics namespace is required when metrics are enabled",
			})
		}
	}

	errs = append(errs, validateTracing(&cfg.Tracing)...)

	return errs
}

func validateTracing(cfg *TracingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Sampler),
		})
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %v", cfg.SampleRatio),
		})
	}

	if !cfg.Enabled {
		return errs
	}
	if cfg.Exporter != "otlp" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("unsupported exporter %q: must be 'otlp'", cfg.Exporter),
		})
	}
	if cfg.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.OTLP.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.otlp.timeout",
			Message: "timeout must be non-negative",
		})
	}
	return errs
}
