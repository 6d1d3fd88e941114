// Package config provides configuration management for CarPool.
//
// This package handles loading, validating, and reloading configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in three ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("carpool.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("carpool.yaml")
//
//  3. From defaults plus environment when no file is given:
//     cfg, err := config.Load("")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CARPOOL_SECTION_FIELD.
// For example:
//
//   - CARPOOL_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CARPOOL_LEDGER_SQLITE_PATH overrides ledger.sqlite.path
//   - CARPOOL_ROUTING_AVAILABLE_PROVIDERS takes a comma separated list
//   - CARPOOL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - CARPOOL_SERVER_AUTH_ENABLED overrides server.auth.enabled
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// There is no process-wide configuration instance. Commands load a Config
// and pass it, or the pieces they need, to the components they build.
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and delivers each
// valid reload to a callback after a short debounce. The serve command uses
// it to apply log level and default provider preference changes without a
// restart. Storage and catalog settings are read once at startup.
//
// # Validation
//
// Validation collects every FieldError into one ValidationError so operators
// see all problems at once. It covers listen addresses, TLS versions and
// certificate paths, API key scopes, rate limits, the closed provider set,
// catalog tiers, ledger backend and hash scheme, the audit cron schedule,
// logging options and tracing samplers.
package config
