package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"blackroad-os/carpool/pkg/cli"
	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger/chain"
	"blackroad-os/carpool/pkg/ledger/storage"
	"blackroad-os/carpool/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "carpool",
	Short: "CarPool - AI provider routing and credit ledger",
	Long: `CarPool picks the best-fit model for an AI task across providers and
records credit movements in an append-only, hash-chained ledger.

Configuration is read from --config when given, otherwise from built-in
defaults. CARPOOL_SECTION_FIELD environment variables override both.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, csv)")
}

// loadConfig resolves configuration and applies the --log-level override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	return cfg, nil
}

// setupLogging builds the process logger and installs it as slog's default.
func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	logger.SetDefault()
	return logger, nil
}

// openLedger opens the configured store and wraps it in a chain ledger.
// The caller closes the returned store.
func openLedger(cfg *config.Config, extra ...chain.Option) (*chain.Ledger, error) {
	opts, err := chain.OptionsFromConfig(&cfg.Ledger)
	if err != nil {
		return nil, cli.NewConfigError("ledger", err.Error())
	}
	store, err := storage.Open(&cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}
	return chain.New(store, append(opts, extra...)...), nil
}

// withLedger loads configuration, opens the ledger, runs fn and closes the
// store afterwards. CLI invocations log warnings and errors only unless
// --log-level says otherwise.
func withLedger(cmd *cobra.Command, fn func(ctx context.Context, l *chain.Ledger) error) error {
	return withLedgerConfig(cmd, func(ctx context.Context, _ *config.Config, l *chain.Ledger) error {
		return fn(ctx, l)
	})
}

// withLedgerConfig is withLedger for commands that also need the loaded
// configuration.
func withLedgerConfig(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, l *chain.Ledger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if logLevel == "" {
		cfg.Telemetry.Logging.Level = "warn"
	}
	if _, err := setupLogging(cfg); err != nil {
		return err
	}

	l, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Store().Close(); cerr != nil {
			slog.Warn("failed to close ledger store", "error", cerr)
		}
	}()
	return fn(cmd.Context(), cfg, l)
}

// printResult renders v in the --output format.
func printResult(cmd *cobra.Command, v any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), v)
}
