package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"blackroad-os/carpool/pkg/cli"
	"blackroad-os/carpool/pkg/config"
	"blackroad-os/carpool/pkg/ledger/audit"
	"blackroad-os/carpool/pkg/ledger/chain"
	"blackroad-os/carpool/pkg/limits/ratelimit"
	"blackroad-os/carpool/pkg/processing/tokens"
	"blackroad-os/carpool/pkg/routing"
	"blackroad-os/carpool/pkg/security/auth"
	sectls "blackroad-os/carpool/pkg/security/tls"
	"blackroad-os/carpool/pkg/server"
	"blackroad-os/carpool/pkg/telemetry/health"
	"blackroad-os/carpool/pkg/telemetry/logging"
	"blackroad-os/carpool/pkg/telemetry/metrics"
	"blackroad-os/carpool/pkg/telemetry/tracing"
)

// tracerFlushTimeout bounds the final span export on shutdown.
const tracerFlushTimeout = 5 * time.Second

var serveFlags struct {
	listenAddress string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the routing and ledger HTTP API.

The server exposes /v1/analyze, /v1/route and /v1/ledger/* plus health and
metrics endpoints. When the ledger audit is enabled the chain is verified on
its cron schedule. With --config the file is watched and log level, default
preferred provider and token ratios are applied on change.

Examples:
  # Start with defaults
  carpool serve

  # Start with a config file on another address
  carpool serve --config /etc/carpool/config.yaml --listen 0.0.0.0:8090

  # Validate configuration and storage without listening
  carpool serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and open storage without serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	out := cmd.OutOrStdout()
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Configuration valid")

	collector := metrics.NewCollector(cfg.Telemetry.Metrics)

	estimator, err := tokens.New(&cfg.Processing.Tokens)
	if err != nil {
		return cli.NewConfigError("processing.tokens", err.Error())
	}
	analyzer := routing.NewAnalyzer(estimator)
	router, err := newRouter(cfg, collector)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Routing catalog loaded (%d models)\n", router.Catalog().Len())

	defaultProviders, err := routing.ParseProviders(cfg.Routing.AvailableProviders)
	if err != nil {
		return cli.NewConfigError("routing.available_providers", err.Error())
	}

	l, err := openLedger(cfg, chain.WithRecorder(collector), chain.WithLogger(logger.Component("ledger")))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Store().Close(); cerr != nil {
			slog.Warn("failed to close ledger store", "error", cerr)
		}
	}()

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	tlsConfig, err := sectls.NewServerConfig(cfg.Server.TLS, logger.Component("tls"))
	if err != nil {
		return cli.NewConfigError("server.tls", err.Error())
	}
	if tlsConfig != nil {
		fmt.Fprintf(out, "✓ TLS certificate loaded (%s)\n", cfg.Server.TLS.CertFile)
	}

	var authn *auth.Authenticator
	if cfg.Server.Auth.Enabled {
		authn, err = auth.NewAuthenticator(cfg.Server.Auth)
		if err != nil {
			return cli.NewConfigError("server.auth", err.Error())
		}
		fmt.Fprintf(out, "✓ API key authentication enabled (%d keys)\n", len(cfg.Server.Auth.Keys))
	}

	tail, _, err := l.Tail(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger tail: %w", err)
	}
	collector.RecordChainTail(tail)
	fmt.Fprintf(out, "✓ Ledger opened (%s backend, tail %d)\n", cfg.Ledger.Backend, tail)

	if serveFlags.dryRun {
		fmt.Fprintln(out, "✓ Dry run complete")
		return nil
	}

	tracer, err := tracing.New(cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), tracerFlushTimeout)
		defer cancel()
		if err := tracer.Shutdown(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()
	if tracer.Enabled() {
		fmt.Fprintf(out, "✓ Tracing enabled (%s)\n", cfg.Telemetry.Tracing.Endpoint)
	}

	checker := health.New(health.DefaultCheckTimeout)
	checker.RegisterCheck("ledger", health.LedgerCheck(l))

	if cfg.Ledger.Audit.Enabled {
		scheduler := audit.NewScheduler(l, cfg.Ledger.Audit, func(r *chain.Report) {
			logger.Slog().Error("scheduled chain audit failed",
				"first_invalid", r.FirstInvalid, "error", r.Err())
		})
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start ledger audit: %w", err)
		}
		defer scheduler.Stop()
		checker.RegisterCheck("audit", health.AuditCheck(scheduler.LastReport))
		fmt.Fprintf(out, "✓ Ledger audit scheduled (%s)\n", cfg.Ledger.Audit.Schedule)
	}

	if cfgFile != "" {
		watcher := config.NewWatcher(cfgFile, 0, logger.Component("config"), func(next *config.Config) {
			applyReload(logger, router, estimator, next)
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Slog().Error("config watcher stopped", "error", err)
			}
		}()
	}

	deps := server.Deps{
		Router:           router,
		Analyzer:         analyzer,
		Ledger:           l,
		DefaultProviders: defaultProviders,
		Health:           checker,
		Version:          Version,
		Commit:           GitCommit,
		BuildTime:        BuildDate,
		Logger:           logger.Component("server"),
		Auth:             authn,
		TLS:              tlsConfig,
		Recorder:         collector,
	}
	if cfg.Server.RateLimit.Enabled {
		deps.Limiter = ratelimit.NewLimiter(cfg.Server.RateLimit)
	}
	if tracer.Enabled() {
		deps.Tracer = tracer
	}
	if collector.Enabled() {
		deps.Metrics = collector.Handler()
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}

	srv, err := server.NewServer(cfg.Server, deps)
	if err != nil {
		return err
	}
	scheme := "http"
	if tlsConfig != nil {
		scheme = "https"
	}
	fmt.Fprintf(out, "✓ Listening on %s://%s\n", scheme, cfg.Server.ListenAddress)
	return srv.Start(ctx)
}

// applyReload applies the settings that can change without a restart. An
// explicit --log-level keeps precedence over the file.
// Ratios only apply to the simple estimator; switching estimators needs a
// restart.
func applyReload(logger *logging.Logger, router *routing.Router, estimator tokens.Estimator, next *config.Config) {
	if logLevel == "" {
		if err := logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
			logger.Slog().Warn("ignoring reloaded log level", "error", err)
		}
	}
	router.SetDefaultPreference(routing.Provider(next.Routing.DefaultPreferredProvider))
	if simple, ok := estimator.(*tokens.SimpleEstimator); ok {
		simple.UpdateRatios(&next.Processing.Tokens)
	}
}
