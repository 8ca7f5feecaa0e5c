package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"prism-gw/prism/pkg/config"
	"prism-gw/prism/pkg/dispatch"
	"prism-gw/prism/pkg/keypool"
	"prism-gw/prism/pkg/keypool/storage"
	"prism-gw/prism/pkg/limits/ratelimit"
	"prism-gw/prism/pkg/recovery"
	"prism-gw/prism/pkg/server"
	"prism-gw/prism/pkg/telemetry/logging"
	"prism-gw/prism/pkg/telemetry/metrics"
	"prism-gw/prism/pkg/telemetry/tracing"
	"prism-gw/prism/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Prism gateway",
	Long: `Start the Prism gateway with the specified configuration.

The gateway listens on the configured address and relays generation
requests to the upstream API, rotating through the credential pool.

Examples:
  # Start with default config
  prism run

  # Start with custom config
  prism run --config /etc/prism/config.yaml

  # Override listen address
  prism run --listen 0.0.0.0:8080

  # Validate config without starting the gateway
  prism run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if runFlags.dryRun {
		fmt.Printf("Configuration %s is valid (%d keys in pool)\n", cfgFile, len(cfg.Pool.Keys))
		return nil
	}

	logger, err := logging.New(logging.Options{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.New(ctx, tracing.Options{
		Enabled:     cfg.Telemetry.Tracing.Enabled,
		Endpoint:    cfg.Telemetry.Tracing.Endpoint,
		ServiceName: cfg.Telemetry.Tracing.ServiceName,
		SampleRatio: cfg.Telemetry.Tracing.SampleRatio,
		Insecure:    cfg.Telemetry.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracerProvider.Shutdown(context.Background())

	var collector *metrics.Collector
	metricOpts := metrics.Options{
		Namespace:       cfg.Telemetry.Metrics.Namespace,
		Subsystem:       cfg.Telemetry.Metrics.Subsystem,
		DurationBuckets: cfg.Telemetry.Metrics.DurationBuckets,
	}
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.New(metricOpts)
	}

	backend, err := newStorageBackend(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	store, err := keypool.NewStore(ctx, cfg.Pool.Keys, cfg.Pool.MaxFailures, backend, logger)
	if err != nil {
		return fmt.Errorf("build key pool: %w", err)
	}

	limiter := ratelimit.NewKeyLimiter(cfg.Pool.RequestsPerMinute, cfg.Pool.RateWindow)
	selector := keypool.NewSelector(store, limiter)

	if collector != nil {
		if err := collector.Register(metrics.NewPoolCollector(metricOpts, store, limiter)); err != nil {
			return fmt.Errorf("register pool metrics: %w", err)
		}
	}

	caller, err := upstream.NewHTTPCaller(upstream.HTTPCallerOptions{
		BaseURL:      cfg.Upstream.BaseURL,
		Timeout:      cfg.Upstream.Timeout,
		ProbePath:    cfg.Upstream.ProbePath,
		MaxIdleConns: cfg.Upstream.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("build upstream caller: %w", err)
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		Selector:       selector,
		Store:          store,
		Caller:         caller,
		MaxRetries:     cfg.Pool.MaxRetries,
		AttemptTimeout: cfg.Upstream.Timeout,
		Logger:         logger,
		Metrics:        collector,
	})
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	if cfg.Recovery.Enabled {
		prober, err := recovery.New(recovery.Options{
			Store:           store,
			Caller:          caller,
			CheckInterval:   cfg.Recovery.CheckInterval,
			MinDisabled:     cfg.Recovery.MinDisabled,
			ProbeTimeout:    cfg.Recovery.ProbeTimeout,
			ProbesPerSecond: cfg.Recovery.ProbesPerSecond,
			ProbeBurst:      cfg.Recovery.ProbeBurst,
			Logger:          logger,
			Metrics:         collector,
		})
		if err != nil {
			return fmt.Errorf("build recovery prober: %w", err)
		}
		if err := prober.Start(); err != nil {
			return fmt.Errorf("start recovery prober: %w", err)
		}
		defer prober.Stop()
	}

	startConfigWatcher(ctx, cfgFile, store, limiter, logger)

	srv, err := server.New(server.Options{
		Config:       cfg.Server,
		Dispatcher:   dispatcher,
		Store:        store,
		Usage:        limiter,
		AccessTokens: cfg.Auth.AccessTokens,
		Metrics:      collector,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	logger.Info("prism gateway starting",
		slog.String("version", Version),
		slog.Int("pool_keys", store.Len()),
		slog.String("upstream", cfg.Upstream.BaseURL))

	return srv.Run(ctx)
}

// newStorageBackend builds the configured persistence backend.
func newStorageBackend(cfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		backend, err := storage.NewSQLiteBackend(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite state store: %w", err)
		}
		logger.Info("key state persistence enabled", slog.String("path", cfg.Path))
		return backend, nil
	default:
		return storage.NewMemoryBackend(), nil
	}
}

// startConfigWatcher hot-reloads the key pool when the config file changes
// on disk. Only pool membership is applied live; server and upstream
// settings need a restart.
func startConfigWatcher(ctx context.Context, path string, store *keypool.Store, limiter *ratelimit.KeyLimiter, logger *slog.Logger) {
	watcher, err := config.NewWatcher(path, logger)
	if err != nil {
		logger.Warn("config watcher unavailable", slog.Any("error", err))
		return
	}

	go func() {
		defer watcher.Stop()
		err := watcher.Watch(ctx, func(next *config.Config) error {
			previous := make([]string, 0, store.Len())
			for _, rec := range store.Snapshot() {
				previous = append(previous, rec.Identifier)
			}
			if err := store.Reload(ctx, next.Pool.Keys); err != nil {
				return err
			}
			for _, key := range store.RemovedKeys(previous) {
				limiter.Forget(key)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("config watcher stopped", slog.Any("error", err))
		}
	}()
}
