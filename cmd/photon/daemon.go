package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/photon/internal/config"
	"github.com/oriys/photon/internal/handler"
	"github.com/oriys/photon/internal/logging"
	"github.com/oriys/photon/internal/metrics"
	"github.com/oriys/photon/internal/observability"
	"github.com/oriys/photon/internal/runner"
	"github.com/oriys/photon/internal/runtimeapi"
	"github.com/oriys/photon/internal/spec"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var (
		endpoint string
		manifest string
		logLevel string
		restore  bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the runtime client loop",
		Long:  "Poll the control endpoint for invocations and execute the handler described by the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("endpoint") {
				cfg.Runtime.Endpoint = endpoint
			}
			if cmd.Flags().Changed("manifest") {
				cfg.Daemon.ManifestPath = manifest
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}

			logging.Init(cfg.Daemon.LogFormat, cfg.Daemon.LogLevel)
			logger := logging.Op()

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Tracing.Enabled,
				Exporter:    cfg.Tracing.Exporter,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				SampleRate:  cfg.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Metrics.Enabled {
				metrics.Init(cfg.Metrics.Namespace, nil)
				go serveMetrics(cfg.Metrics.Addr, logger)
			}

			opts := []runtimeapi.Option{
				runtimeapi.WithNextTimeout(cfg.Runtime.NextTimeout),
				runtimeapi.WithReportTimeout(cfg.Runtime.ReportTimeout),
			}
			if cfg.Runtime.VsockCID != 0 && cfg.Runtime.VsockPort != 0 {
				opts = append(opts, runtimeapi.WithVsock(cfg.Runtime.VsockCID, cfg.Runtime.VsockPort))
			}
			client, err := runtimeapi.New(cfg.Runtime.Endpoint, opts...)
			if err != nil {
				return fmt.Errorf("create runtime client: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			h, m, err := initHandler(ctx, client, cfg.Daemon.ManifestPath, logger)
			if err != nil {
				return err
			}
			defer h.Close()

			var fallback time.Duration
			if m.Timeout > 0 {
				fallback = time.Duration(m.Timeout) * time.Second
			}

			r := runner.New(client, h,
				runner.WithLogger(logger),
				runner.WithFallbackTimeout(fallback),
			)

			if restore || os.Getenv("AWS_LAMBDA_INITIALIZATION_TYPE") == "snap-start" {
				if err := r.Restore(ctx, nil); err != nil {
					return fmt.Errorf("restore: %w", err)
				}
			}

			logger.Info("runtime client started",
				"endpoint", cfg.Runtime.Endpoint,
				"handler", m.Name,
				"mode", m.Mode,
			)
			return r.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Control endpoint host:port (overrides AWS_LAMBDA_RUNTIME_API)")
	cmd.Flags().StringVar(&manifest, "manifest", "", "Path to the handler manifest")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&restore, "restore", false, "Run the restore phase before polling")
	return cmd
}

// initHandler loads the manifest and constructs the handler. A failure here
// is an initialization error: it is reported to the control endpoint before
// the process gives up.
func initHandler(ctx context.Context, client *runtimeapi.Client, manifestPath string, logger *slog.Logger) (handler.Handler, *spec.Manifest, error) {
	m, err := spec.ParseFile(manifestPath)
	if err == nil {
		var h handler.Handler
		if h, err = handler.New(m); err == nil {
			return h, m, nil
		}
	}

	logger.Error("handler initialization failed", "err", err)
	if reportErr := client.ReportInitError(ctx,
		handler.ErrorBody(handler.ErrTypeInit, err.Error()), handler.ErrTypeInit); reportErr != nil {
		logger.Error("report init error failed", "err", reportErr)
	}
	return nil, nil, fmt.Errorf("init handler: %w", err)
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener failed", "err", err)
	}
}
