// cmd/dispatcher/run.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	http_api "aci-dispatcher/internal/api/http"
	"aci-dispatcher/internal/config"
	"aci-dispatcher/internal/dispatch"
	"aci-dispatcher/internal/domain"
	"aci-dispatcher/internal/scheduler"
	"aci-dispatcher/internal/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRunCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the dispatch loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatcher(cmd.Context(), *configFile)
		},
	}
}

func runDispatcher(ctx context.Context, configFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Load configuration and initialize logger
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.TracingEnabled {
		tracerShutdown, err := tracing.InitTracer("aci-dispatcher", os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			if err := tracerShutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// 2. Create root context and hook signals
	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopSignals := setupGracefulShutdown(rootCtx, cancel, logger)
	defer stopSignals()

	// 3. Build the queue and provisioner clients once for the whole process
	queue, err := openQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := queue.Close(closeCtx); err != nil {
			logger.Error("failed to close queue", "error", err)
		}
	}()

	provisioner, err := openProvisioner(cfg, logger)
	if err != nil {
		return err
	}

	loop := dispatch.NewLoop(queue, provisioner, newNameGenerator(cfg.NameStrategy), dispatch.Options{
		QueueName:    cfg.QueueName,
		Image:        cfg.Image,
		Target:       domain.Target{ResourceGroup: cfg.ResourceGroup, Location: cfg.Location},
		PollInterval: cfg.PollInterval,
		ErrorBackoff: cfg.ErrorBackoff,
	}, logger)

	// 4. Heartbeat
	if cfg.HeartbeatSchedule != "" {
		heartbeat, err := scheduler.NewHeartbeat(cfg.HeartbeatSchedule, loop, logger)
		if err != nil {
			return err
		}
		go heartbeat.Start(rootCtx)
	}

	// 5. Metrics and status endpoints
	var server *http.Server
	if cfg.MetricsListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		http_api.NewStatusHandler(loop, cfg.QueueName, logger).RegisterRoutes(mux)

		server = &http.Server{Addr: cfg.MetricsListenAddr, Handler: mux}
		go func() {
			logger.Info("starting metrics server", "addr", cfg.MetricsListenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	// 6. Block in the dispatch loop until interrupted
	runErr := loop.Run(rootCtx)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("dispatcher shut down")
	return runErr
}
