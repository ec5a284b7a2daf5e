package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/handler"
	"github.com/starlingx/metal-sub001/internal/metrics"
	"github.com/starlingx/metal-sub001/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the health API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting inventory health service",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("default_region", cfg.Catalog.DefaultRegion),
		zap.Bool("ceph_backend", cfg.Health.CephBackend),
	)

	a, err := newApp(cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, a.metrics, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	errorHandler := apierrors.NewHandler(logger)
	handlers := handler.NewHandlers(a.evaluator, a.hostOps, a.reports, errorHandler, logger, cfg.Health.ReportTTL)
	probes := handler.NewProbes(map[string]handler.Pinger{
		"host_store":   a.hostStore,
		"report_store": a.reports,
	}, logger)

	var serverMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		serverMetrics = a.metrics
	}
	httpServer := server.NewServer(cfg, handlers, probes, errorHandler, serverMetrics, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case serveErr = <-errChan:
		logger.Error("server error", zap.Error(serveErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	logger.Info("inventory health service stopped")
	return serveErr
}
