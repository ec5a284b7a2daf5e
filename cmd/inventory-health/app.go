package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/ceph"
	"github.com/starlingx/metal-sub001/internal/client"
	"github.com/starlingx/metal-sub001/internal/config"
	"github.com/starlingx/metal-sub001/internal/health"
	"github.com/starlingx/metal-sub001/internal/hostops"
	"github.com/starlingx/metal-sub001/internal/metrics"
	"github.com/starlingx/metal-sub001/internal/store"
)

// app holds the wired components shared by serve and health-query
type app struct {
	metrics   *metrics.Metrics
	hostStore store.HostStore
	reports   store.ReportStore
	evaluator *health.Evaluator
	hostOps   *hostops.Service
}

// newApp wires the collaborator clients, stores and evaluator.
func newApp(cfg *config.Config, logger *zap.Logger, withReports bool) (*app, error) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	rest, err := client.NewRESTClient(cfg.Client, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}
	catalog := client.NewCatalog(cfg.Catalog.DefaultRegion, cfg.Catalog.Endpoints)

	patches := client.NewPatchClient(rest, catalog)
	vim := client.NewVIMClient(rest, catalog)

	hostStore, err := store.NewPostgresHostStore(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}

	deps := health.Dependencies{
		Hosts:   hostStore,
		Alarms:  client.NewFMClient(rest, catalog),
		Patches: patches,
		VIM:     vim,
	}
	if cfg.Health.CephBackend {
		deps.Ceph = ceph.NewOperator(client.NewCephClient(rest, cfg.Ceph), logger)
	}

	evaluator := health.NewEvaluator(deps, cfg.Health, logger, m)

	a := &app{
		metrics:   m,
		hostStore: hostStore,
		evaluator: evaluator,
		hostOps: hostops.NewService(
			evaluator,
			hostStore,
			client.NewSMClient(rest, catalog),
			client.NewMtceClient(rest, cfg.Maintenance, logger),
			patches,
			cfg.Maintenance.MaxRetries,
			logger,
		),
	}

	if withReports {
		a.reports, err = newReportStore(cfg.Redis, logger)
		if err != nil {
			hostStore.Close()
			return nil, err
		}
	}
	return a, nil
}

// newReportStore uses Redis when a host is configured, memory otherwise.
func newReportStore(cfg config.RedisConfig, logger *zap.Logger) (store.ReportStore, error) {
	if cfg.Host == "" {
		logger.Info("keeping verdicts in memory")
		return store.NewMemoryReportStore(logger), nil
	}
	rs, err := store.NewRedisReportStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}
	return rs, nil
}

func (a *app) Close() {
	if a.reports != nil {
		a.reports.Close()
	}
	a.hostStore.Close()
}
