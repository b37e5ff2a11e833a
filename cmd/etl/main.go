package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/region-metrics-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/region-metrics-etl/internal/adapter/kafka"
	"github.com/couchcryptid/region-metrics-etl/internal/adapter/postgres"
	"github.com/couchcryptid/region-metrics-etl/internal/adapter/rtprovider"
	"github.com/couchcryptid/region-metrics-etl/internal/config"
	"github.com/couchcryptid/region-metrics-etl/internal/domain"
	"github.com/couchcryptid/region-metrics-etl/internal/filter"
	"github.com/couchcryptid/region-metrics-etl/internal/observability"
	"github.com/couchcryptid/region-metrics-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	calc, err := domain.NewCalculator(cfg.Metrics, logger)
	if err != nil {
		logger.Error("failed to build calculator", "error", err)
		os.Exit(1)
	}

	var rules *filter.Filter
	if cfg.FilterConfigPath != "" {
		filterCfg, err := filter.Load(cfg.FilterConfigPath)
		if err != nil {
			logger.Error("failed to load filters", "error", err)
			os.Exit(1)
		}
		rules = filter.New(filterCfg, logger)
		logger.Info("manual filters loaded", "path", cfg.FilterConfigPath, "rules", len(rules.Rules()))
	}

	// Infection rate enrichment (feature-flagged via RT_PROVIDER_ENABLED / RT_PROVIDER_URL).
	var provider domain.InfectionRateProvider
	if cfg.RtProviderEnabled {
		client := rtprovider.NewClient(cfg.RtProviderURL, cfg.RtProviderTimeout, metrics, logger)
		provider = rtprovider.NewCachedProvider(client, cfg.RtCacheSize, cfg.RtCacheTTL, metrics)
		metrics.RtEnabled.Set(1)
		logger.Info("infection rate provider enabled",
			"url", cfg.RtProviderURL,
			"cache_size", cfg.RtCacheSize,
			"cache_ttl", cfg.RtCacheTTL,
			"timeout", cfg.RtProviderTimeout,
		)
	} else {
		logger.Info("infection rate provider disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(calc, provider, rules, metrics, logger)

	var (
		loader pipeline.BatchLoader = writer
		latest httpadapter.LatestReader
		store  *postgres.Store
	)
	if cfg.DatabaseURL != "" {
		store, err = postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to open snapshot store", "error", err)
			os.Exit(1)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare snapshot store", "error", err)
			os.Exit(1)
		}
		loader = pipeline.MultiLoader{writer, store}
		latest = store
		logger.Info("snapshot store enabled")
	}

	p := pipeline.New(reader, transformer, loader, logger, metrics, cfg.BatchSize)

	var ready sharedobs.ReadinessChecker = p
	if store != nil {
		ready = httpadapter.AllReady{p, store}
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, latest, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("snapshot store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
