package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pipelinesight/pipeline-rca/internal/api"
	"github.com/pipelinesight/pipeline-rca/internal/config"
	"github.com/pipelinesight/pipeline-rca/internal/engine"
	"github.com/pipelinesight/pipeline-rca/internal/metrics"
	"github.com/pipelinesight/pipeline-rca/internal/narrative"
	"github.com/pipelinesight/pipeline-rca/internal/services"
	"github.com/pipelinesight/pipeline-rca/internal/store"
	"github.com/pipelinesight/pipeline-rca/internal/thresholds"
	"github.com/pipelinesight/pipeline-rca/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting pipeline-rca", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	table, err := thresholds.Load(cfg.Thresholds.Path)
	if err != nil {
		logger.Error("failed to load threshold table", slog.String("path", cfg.Thresholds.Path), slog.Any("error", err))
		os.Exit(1)
	}

	fsStore := store.NewFSStore(cfg.Storage.BasePath)

	var docStore store.DocumentStore = fsStore
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		dialCtx, cancel := context.WithTimeout(context.Background(), cfg.Cache.DialTimeout)
		redisCache, err := store.NewRedisCache(dialCtx, store.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
		})
		cancel()
		if err != nil {
			logger.Warn("document cache unavailable", slog.Any("error", err))
		} else {
			defer redisCache.Close()
			docStore = store.NewCachedStore(fsStore, redisCache, cfg.Cache.DocumentTTL, logger)
		}
	}

	pipeline := engine.NewPipeline(logger, docStore, table, engine.Options{
		SLALimitHours: cfg.Analysis.SLALimitHours,
		ClusterGap:    cfg.Analysis.ClusterGap,
	})

	var formatter narrative.Formatter = narrative.NewRuleFormatter()
	if cfg.Narrative.Enabled {
		formatter = narrative.NewAnthropicFormatter(narrative.AnthropicConfig{
			APIKey:    cfg.Narrative.APIKey,
			Model:     cfg.Narrative.Model,
			MaxTokens: cfg.Narrative.MaxTokens,
		}, logger)
	}

	rcaService := services.NewRCAService(logger, pipeline, docStore, formatter)
	handlers := api.NewHandlers(logger, rcaService)
	server := api.NewServer(cfg.Server, handlers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", slog.Any("error", err))
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("pipeline-rca stopped")
}
