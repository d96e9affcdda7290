package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/paaavkata/crypto-dashboard/internal/collector"
	"github.com/paaavkata/crypto-dashboard/internal/config"
	"github.com/paaavkata/crypto-dashboard/internal/dashboard"
	"github.com/paaavkata/crypto-dashboard/internal/health"
	"github.com/paaavkata/crypto-dashboard/internal/metrics"
	"github.com/paaavkata/crypto-dashboard/internal/queue"
	"github.com/paaavkata/crypto-dashboard/pkg/api"
	"github.com/paaavkata/crypto-dashboard/pkg/utils"
)

func main() {
	// Initialize logger
	logger := utils.NewLogger("crypto-dashboard")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.WithFields(logrus.Fields{
		"api_base_url":   cfg.API.BaseURL,
		"symbols":        cfg.Symbols,
		"poll_interval":  cfg.PollInterval,
		"throttle_delay": cfg.ThrottleDelay,
		"recent_trades":  cfg.RecentTradesLimit,
		"skip_overlap":   cfg.SkipOverlappingCycles,
		"http_port":      cfg.HTTPPort,
	}).Info("Configuration loaded")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("crypto_dashboard", registry)

	// One throttle queue per dashboard session
	client := api.NewClient(cfg.API, logger)
	requests := queue.New(client, cfg.ThrottleDelay, logger).WithObserver(m)
	defer requests.Close()

	store := collector.NewStore()
	fetcher := collector.NewFetcher(requests, cfg.Symbols, cfg.RecentTradesLimit, logger)
	scheduler := collector.NewScheduler(fetcher, store, cfg.PollInterval, cfg.SkipOverlappingCycles, logger).
		WithObserver(m)

	healthChecker := health.NewHealthChecker(store, cfg.PollInterval, logger)
	server := dashboard.NewServer(cfg.Symbols, store, healthChecker.Handler(), m.Handler(), logger).
		WithTrades(cfg.RecentTradesLimit > 0)
	store.Subscribe(server.Publish)
	httpServer := server.StartServer(cfg.HTTPPort)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	logger.Info("Crypto dashboard started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down crypto dashboard...")

	scheduler.Stop()
	requests.Close()
	server.Hub().Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shutdown dashboard server gracefully")
	}

	cancel()

	logger.Info("Crypto dashboard stopped")
}
