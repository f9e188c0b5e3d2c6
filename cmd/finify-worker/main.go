package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finify/internal/amqp"
	"finify/internal/config"
	"finify/internal/fx"
	"finify/internal/log"
	"finify/internal/storage"
	"finify/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	cfg := log.DefaultConfig()
	cfg.Component = "finify-worker"
	logger := log.New(cfg)
	slog.SetDefault(logger.Logger)

	logger.Info("Starting finify-worker")

	// Load and validate configuration
	appCfg := config.Load()
	if err := appCfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if appCfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage backend (runs migrations)
	store, err := storage.NewFromConfig(ctx, appCfg)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "backend", appCfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()

	// FX resolver shared with the API server through the persisted
	// rate cache: rates warmed here become cache hits over there.
	provider := fx.NewHTTPProvider(appCfg.FxProviderURL, appCfg.FxTimeout)
	resolver := fx.NewResolver(store, provider, appCfg.FxSource, appCfg.FxTimeout)

	// Initialize AMQP client for consuming messages
	amqpClient, err := amqp.NewClient(appCfg.AMQPURL, appCfg.AMQPExchange, appCfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	warmWorker := worker.NewWarmWorker(store, resolver, appCfg.BaseCurrency)

	// Start message consumption
	go func() {
		err := amqpClient.ConsumeMonthCreated(ctx, func(msg *amqp.MonthCreatedMessage) error {
			return warmWorker.HandleMonthCreated(ctx, msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Give the consumer time to finish the in-flight message
	logger.Info("Shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
