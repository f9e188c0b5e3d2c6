package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finify/internal/amqp"
	"finify/internal/config"
	"finify/internal/fx"
	apphttp "finify/internal/http"
	"finify/internal/log"
	"finify/internal/services"
	"finify/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := log.New(log.DefaultConfig())
	slog.SetDefault(logger.Logger)

	logger.Info("Starting finify server")

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage backend (runs migrations)
	store, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Storage initialized", "backend", cfg.DataBackend)

	// FX rate resolution: identity, then persisted cache, then provider
	provider := fx.NewHTTPProvider(cfg.FxProviderURL, cfg.FxTimeout)
	resolver := fx.NewResolver(store, provider, cfg.FxSource, cfg.FxTimeout)

	// Crypto spot prices (optional)
	var spot *fx.SpotClient
	if cfg.SpotProviderURL != "" {
		spot = fx.NewSpotClient(cfg.SpotProviderURL, cfg.FxTimeout, cfg.SpotCacheTTL)
		spot.StartSweep(ctx, cfg.SpotCacheTTL)
	} else {
		logger.Info("Spot prices disabled - no SPOT_PROVIDER_URL provided")
	}

	// AMQP publisher for month_created events (optional). A broker
	// outage never blocks month creation, so a failed init only
	// disables publishing.
	var publisher services.MonthPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, month events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	accounts := services.NewAccountService(store)
	months := services.NewMonthService(store, resolver, spot, publisher, cfg.BaseCurrency)
	transactions := services.NewTransactionService(store, resolver, spot, months)

	srv := apphttp.NewServer(":"+cfg.Port, accounts, months, transactions, cfg.BaseCurrency, logger)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting finify server", "port", cfg.Port, "base_currency", cfg.BaseCurrency)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
