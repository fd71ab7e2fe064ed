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

	"github.com/pittisunilkumar3/nibog-sub001/internal/api"
	"github.com/pittisunilkumar3/nibog-sub001/internal/backend"
	"github.com/pittisunilkumar3/nibog-sub001/internal/booking"
	"github.com/pittisunilkumar3/nibog-sub001/internal/cache"
	"github.com/pittisunilkumar3/nibog-sub001/internal/callback"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/db"
	"github.com/pittisunilkumar3/nibog-sub001/internal/gateway"
	"github.com/pittisunilkumar3/nibog-sub001/internal/kafka"
	"github.com/pittisunilkumar3/nibog-sub001/internal/logging"
	"github.com/pittisunilkumar3/nibog-sub001/internal/metrics"
	"github.com/pittisunilkumar3/nibog-sub001/internal/notify"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reconcile"
	"github.com/pittisunilkumar3/nibog-sub001/internal/ticket"
)

type ledger interface {
	reconcile.Ledger
	callback.Ledger
}

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoadConfig(".")
	logger := logging.GetLogger(cfg.Logs)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration, refusing to start", "error", err)
		os.Exit(1)
	}

	metrics.Setup(cfg.Metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var txnLedger ledger = db.NewMemoryRepository()
	if cfg.Database.Enabled() {
		connStr := db.GetConnStr(cfg.Database)
		if err := db.RunMigrations(connStr); err != nil {
			logger.Error("Error running migrations", "error", err)
			os.Exit(1)
		}
		dbpool, err := db.GetPool(ctx, connStr)
		if err != nil {
			logger.Error("Error connecting to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()
		txnLedger = db.NewTransactionRepository(dbpool)
	} else {
		logger.Warn("No database configured, using in-memory transaction ledger (single replica only)")
	}

	var responseCache cache.Cache = cache.NewMemory(config.Millis(cfg.Cache.TTLMs))
	if cfg.Cache.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			logger.Error("Error connecting to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		responseCache = cache.NewRedis(client, config.Millis(cfg.Cache.TTLMs), logger)
	}

	var publisher notify.Publisher
	if cfg.Kafka.Brokers != "" {
		writer := kafka.NewWriter(cfg.Kafka)
		defer writer.Close()
		publisher = kafka.NewOutcomePublisher(writer, logger)
	}

	gatewayClient := gateway.NewClient(gateway.ConfigFrom(cfg.Gateway), logger)
	backendClient := backend.NewClient(cfg.Backend, logger)
	finder := booking.NewFinder(backendClient, responseCache, logger)

	dispatcher := notify.NewDispatcher(
		notify.NewWhatsAppClient(cfg.WhatsApp, logger),
		notify.NewEmailClient(cfg.Email, logger),
		ticket.NewGenerator(logger),
		publisher,
		logger,
	)

	confirmer := reconcile.NewService(reconcile.ConfigFrom(cfg.Reconcile), gatewayClient, finder, txnLedger, logger)
	processor := callback.NewProcessor(gatewayClient, txnLedger, finder, backendClient, responseCache, dispatcher, cfg.Callback, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewServer(confirmer, processor, finder, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr, "gatewayEnvironment", cfg.Gateway.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Millis(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
