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
	"golang.org/x/sync/errgroup"

	"risparmio/internal/amqp"
	"risparmio/internal/backend"
	"risparmio/internal/config"
	"risparmio/internal/core"
	apphttp "risparmio/internal/http"
	applog "risparmio/internal/log"
	"risparmio/internal/services"
	"risparmio/internal/transfer"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentApp})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}

	store, err := backend.New(backend.Config{
		Type:         backend.Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
	}, logger.WithComponent(applog.ComponentStorage))
	if err != nil {
		logger.Error("Failed to initialize storage backend", applog.FieldError, err.Error())
		os.Exit(1)
	}
	if store.Cleanup != nil {
		defer store.Cleanup()
	}

	// Event publishing is optional; without AMQP the ledger runs silent.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			logger.WithComponent(applog.ComponentAMQP))
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events",
				applog.FieldError, err.Error())
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("Initialized AMQP event publishing",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	params := core.Params{AnnualRateBps: cfg.AnnualRateBps, LockPeriod: cfg.LockPeriod}
	ledger := services.NewSavingsLedger(
		store.Store,
		transfer.NewUnbackedVault(),
		events,
		params,
		nil,
		logger.WithComponent(applog.ComponentLedger),
	)

	srv := apphttp.NewServer(":"+cfg.Port, ledger, logger.WithComponent(applog.ComponentHTTP))
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting risparmio server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			applog.FieldRateBps, cfg.AnnualRateBps,
			applog.FieldLock, cfg.LockPeriod.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
