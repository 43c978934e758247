package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finboard/internal/auth"
	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/core"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
	"finboard/internal/services"
)

// listCacheSize bounds the number of owners whose lists stay cached.
const listCacheSize = 256

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	backendRes := cli.InitStore(startupCtx, logger, cfg)
	startupCancel()
	st := backendRes.Store

	tokens, err := auth.NewTokens(cli.SessionSecret(logger, cfg), cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to initialize session tokens", log.FieldError, err)
		os.Exit(1)
	}
	authSvc, err := auth.NewService(st, tokens, cfg.BcryptCost, logger)
	if err != nil {
		logger.Error("Failed to initialize auth service", log.FieldError, err)
		os.Exit(1)
	}

	lists := cache.NewLRUCache[[]core.Transaction](listCacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(lists)
	cacheManager.StartCleanup(time.Minute)

	var publisher services.EventPublisher
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		publisher = amqpClient
	}

	txSvc := services.NewTransactionService(st, publisher, lists, logger)
	savingsSvc := services.NewSavingsService(txSvc, st, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:                   authSvc,
		Transactions:           txSvc,
		Savings:                savingsSvc,
		Store:                  st,
		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if backendRes.Cleanup != nil {
			if err := backendRes.Cleanup(); err != nil {
				logger.Warn("Store close error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting finboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
