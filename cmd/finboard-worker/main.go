package main

import (
	"context"
	"os"
	"time"

	"finboard/internal/backend"
	"finboard/internal/cli"
	"finboard/internal/log"
	"finboard/internal/sheets"
	sheetsmem "finboard/internal/sheets/memory"
	"finboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting finboard-worker")

	if !backend.BackendType(cfg.DataBackend).Persistent() {
		logger.Warn("Worker started on a non-persistent backend; it will not see the server's transactions",
			"backend", cfg.DataBackend)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	backendRes := cli.InitStore(startupCtx, logger, cfg)
	var mirror sheets.LedgerMirror
	if gclient := cli.InitMirror(startupCtx, logger, cfg); gclient != nil {
		mirror = gclient
	} else {
		logger.Warn("Mirroring into an in-process sheet; rows are marked synced but not exported")
		mirror = sheetsmem.New()
	}
	startupCancel()

	var events worker.EventSource
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		events = amqpClient
	} else {
		logger.Info("Skipping AMQP message consumption - catch-up sync only")
	}

	syncWorker := worker.NewSyncWorker(backendRes.Store, mirror, worker.Config{
		BatchSize: cfg.SyncBatchSize,
		Interval:  cfg.SyncInterval,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	exitCode := 0
	if err := syncWorker.Run(ctx, events); err != nil {
		logger.Error("Sync worker stopped", log.FieldError, err)
		exitCode = 1
	}

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

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
