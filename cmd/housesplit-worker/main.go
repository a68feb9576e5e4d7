package main

import (
	"context"
	"errors"
	"os"

	"housesplit/internal/amqp"
	"housesplit/internal/backend"
	"housesplit/internal/cache"
	"housesplit/internal/cli"
	"housesplit/internal/core"
	"housesplit/internal/log"
	"housesplit/internal/services"
	"housesplit/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting housesplit-worker", "backend", cfg.ExportBackend, "sync_interval", cfg.SyncInterval.String())

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create export backend", log.FieldError, err, "backend", cfg.ExportBackend)
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup == nil {
			return
		}
		if err := result.Cleanup(); err != nil {
			logger.Warn("Export backend cleanup failed", log.FieldError, err)
		}
	}()

	summaries := services.NewSummaryService(repo, cache.NewLRUCache[core.MonthSummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL))
	exportWorker := worker.NewExportWorker(summaries, result.Exporter, cfg.ExportBackend, cfg.SyncInterval)

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - relying on periodic export only")
	}

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := exportWorker.Stop(ctx); err != nil {
			logger.Error("Export worker stop failed", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
	})

	if err := exportWorker.Start(ctx); err != nil {
		logger.Error("Failed to start export worker", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeExpenseChanged(ctx, exportWorker.HandleExpenseChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
		logger.Info("Consuming expense change events", "queue", cfg.AMQPQueue)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
