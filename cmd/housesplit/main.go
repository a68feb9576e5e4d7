package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"housesplit/internal/amqp"
	"housesplit/internal/cache"
	"housesplit/internal/cli"
	"housesplit/internal/core"
	apphttp "housesplit/internal/http"
	"housesplit/internal/log"
	"housesplit/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	summaryCache := cache.NewLRUCache[core.MonthSummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(summaryCache)
	cacheManager.StartCleanup(cfg.SummaryCacheTTL)
	defer cacheManager.Stop()

	// Events are optional; without a broker the worker relies on its
	// periodic export.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	summaries := services.NewSummaryService(repo, summaryCache)
	shares := services.NewShareService(repo, repo, summaries)
	svc := apphttp.Services{
		Expenses:  services.NewExpenseService(repo, publisher, summaries),
		People:    services.NewPeopleService(repo, summaries),
		Shares:    shares,
		Payments:  services.NewPaymentService(repo, summaries),
		Summaries: summaries,
		Reports:   services.NewReportService(repo, shares),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, repo, apphttp.Options{
		CORSAllowedOrigin:  cfg.CORSAllowedOrigin,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting housesplit server",
		"port", cfg.Port,
		"summary_cache_ttl", cfg.SummaryCacheTTL.String(),
		"rate_limit_per_minute", cfg.RateLimitPerMinute)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
