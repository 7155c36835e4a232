package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/auth"
	"spendwise/internal/backend"
	"spendwise/internal/cli"
	apphttp "spendwise/internal/http"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Failed to close backend", "error", err)
			}
		}
	}()

	svc := ledger.NewService(auth.ContextIdentity{}, res.Backend,
		ledger.WithStoreTimeout(cfg.StoreTimeout),
		ledger.WithLogger(logger))

	// Ledger events go to the broker when one is configured. Publishing is
	// best effort: a broker outage never fails a mutation.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events will not be published", "error", err)
		} else {
			defer client.Close()
			detach := amqp.NewPublisher(client, logger).Attach(svc.Bus())
			defer detach()
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set: every ledger request will be rejected as unauthenticated")
	}

	var ready backend.Pinger
	if p, ok := res.Backend.(backend.Pinger); ok {
		ready = p
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:             svc,
		Ready:              ready,
		Location:           cfg.Location(),
		JWTSecret:          cfg.JWTSecret,
		CacheTTL:           cfg.CacheTTL,
		CacheSize:          cfg.CacheSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})
	go svc.RunEviction(ctx, ledger.DefaultIdleTTL)

	logger.Info("Starting spendwise server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Location().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
