package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/cli"
	"spendwise/internal/log"
	"spendwise/internal/sheets"
	gsheet "spendwise/internal/sheets/google"
	memmirror "spendwise/internal/sheets/memory"
	"spendwise/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting spendwise-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	res := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if res.Cleanup != nil {
			_ = res.Cleanup()
		}
	}()

	var mirror sheets.TransactionMirror
	if cfg.SheetsEnabled() {
		creds, err := cfg.ServiceAccountCredentials()
		if err != nil {
			logger.Error("Failed to load Google credentials", "error", err)
			os.Exit(1)
		}
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: creds,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
	} else {
		logger.Info("Google Sheets disabled - mirroring into memory")
		mirror = memmirror.New()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	reconciler := worker.NewReconciler(res.Backend, res.Backend, cfg.StoreTimeout, logger)
	stop, err := reconciler.Schedule(ctx, cfg.ReconcileSchedule)
	if err != nil {
		logger.Error("Invalid reconcile schedule", "error", err, "schedule", cfg.ReconcileSchedule)
		os.Exit(1)
	}
	defer stop()

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		mw := worker.NewMirrorWorker(mirror, logger)
		go func() {
			if err := client.Consume(ctx, mw.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
		logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP_URL not set - ledger events will not be mirrored")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
