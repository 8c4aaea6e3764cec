package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/log"
	gsheet "saldo/internal/sheets/google"
	"saldo/internal/worker"
)

func main() {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", os.Stdout).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout).WithComponent(log.ComponentWorker)
	logger.Info("Starting saldo-worker")

	if !cfg.ExportEnabled() {
		logger.Error("Nothing to do - GOOGLE_SPREADSHEET_ID is not set")
		os.Exit(1)
	}
	if cfg.DataBackend != backend.SQLiteBackend.String() {
		// the memory backend lives inside another process
		logger.Error("The worker needs the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer be.Close()

	exporter, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	w := worker.NewExportWorker(be.Store, cfg.LedgerKey, exporter, logger.Slog())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, cfg.ExportInterval)
	})

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			cancel()
			_ = g.Wait()
			os.Exit(1)
		}
		defer client.Close()
		g.Go(func() error {
			return client.ConsumeLedgerChanged(gctx, w.HandleLedgerChanged)
		})
		logger.Info("Consuming ledger changes", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - exporting on interval only", "interval", cfg.ExportInterval)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
