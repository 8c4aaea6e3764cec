package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/amqp"
	"saldo/internal/cli"
	apphttp "saldo/internal/http"
	"saldo/internal/log"
	"saldo/internal/services"
)

func main() {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", os.Stdout).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	var notifier services.ChangeNotifier
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		notifier = client
		logger.Info("AMQP change notifications enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	l, err := cli.OpenLedger(ctx, cfg, logger.Slog(), notifier)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer l.Close()

	srv := apphttp.NewServer(":"+cfg.Port, l.Service, logger, apphttp.WithRateLimit(cfg.RateLimitPerMinute))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting saldo server", "port", cfg.Port, "backend", cfg.DataBackend, log.FieldLedgerKey, cfg.LedgerKey)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		l.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
