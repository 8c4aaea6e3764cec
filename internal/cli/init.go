// Package cli holds the start-up steps shared by cmd/saldo, cmd/saldo-worker
// and cmd/saldoctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"saldo/internal/backend"
	"saldo/internal/cache"
	"saldo/internal/config"
	"saldo/internal/core"
	"saldo/internal/format"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/services"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at level and makes it the default.
// An unknown level falls back to info.
func SetupLogger(level string, out io.Writer) *log.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.New(log.Config{Level: lvl, Output: out, Component: log.ComponentApp})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadAndValidateConfig loads the environment (after .env) and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Ledger bundles a ready service with the resources it holds.
type Ledger struct {
	Service  *services.LedgerService
	Backend  *backend.BackendResult
	Taxonomy *core.Taxonomy
	caches   *cache.Manager
}

// Close stops cache cleanup and releases the backend.
func (l *Ledger) Close() error {
	if l.caches != nil {
		l.caches.Stop()
	}
	return l.Backend.Close()
}

// OpenLedger creates the configured backend, loads the persisted ledger and
// wraps it in a LedgerService. notifier may be nil.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger, notifier services.ChangeNotifier) (*Ledger, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	income, expense := cfg.IncomeCategories, cfg.ExpenseCategories
	if len(be.IncomeCategories) > 0 {
		income = be.IncomeCategories
	}
	if len(be.ExpenseCategories) > 0 {
		expense = be.ExpenseCategories
	}
	taxonomy := core.NewTaxonomy(income, expense)

	formatter, err := format.New(cfg.FormatConfig())
	if err != nil {
		be.Close()
		return nil, err
	}

	store := ledger.New(be.Store,
		ledger.WithKey(cfg.LedgerKey),
		ledger.WithTaxonomy(taxonomy),
		ledger.WithNotation(formatter.Notation()),
		ledger.WithLogger(logger))

	views := cache.NewLRUCache[[]core.Transaction](cfg.ViewCacheSize, cfg.ViewCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(views)
	caches.StartCleanup(cfg.ViewCacheTTL)

	opts := []services.Option{
		services.WithTaxonomy(taxonomy),
		services.WithViewCache(views),
		services.WithLogger(logger),
	}
	if notifier != nil {
		opts = append(opts, services.WithNotifier(notifier))
	}
	svc := services.NewLedgerService(store, formatter, opts...)
	svc.Open(ctx)

	return &Ledger{Service: svc, Backend: be, Taxonomy: taxonomy, caches: caches}, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
func GracefulShutdown(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
