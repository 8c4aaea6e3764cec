package main

import (
	"context"
	"os"

	"saldo/internal/amqp"
	appcli "saldo/internal/cli"
	"saldo/internal/config"
	"saldo/internal/log"
	"saldo/internal/services"
)

// Globals are the flags shared by every command. Empty values keep whatever
// the environment configures.
type Globals struct {
	Backend  string `help:"Storage backend (${backends})."`
	DB       string `help:"SQLite database path." type:"path"`
	Ledger   string `help:"Key the ledger is stored under."`
	LogLevel string `help:"Log level for diagnostics on stderr." default:"warn" enum:"debug,info,warn,error"`
	JSON     bool   `help:"Print machine readable JSON."`
}

func (g *Globals) config() (*config.Config, error) {
	appcli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.Backend != "" {
		cfg.DataBackend = g.Backend
	}
	if g.DB != "" {
		cfg.SQLiteDBPath = g.DB
	}
	if g.Ledger != "" {
		cfg.LedgerKey = g.Ledger
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is an opened ledger plus the resources to release after the command.
type session struct {
	*appcli.Ledger
	logger *log.Logger
	amqp   *amqp.Client
}

func (s *session) Close() {
	if s.amqp != nil {
		_ = s.amqp.Close()
	}
	if err := s.Ledger.Close(); err != nil {
		s.logger.Warn("Failed to close ledger", log.FieldError, err)
	}
}

func (g *Globals) open(ctx context.Context) (*session, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	logger := appcli.SetupLogger(g.LogLevel, os.Stderr).WithComponent(log.ComponentCLI)

	s := &session{logger: logger}
	var notifier services.ChangeNotifier
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// the change is still saved; the worker catches up on its interval
			logger.Warn("AMQP unavailable, change will not be announced", log.FieldError, err)
		} else {
			s.amqp = client
			notifier = client
		}
	}

	l, err := appcli.OpenLedger(ctx, cfg, logger.Slog(), notifier)
	if err != nil {
		if s.amqp != nil {
			_ = s.amqp.Close()
		}
		return nil, err
	}
	s.Ledger = l
	return s, nil
}
