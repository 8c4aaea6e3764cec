// Package worker mirrors the persisted ledger to an external exporter.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saldo/internal/amqp"
	"saldo/internal/core"
	"saldo/internal/kv"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/report"
	"saldo/internal/sheets"
)

// ExportWorker reads the ledger payload from storage and hands it to an
// exporter. It skips the export when the payload has not changed since the
// last successful one, unless forced.
type ExportWorker struct {
	store    kv.Getter
	key      string
	exporter sheets.LedgerExporter
	logger   *slog.Logger

	mu   sync.Mutex
	last []byte
}

func NewExportWorker(store kv.Getter, key string, exporter sheets.LedgerExporter, logger *slog.Logger) *ExportWorker {
	if key == "" {
		key = ledger.DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportWorker{
		store:    store,
		key:      key,
		exporter: exporter,
		logger:   logger.With(log.FieldComponent, log.ComponentWorker),
	}
}

// HandleLedgerChanged is the AMQP handler. Messages for other ledgers are
// acknowledged without work.
func (w *ExportWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	if msg.Key != w.key {
		w.logger.DebugContext(ctx, "Ignoring change for another ledger", log.FieldLedgerKey, msg.Key)
		return nil
	}
	w.logger.InfoContext(ctx, "Processing ledger change",
		log.FieldOperation, msg.Operation,
		log.FieldTransactionID, msg.ID,
		log.FieldCount, msg.Count)

	_, err := w.Export(ctx, true)
	return err
}

// Export reads and exports the ledger. It reports whether an export was
// performed. A malformed payload is an error and nothing is exported, so a
// broken write never blanks the spreadsheet.
func (w *ExportWorker) Export(ctx context.Context, force bool) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	payload, ok, err := w.store.Get(ctx, w.key)
	if err != nil {
		return false, fmt.Errorf("read ledger: %w", err)
	}
	if !ok {
		payload = nil
	}
	if !force && w.last != nil && bytes.Equal(payload, w.last) {
		return false, nil
	}

	var txs []core.Transaction
	if len(payload) > 0 {
		txs, err = ledger.Decode(payload)
		if err != nil {
			return false, fmt.Errorf("decode ledger: %w", err)
		}
	}

	summary := report.Summarize(txs)
	if err := w.exporter.ExportLedger(ctx, txs, summary); err != nil {
		return false, fmt.Errorf("export ledger: %w", err)
	}
	w.last = append([]byte{}, payload...)

	w.logger.InfoContext(ctx, "Ledger exported",
		log.FieldLedgerKey, w.key,
		log.FieldCount, len(txs),
		"balance", summary.Balance.String())
	return true, nil
}

// Run exports once, then on every tick until ctx is done. Errors are logged
// and retried on the next tick.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	w.exportLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Export loop stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			w.exportLogged(ctx)
		}
	}
}

func (w *ExportWorker) exportLogged(ctx context.Context) {
	if _, err := w.Export(ctx, false); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
	}
}
