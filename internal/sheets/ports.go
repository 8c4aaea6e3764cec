// Package sheets defines the spreadsheet export port.
package sheets

import (
	"context"

	"saldo/internal/core"
)

// LedgerExporter publishes a full copy of the ledger somewhere outside the
// application. Every call replaces the previous export.
type LedgerExporter interface {
	ExportLedger(ctx context.Context, txs []core.Transaction, summary core.Summary) error
}
