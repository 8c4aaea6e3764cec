// Package google exports the ledger to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/core"
	"saldo/internal/report"
	"saldo/internal/sheets"
)

var _ sheets.LedgerExporter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		cfg.SheetName = "Ledger"
	}

	credentialsJSON, err := credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// credentials resolves the inline JSON, then the file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportLedger clears the sheet and writes the ledger newest first, followed
// by the totals and the expense breakdown.
func (c *Client) ExportLedger(ctx context.Context, txs []core.Transaction, summary core.Summary) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.sheetName, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", c.sheetName, err)
	}

	rng := fmt.Sprintf("%s!A1", c.sheetName)
	vr := &gsheet.ValueRange{Values: ledgerValues(txs, summary)}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet %s: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Ledger exported to Google Sheets",
		"sheet", c.sheetName,
		"transactions", len(txs),
		"rows", len(vr.Values))
	return nil
}

// ledgerValues lays out the export grid.
func ledgerValues(txs []core.Transaction, summary core.Summary) [][]any {
	values := make([][]any, 0, len(txs)+len(summary.ByCategory)+8)
	values = append(values, []any{"Date", "Description", "Category", "Amount", "ID"})
	for _, t := range report.SortByDateDesc(txs) {
		values = append(values, []any{t.Date.String(), t.Text, t.Category, t.Amount.InexactFloat64(), t.ID})
	}

	values = append(values,
		[]any{},
		[]any{"Balance", summary.Balance.InexactFloat64()},
		[]any{"Income", summary.Income.InexactFloat64()},
		[]any{"Expense", summary.Expense.InexactFloat64()},
	)

	if len(summary.ByCategory) > 0 {
		values = append(values, []any{}, []any{"Category", "Spent"})
		for _, c := range summary.ByCategory {
			values = append(values, []any{c.Name, c.Amount.InexactFloat64()})
		}
	}
	return values
}
