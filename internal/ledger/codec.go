package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"saldo/internal/core"
)

// DefaultKey is the single persistence key holding the whole ledger.
const DefaultKey = "transactions"

var errDuplicateID = errors.New("duplicate id")

// record is the persisted shape of a transaction.
type record struct {
	ID       int64      `json:"id"`
	Text     string     `json:"text"`
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
	Date     core.Date  `json:"date"`
}

// Encode serializes the full collection in order.
func Encode(txs []core.Transaction) ([]byte, error) {
	recs := make([]record, len(txs))
	for i, t := range txs {
		recs[i] = record{ID: t.ID, Text: t.Text, Amount: t.Amount, Category: t.Category, Date: t.Date}
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger: %w", err)
	}
	return b, nil
}

// Decode parses a payload produced by Encode. Any structural problem, an
// invalid record or a repeated id makes the whole payload malformed.
func Decode(payload []byte) ([]core.Transaction, error) {
	var recs []record
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal ledger: %w", err)
	}
	seen := make(map[int64]struct{}, len(recs))
	txs := make([]core.Transaction, 0, len(recs))
	for i, r := range recs {
		t := core.Transaction{ID: r.ID, Text: r.Text, Amount: r.Amount, Category: r.Category, Date: r.Date}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("record %d: %w %d", i, errDuplicateID, t.ID)
		}
		seen[t.ID] = struct{}{}
		txs = append(txs, t)
	}
	return txs, nil
}
