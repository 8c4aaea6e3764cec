package report

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"saldo/internal/core"
)

// fold returns the caseless form of s. A fresh Caser per call keeps the
// functions safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Filter keeps the transactions whose text or category contains term,
// ignoring case. An empty term keeps everything. Input order is preserved.
func Filter(txs []core.Transaction, term string) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	if term == "" {
		return append(out, txs...)
	}
	needle := fold(term)
	for _, t := range txs {
		if strings.Contains(fold(t.Text), needle) || strings.Contains(fold(t.Category), needle) {
			out = append(out, t)
		}
	}
	return out
}

// SortByDateDesc returns a copy ordered newest first. Transactions sharing a
// date keep their relative input order.
func SortByDateDesc(txs []core.Transaction) []core.Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out
}

// View is the listing handed to rendering: SortByDateDesc(Filter(txs, term)).
func View(txs []core.Transaction, term string) []core.Transaction {
	return SortByDateDesc(Filter(txs, term))
}
