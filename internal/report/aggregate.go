// Package report derives every read-only view of the ledger: totals, the
// category-expense distribution and the filtered, date-sorted listing.
//
// All functions are pure. They never modify the slice they are given.
package report

import "saldo/internal/core"

// Balance is the sum of every amount.
func Balance(txs []core.Transaction) core.Money {
	total := core.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// IncomeTotal sums the positive amounts.
func IncomeTotal(txs []core.Transaction) core.Money {
	total := core.Zero
	for _, t := range txs {
		if t.Amount.IsIncome() {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// ExpenseTotal returns the magnitude of the sum of negative amounts.
func ExpenseTotal(txs []core.Transaction) core.Money {
	total := core.Zero
	for _, t := range txs {
		if t.Amount.IsExpense() {
			total = total.Add(t.Amount)
		}
	}
	return total.Neg()
}

// CategoryDistribution sums expense magnitudes per category, in the order
// categories are first seen. Categories without expenses are absent.
func CategoryDistribution(txs []core.Transaction) []core.CategoryAmount {
	var out []core.CategoryAmount
	index := map[string]int{}
	for _, t := range txs {
		if !t.Amount.IsExpense() {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, core.CategoryAmount{Name: t.Category, Amount: core.Zero})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount.Abs())
	}
	return out
}

// Summarize bundles every aggregate of txs.
func Summarize(txs []core.Transaction) core.Summary {
	return core.Summary{
		Balance:      Balance(txs),
		Income:       IncomeTotal(txs),
		Expense:      ExpenseTotal(txs),
		ByCategory:   CategoryDistribution(txs),
		Transactions: len(txs),
	}
}
