package core

import "strings"

// Taxonomy is the recognized category set offered to users.
// The ledger never checks that a category matches the amount's sign.
type Taxonomy struct {
	Income  []string
	Expense []string
}

// DefaultTaxonomy returns the built-in income and expense categories.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{
		Income:  []string{"Salary", "Gifts", "Investments", "Freelance", "Other"},
		Expense: []string{"Food", "Transport", "Utilities", "Entertainment", "Shopping", "Health", "Housing", "Other"},
	}
}

// NewTaxonomy trims, drops blanks and de-duplicates both lists.
func NewTaxonomy(income, expense []string) *Taxonomy {
	return &Taxonomy{Income: dedupe(income), Expense: dedupe(expense)}
}

// All returns the union of income and expense categories without
// duplicates, in declaration order.
func (t *Taxonomy) All() []string {
	return dedupe(append(append([]string(nil), t.Income...), t.Expense...))
}

// Contains reports whether name is a recognized category.
func (t *Taxonomy) Contains(name string) bool {
	for _, c := range t.Income {
		if c == name {
			return true
		}
	}
	for _, c := range t.Expense {
		if c == name {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
