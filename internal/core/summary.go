package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Summary holds every aggregate derived from one snapshot.
type Summary struct {
	Balance    Money            `json:"balance"`
	Income     Money            `json:"income"`
	Expense    Money            `json:"expense"`
	ByCategory []CategoryAmount `json:"by_category"` // expense magnitudes, first-encounter order
	// Transactions is the number of entries summarized.
	Transactions int `json:"transactions"`
}

// CategoryTotal returns the aggregated amount for name and whether it exists.
func (s Summary) CategoryTotal(name string) (Money, bool) {
	for _, c := range s.ByCategory {
		if c.Name == name {
			return c.Amount, true
		}
	}
	return Zero, false
}
