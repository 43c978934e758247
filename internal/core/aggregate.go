package core

import (
	"sort"
	"strings"
)

// Aggregate computes the monthly totals of txs for period p.
//
// A transaction counts when its date falls in p and, unless categoryFilter
// is empty or AllCategories, its category equals the filter.
// AvailableCategories always lists every category seen in p so that a
// filter UI can offer the full set.
func Aggregate(txs []Transaction, p Period, categoryFilter string) Summary {
	filter := strings.TrimSpace(categoryFilter)
	if filter == "" {
		filter = AllCategories
	}

	var income, expense, savings int64
	seen := make(map[string]struct{})
	expenseTotals := make(map[string]int64)

	for _, t := range txs {
		if !p.Contains(t.OccurredOn) {
			continue
		}
		seen[t.Category] = struct{}{}

		if filter != AllCategories && t.Category != filter {
			continue
		}

		switch t.Kind {
		case KindIncome:
			income += t.Amount.Cents
		case KindExpense:
			expense += t.Amount.Cents
			expenseTotals[t.Category] += t.Amount.Cents
			if t.IsSavings() {
				savings += t.Amount.Cents
			}
		}
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	rate := SavingsRate(Money{Cents: savings}, Money{Cents: income})

	return Summary{
		Year:                p.Year,
		Month:               int(p.Month),
		Category:            filter,
		TotalIncome:         Money{Cents: income},
		TotalExpense:        Money{Cents: expense},
		Balance:             Money{Cents: income - expense},
		TotalSavings:        Money{Cents: savings},
		SavingsRate:         rate.InexactFloat64(),
		SavingsTier:         SavingsTier(rate),
		AvailableCategories: categories,
		ExpenseByCategory:   byCategory(expenseTotals),
	}
}
