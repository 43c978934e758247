package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AllCategories disables category filtering in Aggregate.
const AllCategories = "all"

// Savings rate tiers, highest first.
const (
	TierExcellent = "excellent"
	TierGood      = "good"
	TierFair      = "fair"
	TierNone      = "none"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Summary is the aggregate view of one month of a user's ledger.
type Summary struct {
	Year                int              `json:"year"`
	Month               int              `json:"month"`
	Category            string           `json:"category"`
	TotalIncome         Money            `json:"totalIncome"`
	TotalExpense        Money            `json:"totalExpense"`
	Balance             Money            `json:"balance"`
	TotalSavings        Money            `json:"totalSavings"`
	SavingsRate         float64          `json:"savingsRate"`
	SavingsTier         string           `json:"savingsTier"`
	AvailableCategories []string         `json:"availableCategories"`
	ExpenseByCategory   []CategoryAmount `json:"expenseByCategory"`
}

// SavingsRate returns savings as a percentage of income, rounded to two
// decimals. It is zero when there is no income and is never clamped.
func SavingsRate(savings, income Money) decimal.Decimal {
	if income.Cents <= 0 {
		return decimal.Zero
	}
	return savings.Decimal().Div(income.Decimal()).Mul(hundred).Round(2)
}

// SavingsTier classifies a savings rate percentage.
func SavingsTier(rate decimal.Decimal) string {
	switch {
	case rate.GreaterThanOrEqual(decimal.NewFromInt(20)):
		return TierExcellent
	case rate.GreaterThanOrEqual(decimal.NewFromInt(10)):
		return TierGood
	case rate.IsPositive():
		return TierFair
	default:
		return TierNone
	}
}

// byCategory sums amounts per category, largest first and then by name.
func byCategory(totals map[string]int64) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(totals))
	for name, cents := range totals {
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
