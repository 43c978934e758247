package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// trailingMonths is both the look-back window and the divisor used by
// TrailingAverageExpenses. The divisor stays fixed even when fewer months
// hold data.
const trailingMonths = 3

// DetectLastSalary returns the amount of the most recent salary income.
// Among salary entries on the same date the first one in txs wins.
// The boolean is false when there is no salary or its amount is not positive.
func DetectLastSalary(txs []Transaction) (Money, bool) {
	salaries := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.IsSalary() {
			salaries = append(salaries, t)
		}
	}
	if len(salaries) == 0 {
		return Money{}, false
	}

	sort.SliceStable(salaries, func(i, j int) bool {
		return salaries[i].OccurredOn.After(salaries[j].OccurredOn.Time)
	})

	latest := salaries[0]
	if latest.Amount.Cents <= 0 {
		return Money{}, false
	}
	return latest.Amount, true
}

// TrailingAverageExpenses sums the expenses dated within the last three
// calendar months up to and including now, and divides by three.
func TrailingAverageExpenses(txs []Transaction, now time.Time) Money {
	end := DateOf(now)
	start := DateOf(now.AddDate(0, -trailingMonths, 0))

	var total int64
	for _, t := range txs {
		if t.Kind != KindExpense {
			continue
		}
		if t.OccurredOn.Before(start.Time) || t.OccurredOn.After(end.Time) {
			continue
		}
		total += t.Amount.Cents
	}

	avg := Money{Cents: total}.Decimal().Div(decimal.NewFromInt(trailingMonths))
	return MoneyFromDecimal(avg)
}
