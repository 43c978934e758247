package core

import (
	"github.com/shopspring/decimal"
)

const (
	LabelConservative = "Conservative"
	LabelModerate     = "Moderate"
	LabelAmbitious    = "Ambitious"
	LabelIntelligent  = "Intelligent"
)

// Candidate is one suggested amount to set aside this month.
type Candidate struct {
	Label       string `json:"label"`
	RatePercent int    `json:"ratePercent,omitempty"`
	Amount      Money  `json:"amount"`
	Rationale   string `json:"rationale"`
	Preferred   bool   `json:"preferred"`
}

var fixedRates = []struct {
	label   string
	percent int64
}{
	{LabelConservative, 10},
	{LabelModerate, 20},
	{LabelAmbitious, 30},
}

var (
	safetyMargin = decimal.RequireFromString("0.20")
	floorRate    = decimal.RequireFromString("0.10")
)

// Recommend builds the savings candidates for a salary and a trailing
// average of monthly expenses. Candidates that are not strictly between zero
// and the salary are dropped.
func Recommend(salary, averageExpenses Money) []Candidate {
	s := salary.Decimal()

	all := make([]Candidate, 0, len(fixedRates)+1)
	for _, r := range fixedRates {
		all = append(all, Candidate{
			Label:       r.label,
			RatePercent: int(r.percent),
			Amount:      MoneyFromDecimal(s.Mul(decimal.New(r.percent, -2))),
			Rationale:   decimal.NewFromInt(r.percent).String() + "% of salary",
		})
	}
	all = append(all, Candidate{
		Label:     LabelIntelligent,
		Amount:    intelligentAmount(salary, averageExpenses),
		Rationale: "Salary minus average expenses and a 20% safety margin, at least 10% of salary",
		Preferred: true,
	})

	out := all[:0]
	for _, c := range all {
		if c.Amount.Cents <= 0 || c.Amount.Cents >= salary.Cents {
			continue
		}
		out = append(out, c)
	}
	return out
}

// BestSuggestion returns the preferred candidate's amount when it survives
// filtering, otherwise the largest remaining candidate, otherwise zero.
func BestSuggestion(salary, averageExpenses Money) Money {
	var best Money
	for _, c := range Recommend(salary, averageExpenses) {
		if c.Preferred {
			return c.Amount
		}
		if c.Amount.Cents > best.Cents {
			best = c.Amount
		}
	}
	return best
}

// intelligentAmount is max(salary - avg - avg*0.20, salary*0.10).
func intelligentAmount(salary, averageExpenses Money) Money {
	s := salary.Decimal()
	avg := averageExpenses.Decimal()

	adaptive := s.Sub(avg).Sub(avg.Mul(safetyMargin))
	floor := s.Mul(floorRate)

	return MoneyFromDecimal(decimal.Max(adaptive, floor))
}
