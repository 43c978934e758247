package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/store"
)

// Where the salary behind a recommendation came from.
const (
	SalarySourceCurrentMonth = "current_month"
	SalarySourceHistory      = "history"
	SalarySourcePersisted    = "persisted"
	SalarySourceNone         = "none"
)

const (
	DefaultHistoryMonths = 6
	MaxHistoryMonths     = 24
)

// Recommendation is the savings widget payload for one month.
type Recommendation struct {
	Year            int              `json:"year"`
	Month           int              `json:"month"`
	Salary          core.Money       `json:"salary"`
	SalarySource    string           `json:"salarySource"`
	AverageExpenses core.Money       `json:"averageExpenses"`
	Remaining       core.Money       `json:"remaining"`
	Suggested       core.Money       `json:"suggested"`
	Candidates      []core.Candidate `json:"candidates"`
}

// AcceptResult reports what accepting a suggested amount did. Exactly one
// of Transaction and ManualEntry is set.
type AcceptResult struct {
	Transaction *core.Transaction `json:"transaction,omitempty"`
	ManualEntry bool              `json:"manualEntry,omitempty"`
}

// SavingsService computes summaries and savings recommendations from a
// user's ledger.
type SavingsService struct {
	txs    *TransactionService
	users  store.UserStore
	logger *log.Logger
	now    func() time.Time
}

func NewSavingsService(txs *TransactionService, users store.UserStore, logger *log.Logger) *SavingsService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SavingsService{
		txs:    txs,
		users:  users,
		logger: logger.WithComponent(log.ComponentSavings),
		now:    time.Now,
	}
}

// Summary aggregates the owner's ledger for p. An empty category means all.
func (s *SavingsService) Summary(ctx context.Context, ownerID string, p core.Period, category string) (core.Summary, error) {
	txs, err := s.txs.List(ctx, ownerID)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Aggregate(txs, p, category), nil
}

// History returns the summaries of the months trailing up to and including
// end, oldest first. months of zero selects DefaultHistoryMonths.
func (s *SavingsService) History(ctx context.Context, ownerID string, end core.Period, months int) ([]core.Summary, error) {
	if months == 0 {
		months = DefaultHistoryMonths
	}
	if months < 1 || months > MaxHistoryMonths {
		return nil, core.FieldError("months", fmt.Sprintf("must be between 1 and %d", MaxHistoryMonths))
	}

	txs, err := s.txs.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	periods := make([]core.Period, months)
	p := end
	for i := months - 1; i >= 0; i-- {
		periods[i] = p
		p = p.Prev()
	}

	out := make([]core.Summary, months)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range periods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = core.Aggregate(txs, p, core.AllCategories)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Recommendation builds the savings suggestion for p. The salary is the
// month's income when positive, else the latest salary in the ledger, else
// the salary persisted on the user.
func (s *SavingsService) Recommendation(ctx context.Context, ownerID string, p core.Period) (Recommendation, error) {
	txs, err := s.txs.List(ctx, ownerID)
	if err != nil {
		return Recommendation{}, err
	}
	month := core.Aggregate(txs, p, core.AllCategories)

	salary, source, err := s.salary(ctx, ownerID, txs, month)
	if err != nil {
		return Recommendation{}, err
	}

	avg := core.TrailingAverageExpenses(txs, s.now())
	remaining := month.TotalIncome.Sub(month.TotalExpense)

	suggested := core.BestSuggestion(salary, avg)
	if remaining.Cents < suggested.Cents {
		suggested = remaining
	}
	if suggested.Cents < 0 {
		suggested = core.Money{}
	}

	rec := Recommendation{
		Year:            p.Year,
		Month:           int(p.Month),
		Salary:          salary,
		SalarySource:    source,
		AverageExpenses: avg,
		Remaining:       remaining,
		Suggested:       suggested,
		Candidates:      core.Recommend(salary, avg),
	}

	s.logger.DebugContext(ctx, "Savings recommendation computed",
		log.FieldUserID, ownerID,
		log.FieldYear, rec.Year,
		log.FieldMonth, rec.Month,
		"salary_source", source,
		"suggested_cents", suggested.Cents)
	return rec, nil
}

func (s *SavingsService) salary(ctx context.Context, ownerID string, txs []core.Transaction, month core.Summary) (core.Money, string, error) {
	if month.TotalIncome.Cents > 0 {
		return month.TotalIncome, SalarySourceCurrentMonth, nil
	}
	if m, ok := core.DetectLastSalary(txs); ok {
		return m, SalarySourceHistory, nil
	}

	u, err := s.users.User(ctx, ownerID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Money{}, SalarySourceNone, nil
	}
	if err != nil {
		return core.Money{}, "", fmt.Errorf("load user: %w", err)
	}
	if u.LastSalary.Cents > 0 {
		return u.LastSalary, SalarySourcePersisted, nil
	}
	return core.Money{}, SalarySourceNone, nil
}

// Accept records a chosen savings amount as a "Savings" expense dated today.
// Zero records nothing and asks the caller to open manual entry instead.
func (s *SavingsService) Accept(ctx context.Context, ownerID string, amount core.Money) (AcceptResult, error) {
	switch {
	case amount.Cents < 0:
		return AcceptResult{}, core.FieldError("amount", "must not be negative")
	case amount.Cents == 0:
		return AcceptResult{ManualEntry: true}, nil
	}

	t, err := s.txs.Create(ctx, ownerID, core.Transaction{
		Kind:       core.KindExpense,
		Title:      core.SavingsTitle,
		Amount:     amount,
		Category:   core.CategorySavings,
		OccurredOn: core.DateOf(s.now()),
	})
	if err != nil {
		return AcceptResult{}, err
	}

	s.logger.InfoContext(ctx, "Savings amount accepted",
		log.FieldUserID, ownerID,
		log.FieldTransactionID, t.ID,
		log.FieldAmountCents, amount.Cents)
	return AcceptResult{Transaction: &t}, nil
}
