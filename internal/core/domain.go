package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Well-known categories. Savings is modelled as an expense category rather
// than a separate account type.
const (
	CategorySalary  = "Salary"
	CategorySavings = "Savings"

	SavingsTitle = "Savings (Passbook)"
)

const (
	maxTitleLen    = 200
	maxCategoryLen = 100
	maxNoteLen     = 1000
)

const dateLayout = "2006-01-02"

type (
	Kind string

	// Date is a calendar date. The time part is always midnight UTC so that
	// comparisons never depend on the server time zone.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID         string    `json:"id"`
		OwnerID    string    `json:"ownerId"`
		Kind       Kind      `json:"type"`
		Title      string    `json:"title"`
		Amount     Money     `json:"amount"`
		Category   string    `json:"category"`
		OccurredOn Date      `json:"date"`
		Note       string    `json:"description,omitempty"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		DisplayName  string    `json:"name,omitempty"`
		LastSalary   Money     `json:"-"`
		LastSalaryOn Date      `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

// Valid reports whether k is one of the supported transaction kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense:
		return true
	default:
		return false
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Today returns the current calendar date in the server's local time zone.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as well, keeping only the calendar part.
	if len(s) > len(dateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
		}
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the invariants of a transaction that is about to be
// recorded. All problems are reported at once, keyed by JSON field name.
func (t Transaction) Validate() error {
	verr := NewValidationError()

	if !t.Kind.Valid() {
		verr.Add("type", "must be one of income, expense")
	}

	title := strings.TrimSpace(t.Title)
	switch {
	case title == "":
		verr.Add("title", "is required")
	case len(title) > maxTitleLen:
		verr.Add("title", fmt.Sprintf("must be at most %d characters", maxTitleLen))
	}

	if t.Amount.Cents <= 0 {
		verr.Add("amount", "must be greater than zero")
	}

	category := strings.TrimSpace(t.Category)
	switch {
	case category == "":
		verr.Add("category", "is required")
	case len(category) > maxCategoryLen:
		verr.Add("category", fmt.Sprintf("must be at most %d characters", maxCategoryLen))
	}

	if len(t.Note) > maxNoteLen {
		verr.Add("description", fmt.Sprintf("must be at most %d characters", maxNoteLen))
	}

	if t.OccurredOn.IsZero() {
		verr.Add("date", "is required")
	}

	return verr.OrNil()
}

// IsSalary reports whether t counts as a salary payment.
func (t Transaction) IsSalary() bool {
	return t.Kind == KindIncome && t.Category == CategorySalary
}

// IsSavings reports whether t is money set aside as savings.
func (t Transaction) IsSavings() bool {
	return t.Kind == KindExpense && t.Category == CategorySavings
}

// DefaultIncomeCategories returns the suggested income categories.
func DefaultIncomeCategories() []string {
	return []string{CategorySalary, "Freelance", "Investment", "Other"}
}

// DefaultExpenseCategories returns the suggested expense categories.
func DefaultExpenseCategories() []string {
	return []string{"Food", "Transport", "Housing", "Leisure", "Health", CategorySavings, "Other"}
}
