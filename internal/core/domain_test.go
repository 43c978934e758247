package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		ID:         "tx-1",
		OwnerID:    "user-1",
		Kind:       KindExpense,
		Title:      "Groceries",
		Amount:     Money{Cents: 4250},
		Category:   "Food",
		OccurredOn: NewDate(2025, time.March, 14),
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		mut   func(*Transaction)
		field string
	}{
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{Cents: 0} }, "amount"},
		{"negative amount", func(tx *Transaction) { tx.Amount = Money{Cents: -100} }, "amount"},
		{"unknown kind", func(tx *Transaction) { tx.Kind = "transfer" }, "type"},
		{"blank title", func(tx *Transaction) { tx.Title = "   " }, "title"},
		{"long title", func(tx *Transaction) { tx.Title = strings.Repeat("x", 201) }, "title"},
		{"blank category", func(tx *Transaction) { tx.Category = "" }, "category"},
		{"long note", func(tx *Transaction) { tx.Note = strings.Repeat("n", 1001) }, "description"},
		{"zero date", func(tx *Transaction) { tx.OccurredOn = Date{} }, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTransaction()
			tc.mut(&tx)

			err := tx.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected problem on %q, got %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestTransactionValidate_ReportsAllFields(t *testing.T) {
	err := Transaction{}.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, f := range []string{"type", "title", "amount", "category", "date"} {
		if _, ok := verr.Fields[f]; !ok {
			t.Errorf("missing problem for %q in %v", f, verr.Fields)
		}
	}
}

func TestKindValid(t *testing.T) {
	if !KindIncome.Valid() || !KindExpense.Valid() {
		t.Fatal("expected income and expense to be valid")
	}
	if Kind("").Valid() || Kind("INCOME").Valid() {
		t.Fatal("expected empty and upper-case kinds to be invalid")
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, time.February, 29)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-02-29"` {
		t.Fatalf("got %s", b)
	}

	var back Date
	if err := json.Unmarshal([]byte(`"2024-02-29T23:30:00+01:00"`), &back); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("timestamp should keep its calendar date, got %s", back)
	}

	if err := json.Unmarshal([]byte(`"29/02/2024"`), &back); err == nil {
		t.Fatal("expected error for foreign layout")
	}
}

func TestDateOf_UsesOwnLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	late := time.Date(2025, time.January, 31, 23, 30, 0, 0, loc)

	if got := DateOf(late); got.String() != "2025-01-31" {
		t.Fatalf("expected local calendar date, got %s", got)
	}
}

func TestTransactionFlags(t *testing.T) {
	salary := Transaction{Kind: KindIncome, Category: CategorySalary}
	if !salary.IsSalary() || salary.IsSavings() {
		t.Fatal("salary flags wrong")
	}
	savings := Transaction{Kind: KindExpense, Category: CategorySavings}
	if !savings.IsSavings() || savings.IsSalary() {
		t.Fatal("savings flags wrong")
	}
	if (Transaction{Kind: KindIncome, Category: CategorySavings}).IsSavings() {
		t.Fatal("income can never be savings")
	}
}
