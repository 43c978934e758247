package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"finboard/internal/core"
	"finboard/internal/store"
	"finboard/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(core.DefaultIncomeCategories(), core.DefaultExpenseCategories())
	})
}

func TestNewDedupesCategories(t *testing.T) {
	s := New([]string{"A", "B", "A"}, []string{"X", " ", "Y", "X"})
	income, expense, err := s.Categories(context.Background())
	if err != nil || len(income) != 2 || len(expense) != 2 {
		t.Fatalf("unexpected categories: income=%v expense=%v err=%v", income, expense, err)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	// No files -> defaults
	s := NewFromFiles(dir)
	income, expense, _ := s.Categories(context.Background())
	if len(income) != len(core.DefaultIncomeCategories()) || len(expense) != len(core.DefaultExpenseCategories()) {
		t.Fatalf("expected defaults when files missing, got %v %v", income, expense)
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_income_categories.txt", "# header\nSalary\nRent\nSalary\n\n")
	mustWrite("seed_expense_categories.txt", "# header\nFood\nFood\nSavings\n\n")

	s = NewFromFiles(dir)
	income, expense, _ = s.Categories(context.Background())
	if len(income) != 2 || income[0] != "Salary" || income[1] != "Rent" {
		t.Fatalf("unexpected income: %v", income)
	}
	if len(expense) != 2 || expense[0] != "Food" || expense[1] != "Savings" {
		t.Fatalf("unexpected expense: %v", expense)
	}
}

func TestCategoriesReturnsCopies(t *testing.T) {
	s := New([]string{"A"}, []string{"X"})
	income, _, _ := s.Categories(context.Background())
	income[0] = "mutated"

	again, _, _ := s.Categories(context.Background())
	if again[0] != "A" {
		t.Fatalf("store state leaked through returned slice: %v", again)
	}
}
