package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"finboard/internal/core"
)

func tx(id string, cents int64) core.Transaction {
	return core.Transaction{
		ID:         id,
		OwnerID:    "u",
		Kind:       core.KindIncome,
		Title:      "Pay",
		Amount:     core.Money{Cents: cents},
		Category:   core.CategorySalary,
		OccurredOn: core.NewDate(2025, time.January, 27),
	}
}

func TestMirror_UpsertAndDelete(t *testing.T) {
	m := New()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "a"} {
		if _, err := m.Upsert(ctx, tx(id, 250000)); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}
	if got := m.IDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("IDs() = %v, want [a b]", got)
	}
	row, ok := m.Row("a")
	if !ok || row[6] != 2500.0 {
		t.Errorf("Row(a) = %v", row)
	}

	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if err := m.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete of unknown id should be a no-op, got %v", err)
	}
	if got := m.IDs(); len(got) != 1 || got[0] != "b" {
		t.Errorf("IDs() after delete = %v", got)
	}
	if up, del := m.Counts(); up != 3 || del != 1 {
		t.Errorf("Counts() = %d, %d", up, del)
	}
}

func TestMirror_FailNext(t *testing.T) {
	m := New()
	m.FailNext(1)

	if _, err := m.Upsert(context.Background(), tx("a", 1)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := m.Upsert(context.Background(), tx("a", 1)); err != nil {
		t.Fatalf("second call should succeed, got %v", err)
	}
}
