// Package sheets defines the ledger mirror port and the row layout shared
// by its adapters.
package sheets

import (
	"context"
	"time"

	"finboard/internal/core"
)

// LedgerMirror keeps an external copy of the ledger, one row per
// transaction keyed by id.
type LedgerMirror interface {
	// Upsert writes t, replacing the row with the same id if present.
	Upsert(ctx context.Context, t core.Transaction) (rowRef string, err error)
	// Delete removes the row for id. A missing row is not an error.
	Delete(ctx context.Context, transactionID string) error
}

// Header is the first row of a mirror sheet.
var Header = []any{"ID", "Owner", "Date", "Type", "Category", "Title", "Amount", "Note", "Created At"}

// Row renders t in Header order. Amounts are euros so spreadsheet formulas
// can sum them.
func Row(t core.Transaction) []any {
	return []any{
		t.ID,
		t.OwnerID,
		t.OccurredOn.String(),
		string(t.Kind),
		t.Category,
		t.Title,
		t.Amount.Euros(),
		t.Note,
		t.CreatedAt.UTC().Format(time.RFC3339),
	}
}
