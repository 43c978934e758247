package store

import (
	"context"
	"time"

	"finboard/internal/core"
)

// Ports implemented by every persistence backend (memory, sqlite, postgres).
type (
	// TransactionStore persists ledger entries. CreateTransaction must record
	// a salary income as the owner's last known salary in the same unit of
	// work, and only when its date is not older than the stored one.
	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) error
		// ListTransactions returns the owner's entries ordered by date
		// descending, then by creation time descending.
		ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
		// GetTransaction returns core.ErrNotFound when id is unknown.
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// DeleteTransaction returns core.ErrNotFound when id is unknown.
		DeleteTransaction(ctx context.Context, id string) error
	}

	UserStore interface {
		// CreateUser returns core.ErrConflict when the email is taken.
		CreateUser(ctx context.Context, u core.User, passwordHash string) error
		// UserByEmail returns the user with its password hash, or
		// core.ErrNotFound.
		UserByEmail(ctx context.Context, email string) (core.User, string, error)
		User(ctx context.Context, id string) (core.User, error)
	}

	// SyncTracker exposes the ledger mirror state.
	SyncTracker interface {
		PendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
		MarkSynced(ctx context.Context, id string, at time.Time) error
	}

	// CategorySource is optionally implemented by stores that carry their own
	// suggested categories.
	CategorySource interface {
		Categories(ctx context.Context) (income []string, expense []string, err error)
	}

	Store interface {
		TransactionStore
		UserStore
		SyncTracker
		Ping(ctx context.Context) error
		Close() error
	}
)

// ShouldRecordSalary reports whether a salary dated on replaces the stored
// last salary dated storedOn. A zero storedOn means none is stored.
func ShouldRecordSalary(on, storedOn core.Date) bool {
	return storedOn.IsZero() || !on.Before(storedOn.Time)
}
