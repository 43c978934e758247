// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"finboard/internal/core"
	"finboard/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Repository)(nil)

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repository{pool: pool}, nil
}

func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	return pgx.BeginFunc(ctx, r.pool, func(dbtx pgx.Tx) error {
		_, err := dbtx.Exec(ctx, `
			INSERT INTO transactions (id, owner_id, kind, title, amount_cents, category, occurred_on, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			t.ID, t.OwnerID, string(t.Kind), t.Title, t.Amount.Cents, t.Category, t.OccurredOn.Time, t.Note, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", translate(err))
		}
		if !t.IsSalary() {
			return nil
		}
		_, err = dbtx.Exec(ctx, `
			UPDATE users SET last_salary_cents = $1, last_salary_on = $2
			WHERE id = $3 AND (last_salary_on IS NULL OR last_salary_on <= $2)`,
			t.Amount.Cents, t.OccurredOn.Time, t.OwnerID)
		if err != nil {
			return fmt.Errorf("record last salary: %w", err)
		}
		return nil
	})
}

const transactionColumns = `id::text, owner_id::text, kind, title, amount_cents, category, occurred_on, note, created_at`

func (r *Repository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	if !isUUID(ownerID) {
		return []core.Transaction{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner_id = $1
		ORDER BY occurred_on DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	if !isUUID(id) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, u core.User, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.DisplayName, passwordHash, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

const userColumns = `id::text, email, display_name, last_salary_cents, last_salary_on, created_at`

func (r *Repository) UserByEmail(ctx context.Context, email string) (core.User, string, error) {
	var hash string
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, email), &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, "", fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("get user by email: %w", err)
	}
	return u, hash, nil
}

func (r *Repository) User(ctx context.Context, id string) (core.User, error) {
	if !isUUID(id) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE synced_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *Repository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	if !isUUID(id) {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE transactions SET synced_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	slog.DebugContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

func scanTransaction(row pgx.CollectableRow) (core.Transaction, error) {
	var (
		t        core.Transaction
		kind     string
		occurred time.Time
	)
	err := row.Scan(&t.ID, &t.OwnerID, &kind, &t.Title, &t.Amount.Cents, &t.Category, &occurred, &t.Note, &t.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	t.OccurredOn = core.DateOf(occurred)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]core.Transaction, error) {
	out, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

func scanUser(row pgx.Row, extra ...any) (core.User, error) {
	var (
		u        core.User
		salary   *int64
		salaryOn *time.Time
	)
	dest := append([]any{&u.ID, &u.Email, &u.DisplayName, &salary, &salaryOn, &u.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.User{}, err
	}
	if salary != nil {
		u.LastSalary = core.Money{Cents: *salary}
	}
	if salaryOn != nil {
		u.LastSalaryOn = core.DateOf(*salaryOn)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", core.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
