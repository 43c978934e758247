package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finboard/internal/core"
	"finboard/internal/store"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteRepository implements store.Store on an embedded SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateTransaction inserts tx and, for salary income, updates the owner's
// last known salary in the same database transaction.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	_, err = dbtx.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, kind, title, amount_cents, category, occurred_on, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, string(tx.Kind), tx.Title, tx.Amount.Cents, tx.Category,
		tx.OccurredOn.String(), tx.Note, tx.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", translate(err))
	}

	if tx.IsSalary() {
		_, err = dbtx.ExecContext(ctx, `
			UPDATE users SET last_salary_cents = ?, last_salary_on = ?
			WHERE id = ? AND (last_salary_on IS NULL OR last_salary_on <= ?)`,
			tx.Amount.Cents, tx.OccurredOn.String(), tx.OwnerID, tx.OccurredOn.String())
		if err != nil {
			return fmt.Errorf("record last salary: %w", err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"type", tx.Kind,
		"amount_cents", tx.Amount.Cents,
		"date", tx.OccurredOn.String())

	return nil
}

const transactionColumns = `id, owner_id, kind, title, amount_cents, category, occurred_on, note, created_at`

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE owner_id = ?
		ORDER BY occurred_on DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res, "transaction", id)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, passwordHash, u.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

const userColumns = `id, email, display_name, last_salary_cents, last_salary_on, created_at`

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = ?`, email)

	var hash string
	u, err := scanUser(row, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, "", fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("get user by email: %w", err)
	}
	return u, hash, nil
}

func (r *SQLiteRepository) User(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// PendingSync returns transactions not yet mirrored, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE synced_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET synced_at = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	if err := requireAffected(res, "transaction", id); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		kind      string
		occurred  string
		createdAt int64
	)
	if err := s.Scan(&tx.ID, &tx.OwnerID, &kind, &tx.Title, &tx.Amount.Cents, &tx.Category, &occurred, &tx.Note, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	on, err := core.ParseDate(occurred)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.OccurredOn = on
	tx.CreatedAt = time.Unix(0, createdAt).UTC()
	return tx, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func scanUser(s scanner, extra ...any) (core.User, error) {
	var (
		u         core.User
		salary    sql.NullInt64
		salaryOn  sql.NullString
		createdAt int64
	)
	dest := append([]any{&u.ID, &u.Email, &u.DisplayName, &salary, &salaryOn, &createdAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return core.User{}, err
	}
	if salary.Valid {
		u.LastSalary = core.Money{Cents: salary.Int64}
	}
	if salaryOn.Valid {
		on, err := time.Parse(dateLayout, salaryOn.String)
		if err != nil {
			return core.User{}, fmt.Errorf("parse last salary date: %w", err)
		}
		u.LastSalaryOn = core.DateOf(on)
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return u, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

// translate maps driver constraint failures onto the domain taxonomy.
func translate(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	}
	return err
}
