package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/store"
)

type userRecord struct {
	user core.User
	hash string
}

// Store keeps users and transactions in process memory. It is safe for
// concurrent use and is meant for development and tests.
type Store struct {
	mu       sync.Mutex
	income   []string
	expense  []string
	users    map[string]*userRecord
	byEmail  map[string]string
	items    []core.Transaction
	syncedAt map[string]time.Time
}

var _ store.Store = (*Store)(nil)
var _ store.CategorySource = (*Store)(nil)

func New(income, expense []string) *Store {
	return &Store{
		income:   dedupe(income),
		expense:  dedupe(expense),
		users:    map[string]*userRecord{},
		byEmail:  map[string]string{},
		syncedAt: map[string]time.Time{},
	}
}

// NewFromFiles seeds the suggested categories from
// seed_income_categories.txt and seed_expense_categories.txt in base,
// falling back to the built-in lists for missing files.
func NewFromFiles(base string) *Store {
	income := readLines(filepath.Join(base, "seed_income_categories.txt"))
	expense := readLines(filepath.Join(base, "seed_expense_categories.txt"))
	if len(income) == 0 {
		income = core.DefaultIncomeCategories()
	}
	if len(expense) == 0 {
		expense = core.DefaultExpenseCategories()
	}
	return New(income, expense)
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.ID == tx.ID {
			return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrConflict)
		}
	}
	s.items = append(s.items, tx)

	if tx.IsSalary() {
		if rec, ok := s.users[tx.OwnerID]; ok && store.ShouldRecordSalary(tx.OccurredOn, rec.user.LastSalaryOn) {
			rec.user.LastSalary = tx.Amount
			rec.user.LastSalaryOn = tx.OccurredOn
		}
	}
	return nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0)
	for _, tx := range s.items {
		if tx.OwnerID == ownerID {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredOn.Equal(out[j].OccurredOn.Time) {
			return out[i].OccurredOn.After(out[j].OccurredOn.Time)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.items {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, tx := range s.items {
		if tx.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			delete(s.syncedAt, id)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, u core.User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return fmt.Errorf("user %s: %w", u.Email, core.ErrConflict)
	}
	s.users[u.ID] = &userRecord{user: u, hash: passwordHash}
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return core.User{}, "", fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	rec := s.users[id]
	return rec.user, rec.hash, nil
}

func (s *Store) User(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return rec.user, nil
}

// PendingSync returns unsynced transactions, oldest first.
func (s *Store) PendingSync(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, tx := range s.items {
		if _, done := s.syncedAt[tx.ID]; done {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.items {
		if tx.ID == id {
			s.syncedAt[id] = at
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

// Categories returns the seeded suggested categories.
func (s *Store) Categories(_ context.Context) ([]string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	income := append([]string(nil), s.income...)
	expense := append([]string(nil), s.expense...)
	return income, expense, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, preserving input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
