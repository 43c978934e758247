// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/core"
	"finboard/internal/store"
)

// Factory returns an empty store. Cleanup is registered on t by the caller.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("salary", func(t *testing.T) { testSalary(t, newStore(t)) })
	t.Run("sync", func(t *testing.T) { testSync(t, newStore(t)) })
}

func NewUser(email string) core.User {
	return core.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: "Test User",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func NewTransaction(owner string, kind core.Kind, category string, cents int64, on core.Date) core.Transaction {
	return core.Transaction{
		ID:         uuid.NewString(),
		OwnerID:    owner,
		Kind:       kind,
		Title:      category + " entry",
		Amount:     core.Money{Cents: cents},
		Category:   category,
		OccurredOn: on,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	u := NewUser("ada@example.com")
	require.NoError(t, s.CreateUser(ctx, u, "hash-1"))

	dup := NewUser("ada@example.com")
	err := s.CreateUser(ctx, dup, "hash-2")
	assert.ErrorIs(t, err, core.ErrConflict)

	got, hash, err := s.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID, "first registration must survive")
	assert.Equal(t, "hash-1", hash)
	assert.Equal(t, u.DisplayName, got.DisplayName)

	byID, err := s.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	_, _, err = s.UserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.User(ctx, uuid.NewString())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := NewUser("alice@example.com")
	bob := NewUser("bob@example.com")
	require.NoError(t, s.CreateUser(ctx, alice, "x"))
	require.NoError(t, s.CreateUser(ctx, bob, "x"))

	older := NewTransaction(alice.ID, core.KindExpense, "Food", 1250, core.NewDate(2025, time.March, 1))
	first := NewTransaction(alice.ID, core.KindExpense, "Transport", 300, core.NewDate(2025, time.March, 9))
	second := NewTransaction(alice.ID, core.KindIncome, "Freelance", 90000, core.NewDate(2025, time.March, 9))
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.Note = "invoice 12"
	foreign := NewTransaction(bob.ID, core.KindExpense, "Food", 999, core.NewDate(2025, time.March, 10))

	for _, tx := range []core.Transaction{older, first, second, foreign} {
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	list, err := s.ListTransactions(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{second.ID, first.ID, older.ID}, ids(list))
	assert.Equal(t, "invoice 12", list[0].Note)
	assert.Equal(t, int64(90000), list[0].Amount.Cents)
	assert.Equal(t, "2025-03-09", list[0].OccurredOn.String())

	got, err := s.GetTransaction(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.OwnerID)

	require.NoError(t, s.DeleteTransaction(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, first.ID), core.ErrNotFound)
	_, err = s.GetTransaction(ctx, first.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	empty, err := s.ListTransactions(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testSalary(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("salaried@example.com")
	require.NoError(t, s.CreateUser(ctx, u, "x"))

	feb := NewTransaction(u.ID, core.KindIncome, core.CategorySalary, 260000, core.NewDate(2024, time.February, 1))
	jan := NewTransaction(u.ID, core.KindIncome, core.CategorySalary, 250000, core.NewDate(2024, time.January, 1))
	bonus := NewTransaction(u.ID, core.KindIncome, "Freelance", 10000, core.NewDate(2024, time.March, 1))

	require.NoError(t, s.CreateTransaction(ctx, feb))
	require.NoError(t, s.CreateTransaction(ctx, jan))
	require.NoError(t, s.CreateTransaction(ctx, bonus))

	got, err := s.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(260000), got.LastSalary.Cents, "an older salary must not replace a newer one")
	assert.Equal(t, "2024-02-01", got.LastSalaryOn.String())

	same := NewTransaction(u.ID, core.KindIncome, core.CategorySalary, 270000, core.NewDate(2024, time.February, 1))
	require.NoError(t, s.CreateTransaction(ctx, same))
	got, err = s.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(270000), got.LastSalary.Cents)
}

func testSync(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := NewUser("sync@example.com")
	require.NoError(t, s.CreateUser(ctx, u, "x"))

	a := NewTransaction(u.ID, core.KindExpense, "Food", 100, core.NewDate(2025, time.May, 1))
	b := NewTransaction(u.ID, core.KindExpense, "Food", 200, core.NewDate(2025, time.May, 2))
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	require.NoError(t, s.CreateTransaction(ctx, a))
	require.NoError(t, s.CreateTransaction(ctx, b))

	pending, err := s.PendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids(pending))

	require.NoError(t, s.MarkSynced(ctx, a.ID, time.Now()))
	pending, err = s.PendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(pending))

	assert.ErrorIs(t, s.MarkSynced(ctx, uuid.NewString(), time.Now()), core.ErrNotFound)
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
