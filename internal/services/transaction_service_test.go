package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/store/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, evt *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// countingStore records how often the list query reaches the store.
type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	lists int
}

func (s *countingStore) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	return s.Store.ListTransactions(ctx, ownerID)
}

func (s *countingStore) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

// gatedStore holds list queries until release is closed and then fails
// them if their context has ended.
type gatedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.ListTransactions(ctx, ownerID)
}

var fixedNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

func newTestTransactionService(t *testing.T) (*TransactionService, *memory.Store, *fakePublisher) {
	t.Helper()
	st := memory.New(nil, nil)
	pub := &fakePublisher{}
	svc := NewTransactionService(st, pub, cache.NewLRUCache[[]core.Transaction](16, time.Minute), nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, st, pub
}

func expense(title, category string, cents int64, on core.Date) core.Transaction {
	return core.Transaction{
		Kind:       core.KindExpense,
		Title:      title,
		Amount:     core.Money{Cents: cents},
		Category:   category,
		OccurredOn: on,
	}
}

func income(category string, cents int64, on core.Date) core.Transaction {
	return core.Transaction{
		Kind:       core.KindIncome,
		Title:      category,
		Amount:     core.Money{Cents: cents},
		Category:   category,
		OccurredOn: on,
	}
}

func TestTransactionService_Create(t *testing.T) {
	svc, st, pub := newTestTransactionService(t)
	ctx := context.Background()

	in := expense("  Groceries ", " Food ", 4250, core.NewDate(2025, time.March, 2))
	in.ID = "client-chosen"
	in.OwnerID = "someone-else"

	got, err := svc.Create(ctx, "alice", in)
	require.NoError(t, err)

	assert.NotEqual(t, "client-chosen", got.ID)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, "Groceries", got.Title)
	assert.Equal(t, "Food", got.Category)
	assert.Equal(t, fixedNow, got.CreatedAt)

	stored, err := st.GetTransaction(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	assert.Equal(t, []amqp.EventType{amqp.EventTransactionCreated}, pub.types())
	assert.Equal(t, got.ID, pub.events[0].TransactionID)
	assert.Equal(t, "alice", pub.events[0].OwnerID)
}

func TestTransactionService_Create_DefaultsDateToToday(t *testing.T) {
	svc, _, _ := newTestTransactionService(t)

	got, err := svc.Create(context.Background(), "alice", expense("Coffee", "Food", 180, core.Date{}))
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, time.March, 15), got.OccurredOn)
}

func TestTransactionService_Create_Rejects(t *testing.T) {
	on := core.NewDate(2025, time.March, 1)
	tests := []struct {
		name  string
		owner string
		in    core.Transaction
		want  error
		field string
	}{
		{name: "zero amount", owner: "alice", in: expense("Rent", "Housing", 0, on), want: core.ErrValidation, field: "amount"},
		{name: "negative amount", owner: "alice", in: expense("Rent", "Housing", -100, on), want: core.ErrValidation, field: "amount"},
		{name: "blank title", owner: "alice", in: expense("   ", "Housing", 100, on), want: core.ErrValidation, field: "title"},
		{name: "blank category", owner: "alice", in: expense("Rent", " ", 100, on), want: core.ErrValidation, field: "category"},
		{name: "unknown kind", owner: "alice", in: core.Transaction{Kind: "transfer", Title: "x", Category: "y", Amount: core.Money{Cents: 1}, OccurredOn: on}, want: core.ErrValidation, field: "type"},
		{name: "no owner", owner: "", in: expense("Rent", "Housing", 100, on), want: core.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, pub := newTestTransactionService(t)

			_, err := svc.Create(context.Background(), tt.owner, tt.in)
			require.ErrorIs(t, err, tt.want)

			if tt.field != "" {
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Contains(t, verr.Fields, tt.field)
			}

			txs, _ := st.ListTransactions(context.Background(), tt.owner)
			assert.Empty(t, txs)
			assert.Empty(t, pub.types())
		})
	}
}

func TestTransactionService_Create_PublishFailureIsNotFatal(t *testing.T) {
	svc, st, pub := newTestTransactionService(t)
	pub.err = amqp.ErrCircuitOpen

	got, err := svc.Create(context.Background(), "alice", expense("Rent", "Housing", 90000, core.NewDate(2025, time.March, 1)))
	require.NoError(t, err)

	_, err = st.GetTransaction(context.Background(), got.ID)
	assert.NoError(t, err)
}

func TestTransactionService_ListIsScopedToOwner(t *testing.T) {
	svc, _, _ := newTestTransactionService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", expense("Rent", "Housing", 90000, core.NewDate(2025, time.March, 1)))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", expense("Bus", "Transport", 200, core.NewDate(2025, time.March, 3)))
	require.NoError(t, err)

	alice, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "Rent", alice[0].Title)

	nobody, err := svc.List(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, nobody)
}

func TestTransactionService_ListCachesUntilWrite(t *testing.T) {
	st := &countingStore{Store: memory.New(nil, nil)}
	svc := NewTransactionService(st, nil, cache.NewLRUCache[[]core.Transaction](16, time.Minute), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", expense("Rent", "Housing", 90000, core.NewDate(2025, time.March, 1)))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		txs, err := svc.List(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	}
	assert.Equal(t, 1, st.listCalls())

	_, err = svc.Create(ctx, "alice", expense("Bus", "Transport", 200, core.NewDate(2025, time.March, 3)))
	require.NoError(t, err)

	txs, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Equal(t, 2, st.listCalls())
}

func TestTransactionService_ListReturnsCopies(t *testing.T) {
	svc, _, _ := newTestTransactionService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "alice", expense("Rent", "Housing", 90000, core.NewDate(2025, time.March, 1)))
	require.NoError(t, err)

	first, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	first[0].Title = "mutated"

	second, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Rent", second[0].Title)
}

func TestTransactionService_Delete(t *testing.T) {
	svc, _, pub := newTestTransactionService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, "alice", expense("Rent", "Housing", 90000, core.NewDate(2025, time.March, 1)))
	require.NoError(t, err)
	_, err = svc.List(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alice", tx.ID))

	txs, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, []amqp.EventType{amqp.EventTransactionCreated, amqp.EventTransactionDeleted}, pub.types())
}

func TestTransactionService_DeleteOtherOwnersTransaction(t *testing.T) {
	svc, _, pub := newTestTransactionService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, "alice", expense("Rent", "Housing", 90000, core.NewDate(2025, time.March, 1)))
	require.NoError(t, err)

	err = svc.Delete(ctx, "mallory", tx.ID)
	require.ErrorIs(t, err, core.ErrForbidden)

	txs, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)
	assert.Equal(t, []amqp.EventType{amqp.EventTransactionCreated}, pub.types())
}

func TestTransactionService_DeleteErrors(t *testing.T) {
	svc, _, _ := newTestTransactionService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, "alice", "does-not-exist"), core.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "alice", "  "), core.ErrValidation)
}

func TestTransactionService_Categories(t *testing.T) {
	t.Run("defaults plus used categories", func(t *testing.T) {
		svc, _, _ := newTestTransactionService(t)
		ctx := context.Background()
		_, err := svc.Create(ctx, "alice", expense("Gym", "Sport", 3000, core.NewDate(2025, time.March, 1)))
		require.NoError(t, err)
		_, err = svc.Create(ctx, "alice", expense("Lunch", "Food", 1200, core.NewDate(2025, time.March, 1)))
		require.NoError(t, err)
		_, err = svc.Create(ctx, "alice", income("Gifts", 5000, core.NewDate(2025, time.March, 1)))
		require.NoError(t, err)

		inc, exp, err := svc.Categories(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, append(core.DefaultIncomeCategories(), "Gifts"), inc)
		assert.Equal(t, append(core.DefaultExpenseCategories(), "Sport"), exp)
	})

	t.Run("seeded store overrides defaults", func(t *testing.T) {
		st := memory.New([]string{"Pay"}, []string{"Bills", "Fun"})
		svc := NewTransactionService(st, nil, nil, nil)

		inc, exp, err := svc.Categories(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"Pay"}, inc)
		assert.Equal(t, []string{"Bills", "Fun"}, exp)
	})
}

func TestTransactionService_SharedListSurvivesCancelledCaller(t *testing.T) {
	st := &gatedStore{
		Store:   memory.New(nil, nil),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	require.NoError(t, st.CreateTransaction(context.Background(), core.Transaction{
		ID: "t1", OwnerID: "u1", Kind: core.KindExpense, Title: "Lunch",
		Amount: core.Money{Cents: 1200}, Category: "Food",
		OccurredOn: core.NewDate(2025, time.March, 1), CreatedAt: fixedNow,
	}))
	svc := NewTransactionService(st, nil, cache.NewLRUCache[[]core.Transaction](16, time.Minute), nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	type result struct {
		txs []core.Transaction
		err error
	}
	leader := make(chan result, 1)
	go func() {
		txs, err := svc.List(leaderCtx, "u1")
		leader <- result{txs, err}
	}()
	<-st.entered

	follower := make(chan result, 1)
	go func() {
		txs, err := svc.List(context.Background(), "u1")
		follower <- result{txs, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(st.release)

	for name, ch := range map[string]chan result{"leader": leader, "follower": follower} {
		res := <-ch
		require.NoError(t, res.err, name)
		assert.Len(t, res.txs, 1, name)
	}
}
