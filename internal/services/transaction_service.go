// Package services orchestrates the ledger: validation, ownership checks,
// list caching and change events sit here, between HTTP and the store.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/store"
)

// listLoadTimeout bounds a shared list load.
const listLoadTimeout = 10 * time.Second

// EventPublisher announces ledger changes. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, evt *amqp.TransactionEvent) error
}

// TransactionService owns create, list and delete for transactions.
type TransactionService struct {
	store      store.TransactionStore
	categories store.CategorySource
	publisher  EventPublisher
	logger     *log.Logger
	sl         *log.StructuredLogger
	now        func() time.Time

	lists *cache.LRUCache[[]core.Transaction]
	group singleflight.Group

	// gen is bumped on every write so that a list loaded before the write
	// is not cached after it.
	genMu sync.Mutex
	gen   map[string]uint64
}

// NewTransactionService wires the service. publisher and lists may be nil.
// When st also implements store.CategorySource its categories replace the
// built-in suggestions.
func NewTransactionService(st store.TransactionStore, publisher EventPublisher, lists *cache.LRUCache[[]core.Transaction], logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if lists == nil {
		lists = cache.NewLRUCache[[]core.Transaction](1, 0)
	}
	s := &TransactionService{
		store:     st,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentTransaction),
		sl:        log.NewStructuredLogger(logger),
		now:       time.Now,
		lists:     lists,
		gen:       make(map[string]uint64),
	}
	if cs, ok := st.(store.CategorySource); ok {
		s.categories = cs
	}
	return s
}

// Create validates in and stores it as a new transaction owned by ownerID.
// Any id, owner or creation time on in is replaced. A zero date means today.
func (s *TransactionService) Create(ctx context.Context, ownerID string, in core.Transaction) (core.Transaction, error) {
	if ownerID == "" {
		return core.Transaction{}, core.ErrUnauthenticated
	}
	now := s.now()
	t := core.Transaction{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Kind:       in.Kind,
		Title:      strings.TrimSpace(in.Title),
		Amount:     in.Amount,
		Category:   strings.TrimSpace(in.Category),
		OccurredOn: in.OccurredOn,
		Note:       strings.TrimSpace(in.Note),
		CreatedAt:  now.UTC(),
	}
	if t.OccurredOn.IsZero() {
		t.OccurredOn = core.DateOf(now)
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate(ownerID)

	s.sl.LogTransactionCreated(ctx, ownerID, t.ID, string(t.Kind), t.Category, t.Amount.Cents)
	s.publish(ctx, amqp.EventTransactionCreated, t.ID, ownerID)
	return t, nil
}

// List returns the owner's transactions, newest date first. Results are
// cached per owner and concurrent misses share one store call.
func (s *TransactionService) List(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	if cached, ok := s.lists.Get(ownerID); ok {
		return clone(cached), nil
	}

	gen := s.generation(ownerID)
	v, err, _ := s.group.Do(fmt.Sprintf("%s#%d", ownerID, gen), func() (any, error) {
		// Callers share this load, so it must outlive the one that started it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listLoadTimeout)
		defer cancel()
		txs, err := s.store.ListTransactions(loadCtx, ownerID)
		if err != nil {
			return nil, err
		}
		s.genMu.Lock()
		if s.gen[ownerID] == gen {
			s.lists.Set(ownerID, txs)
		}
		s.genMu.Unlock()
		return txs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return clone(v.([]core.Transaction)), nil
}

// Delete removes transaction id on behalf of callerID. It fails with
// core.ErrNotFound for unknown ids and core.ErrForbidden when the caller does
// not own the transaction; the record is untouched in both cases.
func (s *TransactionService) Delete(ctx context.Context, callerID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.FieldError("id", "is required")
	}

	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if t.OwnerID != callerID {
		s.logger.WarnContext(ctx, "Refused to delete another user's transaction",
			log.FieldUserID, callerID,
			log.FieldTransactionID, id,
			log.FieldErrorType, log.ErrorTypeForbidden)
		return fmt.Errorf("delete transaction %s: %w", id, core.ErrForbidden)
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.invalidate(callerID)

	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, callerID,
		log.FieldTransactionID, id,
		log.FieldOperation, log.OpDelete)
	s.publish(ctx, amqp.EventTransactionDeleted, id, callerID)
	return nil
}

// Categories returns suggested income and expense categories: the
// configured defaults followed by any other categories the owner has used.
func (s *TransactionService) Categories(ctx context.Context, ownerID string) (income, expense []string, err error) {
	income, expense = core.DefaultIncomeCategories(), core.DefaultExpenseCategories()
	if s.categories != nil {
		inc, exp, err := s.categories.Categories(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load categories: %w", err)
		}
		if len(inc) > 0 {
			income = inc
		}
		if len(exp) > 0 {
			expense = exp
		}
	}

	txs, err := s.List(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	usedIncome, usedExpense := map[string]struct{}{}, map[string]struct{}{}
	for _, t := range txs {
		if t.Kind == core.KindIncome {
			usedIncome[t.Category] = struct{}{}
		} else {
			usedExpense[t.Category] = struct{}{}
		}
	}
	return merge(income, usedIncome), merge(expense, usedExpense), nil
}

func (s *TransactionService) publish(ctx context.Context, typ amqp.EventType, transactionID, ownerID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewTransactionEvent(typ, transactionID, ownerID)); err != nil {
		level := s.logger.ErrorContext
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = s.logger.WarnContext
		}
		level(ctx, "Failed to publish transaction event",
			"event_type", typ,
			log.FieldTransactionID, transactionID,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork)
	}
}

func (s *TransactionService) generation(ownerID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gen[ownerID]
}

func (s *TransactionService) invalidate(ownerID string) {
	s.genMu.Lock()
	s.gen[ownerID]++
	s.lists.Delete(ownerID)
	s.genMu.Unlock()
}

// merge returns base followed by the sorted keys of extra not in base.
func merge(base []string, extra map[string]struct{}) []string {
	out := append([]string(nil), base...)
	seen := make(map[string]struct{}, len(base))
	for _, v := range base {
		seen[v] = struct{}{}
	}
	var added []string
	for v := range extra {
		if _, ok := seen[v]; !ok && v != "" {
			added = append(added, v)
		}
	}
	sort.Strings(added)
	return append(out, added...)
}

func clone(txs []core.Transaction) []core.Transaction {
	return append(make([]core.Transaction, 0, len(txs)), txs...)
}
