// Package worker mirrors the ledger into an external sheet. It reacts to
// transaction events and periodically catches up on rows still unsynced.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"finboard/internal/amqp"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/sheets"
	"finboard/internal/store"
)

// Ledger is the slice of the store the worker reads and marks.
type Ledger interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	store.SyncTracker
}

// EventSource delivers transaction events until ctx ends.
type EventSource interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

type Config struct {
	BatchSize int
	Interval  time.Duration

	// Mirror calls are retried this many times with doubling delays.
	RetryAttempts int
	RetryBase     time.Duration
	RetryMax      time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		Interval:      time.Minute,
		RetryAttempts: 3,
		RetryBase:     500 * time.Millisecond,
		RetryMax:      5 * time.Second,
	}
}

// SyncWorker handles synchronization of transactions to the ledger mirror.
type SyncWorker struct {
	ledger Ledger
	mirror sheets.LedgerMirror
	cfg    Config
	logger *log.Logger
	now    func() time.Time
}

func NewSyncWorker(ledger Ledger, mirror sheets.LedgerMirror, cfg Config, logger *log.Logger) *SyncWorker {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = def.RetryMax
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		ledger: ledger,
		mirror: mirror,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// HandleEvent applies one event to the mirror. A created event whose
// transaction has since been deleted is acknowledged without writing.
func (w *SyncWorker) HandleEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	switch evt.Type {
	case amqp.EventTransactionCreated:
		t, err := w.ledger.GetTransaction(ctx, evt.TransactionID)
		if errors.Is(err, core.ErrNotFound) {
			w.logger.DebugContext(ctx, "Transaction gone before sync", log.FieldTransactionID, evt.TransactionID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load transaction %s: %w", evt.TransactionID, err)
		}
		return w.syncOne(ctx, t)

	case amqp.EventTransactionDeleted:
		err := w.retry(ctx, func() error { return w.mirror.Delete(ctx, evt.TransactionID) })
		if err != nil {
			return fmt.Errorf("remove mirrored transaction %s: %w", evt.TransactionID, err)
		}
		w.logger.InfoContext(ctx, "Removed transaction from mirror", log.FieldTransactionID, evt.TransactionID)
		return nil

	default:
		return fmt.Errorf("unknown event type %q", evt.Type)
	}
}

// CatchUp mirrors one batch of unsynced transactions. It keeps going past
// individual failures and reports them together.
func (w *SyncWorker) CatchUp(ctx context.Context) (int, error) {
	pending, err := w.ledger.PendingSync(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	var (
		synced int
		errs   []error
	)
	for _, t := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := w.syncOne(ctx, t); err != nil {
			errs = append(errs, err)
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Catch-up sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", len(errs))
	return synced, errors.Join(errs...)
}

func (w *SyncWorker) syncOne(ctx context.Context, t core.Transaction) error {
	var ref string
	err := w.retry(ctx, func() error {
		var err error
		ref, err = w.mirror.Upsert(ctx, t)
		return err
	})
	if err != nil {
		return fmt.Errorf("mirror transaction %s: %w", t.ID, err)
	}

	// The row is mirrored; failing to record that only causes a rewrite later.
	if err := w.ledger.MarkSynced(ctx, t.ID, w.now().UTC()); err != nil && !errors.Is(err, core.ErrNotFound) {
		w.logger.ErrorContext(ctx, "Failed to mark as synced",
			log.FieldTransactionID, t.ID,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase)
	}

	w.logger.InfoContext(ctx, "Synced transaction",
		log.FieldTransactionID, t.ID,
		log.FieldSheetsRef, ref,
		log.FieldAmountCents, t.Amount.Cents)
	return nil
}

func (w *SyncWorker) retry(ctx context.Context, fn func() error) error {
	delay := w.cfg.RetryBase
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= w.cfg.RetryAttempts {
			return err
		}
		w.logger.WarnContext(ctx, "Mirror call failed, retrying",
			log.FieldError, err,
			"attempt", attempt,
			"retry_in", delay.String())
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay = min(delay*2, w.cfg.RetryMax)
	}
}

// Run performs a startup catch-up, then consumes events (when events is
// non-nil) while a cron schedule repeats the catch-up every Interval. It
// returns when ctx is cancelled or the consumer fails.
func (w *SyncWorker) Run(ctx context.Context, events EventSource) error {
	if _, err := w.CatchUp(ctx); err != nil {
		w.logger.WarnContext(ctx, "Startup catch-up incomplete", log.FieldError, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{w.logger})))
	spec := "@every " + w.cfg.Interval.String()
	if _, err := c.AddFunc(spec, func() {
		if _, err := w.CatchUp(ctx); err != nil {
			w.logger.WarnContext(ctx, "Scheduled catch-up incomplete", log.FieldError, err)
		}
	}); err != nil {
		return fmt.Errorf("schedule catch-up %q: %w", spec, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if events != nil {
		g.Go(func() error {
			return events.Consume(gctx, w.HandleEvent)
		})
	}
	g.Go(func() error {
		c.Start()
		<-gctx.Done()
		<-c.Stop().Done()
		return nil
	})

	w.logger.InfoContext(ctx, "Sync worker started",
		"interval", w.cfg.Interval.String(),
		"batch_size", w.cfg.BatchSize,
		"consuming", events != nil)

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// cronLogger routes cron's internal messages to the worker logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, log.FieldError, err)...)
}
