package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
)

// Publisher announces committed ledger changes. *amqp.Client implements it.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// TransactionService is what the front ends talk to: ledger operations plus
// change notification. The local snapshot is the source of truth, so a
// failed publish is logged and never fails the call.
type TransactionService struct {
	ledger    *ledger.Ledger
	publisher Publisher
	logger    *applog.Logger
}

// NewTransactionService wires the ledger with an optional publisher. Pass a
// nil interface, not a typed nil pointer, to disable publishing.
func NewTransactionService(l *ledger.Ledger, publisher Publisher) *TransactionService {
	return &TransactionService{
		ledger:    l,
		publisher: publisher,
		logger:    applog.Default(applog.ComponentService),
	}
}

// WithLogger replaces the default logger.
func (s *TransactionService) WithLogger(logger *applog.Logger) *TransactionService {
	if logger != nil {
		s.logger = logger.WithComponent(applog.ComponentService)
	}
	return s
}

func (s *TransactionService) Ledger() *ledger.Ledger { return s.ledger }

// Create records a transaction from raw form values.
func (s *TransactionService) Create(ctx context.Context, c core.Candidate) (core.Transaction, error) {
	tx, err := s.ledger.Add(ctx, c)
	if err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, amqp.EventTransactionAdded, tx.ID)
	return tx, nil
}

// Delete removes a transaction; deleting an unknown id reports false without error.
func (s *TransactionService) Delete(ctx context.Context, id int64) (bool, error) {
	removed, err := s.ledger.Remove(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	s.publish(ctx, amqp.EventTransactionRemoved, id)
	return true, nil
}

// SeedDemo fills an empty ledger with sample data.
func (s *TransactionService) SeedDemo(ctx context.Context) (bool, error) {
	seeded, err := s.ledger.SeedDemo(ctx)
	if err != nil || !seeded {
		return seeded, err
	}
	s.publish(ctx, amqp.EventLedgerReplaced, 0)
	return true, nil
}

func (s *TransactionService) AddCategory(ctx context.Context, name string) error {
	rev := s.ledger.Revision()
	if err := s.ledger.AddCategory(ctx, name); err != nil {
		return err
	}
	if s.ledger.Revision() != rev {
		s.publish(ctx, amqp.EventCategoriesChanged, 0)
	}
	return nil
}

func (s *TransactionService) RemoveCategory(ctx context.Context, name string) (bool, error) {
	removed, err := s.ledger.RemoveCategory(ctx, name)
	if err != nil || !removed {
		return removed, err
	}
	s.publish(ctx, amqp.EventCategoriesChanged, 0)
	return true, nil
}

func (s *TransactionService) List(f core.TypeFilter) []core.Transaction {
	return s.ledger.Filter(f)
}

func (s *TransactionService) Totals() core.Totals {
	return s.ledger.Totals()
}

// Stats returns per-category totals, leaving out categories without activity.
func (s *TransactionService) Stats() []core.CategoryTotals {
	return core.ActiveOnly(s.ledger.GroupByCategory())
}

func (s *TransactionService) Categories() []string {
	return s.ledger.Categories()
}

func (s *TransactionService) Revision() uint64 {
	return s.ledger.Revision()
}

func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, txID int64) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping ledger event", "kind", kind)
		return
	}

	ev := amqp.NewLedgerEvent(kind, txID, s.ledger.Revision())
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind,
			applog.FieldTxID, txID,
			applog.FieldRevision, ev.Revision,
			applog.FieldError, err,
			applog.FieldOperation, applog.OpPublish)
		// Don't fail the request - the change is saved locally
	}
}

// Close closes the publisher when it holds a connection.
func (s *TransactionService) Close() error {
	var errs []error

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
