package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"budgetview/internal/amqp"
	"budgetview/internal/core"
	"budgetview/internal/storage"
)

// Store is the persistence surface the ledger service needs. Satisfied by
// storage.SQLiteRepository and storage.MemoryStore.
type Store interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	UpdateTransactionCategory(ctx context.Context, id int64, category, subcategory string) error
	ListTransactions(ctx context.Context, year int) ([]core.Transaction, error)
	ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error)
	ListPaymentSources(ctx context.Context) ([]string, error)
	GetSettings(ctx context.Context) (core.Settings, error)
	SaveSettings(ctx context.Context, settings core.Settings) error
	ListActivity(ctx context.Context, limit int) ([]storage.ActivityEntry, error)
	Close() error
}

// ActivityPublisher emits events describing ledger changes.
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, event *amqp.ActivityEvent) error
}

// LedgerService orchestrates writes across the store and the activity
// exchange. Event publication is best-effort: a broker failure never fails
// the request, the local write is authoritative.
type LedgerService struct {
	store     Store
	publisher ActivityPublisher
}

func NewLedgerService(store Store, publisher ActivityPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// CreateTransaction validates and saves a ledger entry, then publishes a
// created event.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}

	id, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, amqp.NewActivityEvent(amqp.EventTransactionCreated, id, t.Category))

	return id, nil
}

// DeleteTransaction removes a ledger entry and publishes a deleted event.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.NewActivityEvent(amqp.EventTransactionDeleted, id, ""))

	return nil
}

// UpdateTransactionCategory reclassifies a ledger entry and publishes an
// updated event.
func (s *LedgerService) UpdateTransactionCategory(ctx context.Context, id int64, category, subcategory string) error {
	if category == "" {
		return core.ErrEmptyCategory
	}

	if err := s.store.UpdateTransactionCategory(ctx, id, category, subcategory); err != nil {
		return fmt.Errorf("update transaction category: %w", err)
	}

	s.publish(ctx, amqp.NewActivityEvent(amqp.EventTransactionUpdated, id, category))

	return nil
}

// GetTransaction returns a single ledger entry.
func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// ListTransactions returns the ledger ordered by date. year == 0 lists everything.
func (s *LedgerService) ListTransactions(ctx context.Context, year int) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, year)
}

// ImportTransactions validates and saves a batch of entries atomically.
func (s *LedgerService) ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	n, err := s.store.ImportTransactions(ctx, txs)
	if err != nil {
		return 0, fmt.Errorf("import transactions: %w", err)
	}
	return n, nil
}

// ListActivity returns the most recent audit entries, newest first.
func (s *LedgerService) ListActivity(ctx context.Context, limit int) ([]storage.ActivityEntry, error) {
	return s.store.ListActivity(ctx, limit)
}

// ListPaymentSources returns the distinct payment sources seen in the ledger.
func (s *LedgerService) ListPaymentSources(ctx context.Context) ([]string, error) {
	return s.store.ListPaymentSources(ctx)
}

// GetSettings returns the stored category tree, budgets and currency.
func (s *LedgerService) GetSettings(ctx context.Context) (core.Settings, error) {
	return s.store.GetSettings(ctx)
}

// SaveSettings validates budget records, replaces the stored settings and
// publishes an updated event.
func (s *LedgerService) SaveSettings(ctx context.Context, settings core.Settings) error {
	for i, b := range settings.Budgets {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("budget %d (%s): %w", i+1, b.Category, err)
		}
	}

	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.publish(ctx, amqp.NewActivityEvent(amqp.EventSettingsUpdated, 0, ""))

	return nil
}

// IsValidationError reports whether err stems from invalid caller input
// rather than a storage or broker failure.
func IsValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidDate,
		core.ErrInvalidMonth,
		core.ErrInvalidAmount,
		core.ErrInvalidGranularity,
		core.ErrEmptyDescription,
		core.ErrLongDescription,
		core.ErrEmptyCategory,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.ActivityEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishActivity(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish activity event",
			"type", event.Type,
			"transaction_id", event.TransactionID,
			"error", err)
	}
}

// Close closes the store and, when the publisher owns a connection, the
// publisher too.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if closer, ok := s.publisher.(io.Closer); ok && closer != nil {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
