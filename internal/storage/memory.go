package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"budgetview/internal/core"
)

// MemoryStore is an in-memory repository used for the memory backend and tests.
// It mirrors SQLiteRepository's behavior, including ErrNotFound semantics and
// date-then-ID ordering of listings.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	txs      map[int64]core.Transaction
	settings core.Settings
	activity []ActivityEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		txs:    make(map[int64]core.Transaction),
		settings: core.Settings{
			Currency: "EUR",
		},
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextID
	s.nextID++
	s.txs[t.ID] = t
	return t.ID, nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *MemoryStore) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

func (s *MemoryStore) UpdateTransactionCategory(_ context.Context, id int64, category, subcategory string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.txs[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	t.Category = category
	t.Subcategory = subcategory
	s.txs[id] = t
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, year int) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []core.Transaction
	for _, t := range s.txs {
		if year != 0 && t.Date.Year() != year {
			continue
		}
		txs = append(txs, t)
	}

	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.Before(txs[j].Date.Time)
		}
		return txs[i].ID < txs[j].ID
	})

	return txs, nil
}

func (s *MemoryStore) ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	for _, t := range txs {
		if _, err := s.CreateTransaction(ctx, t); err != nil {
			return 0, err
		}
	}
	return len(txs), nil
}

func (s *MemoryStore) ListPaymentSources(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var sources []string
	for _, t := range s.txs {
		if t.PaymentSource == "" || seen[t.PaymentSource] {
			continue
		}
		seen[t.PaymentSource] = true
		sources = append(sources, t.PaymentSource)
	}
	sort.Strings(sources)
	return sources, nil
}

func (s *MemoryStore) GetSettings(_ context.Context) (core.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *MemoryStore) SaveSettings(_ context.Context, settings core.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *MemoryStore) AppendActivity(_ context.Context, e ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = int64(len(s.activity) + 1)
	s.activity = append(s.activity, e)
	return nil
}

func (s *MemoryStore) ListActivity(_ context.Context, limit int) ([]ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []ActivityEntry
	for i := len(s.activity) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, s.activity[i])
	}
	return entries, nil
}
