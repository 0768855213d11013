// Package worker consumes activity events from the broker into the audit log
// and periodically exports reconciliation snapshots to Google Sheets.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetview/internal/amqp"
	"budgetview/internal/core"
	"budgetview/internal/log"
	"budgetview/internal/report"
	"budgetview/internal/storage"
)

// ActivityStore is the persistence surface the worker needs.
type ActivityStore interface {
	AppendActivity(ctx context.Context, e storage.ActivityEntry) error
	ListTransactions(ctx context.Context, year int) ([]core.Transaction, error)
	GetSettings(ctx context.Context) (core.Settings, error)
}

// ReconciliationExporter writes reconciliation rows somewhere external.
// Satisfied by the Google Sheets client.
type ReconciliationExporter interface {
	ExportReconciliation(ctx context.Context, rows []report.ReconciliationRow) (string, error)
}

// ActivityWorker records activity events and drives the periodic export.
// The exporter is optional; without one only the audit log is maintained.
// Events are buffered and written in batches: a batch is flushed when it
// reaches batchSize or on the flush interval, whichever comes first.
type ActivityWorker struct {
	store       ActivityStore
	exporter    ReconciliationExporter
	logger      *log.Logger
	granularity core.Granularity
	numPeriods  int

	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	pending []storage.ActivityEntry
}

func NewActivityWorker(store ActivityStore, exporter ReconciliationExporter, batchSize int, flushInterval time.Duration) *ActivityWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	return &ActivityWorker{
		store:         store,
		exporter:      exporter,
		logger:        log.New(log.Config{Component: log.ComponentWorker}),
		granularity:   core.Monthly,
		numPeriods:    12,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Handler returns the message handler to register with the AMQP consumer.
func (w *ActivityWorker) Handler(ctx context.Context) func(*amqp.ActivityEvent) error {
	return func(event *amqp.ActivityEvent) error {
		return w.RecordEvent(ctx, event)
	}
}

// RecordEvent buffers one activity event for the audit log. A full buffer
// flushes immediately; otherwise the entry waits for the next interval flush.
func (w *ActivityWorker) RecordEvent(ctx context.Context, event *amqp.ActivityEvent) error {
	payload, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("encode activity payload: %w", err)
	}

	occurredAt := event.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	entry := storage.ActivityEntry{
		EventType:  event.Type,
		Payload:    string(payload),
		OccurredAt: occurredAt,
	}

	w.mu.Lock()
	w.pending = append(w.pending, entry)
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if full {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes the buffered entries to the audit log. On a storage error the
// unwritten tail is put back so the next flush retries it.
func (w *ActivityWorker) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	for i, entry := range batch {
		if err := w.store.AppendActivity(ctx, entry); err != nil {
			w.mu.Lock()
			w.pending = append(batch[i:], w.pending...)
			w.mu.Unlock()
			return fmt.Errorf("record activity: %w", err)
		}
	}

	w.logger.InfoContext(ctx, "Activity batch recorded",
		log.FieldOperation, log.OpAppend,
		log.FieldRowCount, len(batch))

	return nil
}

// RunPeriodicFlush drains the event buffer on every interval until the
// context ends, then makes a final flush so buffered events are not lost on
// shutdown.
func (w *ActivityWorker) RunPeriodicFlush(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := w.Flush(drainCtx); err != nil {
				w.logger.ErrorContext(drainCtx, "Final activity flush failed",
					log.FieldOperation, log.OpAppend,
					log.FieldError, err)
			}
			return ctx.Err()
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Activity flush failed",
					log.FieldOperation, log.OpAppend,
					log.FieldError, err)
			}
		}
	}
}

// ExportSnapshot builds the current reconciliation and pushes it through the
// exporter. A ledger with no anchor produces nothing and is not an error.
func (w *ActivityWorker) ExportSnapshot(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}

	txs, err := w.store.ListTransactions(ctx, 0)
	if err != nil {
		return fmt.Errorf("list transactions for export: %w", err)
	}
	settings, err := w.store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings for export: %w", err)
	}

	rows := report.BuildReconciliation(
		txs, settings.Budgets, settings.Categories,
		w.granularity, w.numPeriods, 0, nil)
	if len(rows) == 0 {
		w.logger.InfoContext(ctx, "No reconciliation rows to export",
			log.FieldOperation, log.OpExport)
		return nil
	}

	ref, err := w.exporter.ExportReconciliation(ctx, rows)
	if err != nil {
		return fmt.Errorf("export reconciliation: %w", err)
	}

	w.logger.InfoContext(ctx, "Reconciliation exported",
		log.FieldOperation, log.OpExport,
		log.FieldRowCount, len(rows),
		log.FieldSheetsRef, ref)

	return nil
}

// RunPeriodicExport exports a snapshot on every tick until the context ends.
// Export failures are logged and retried on the next tick.
func (w *ActivityWorker) RunPeriodicExport(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ExportSnapshot(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic export failed",
					log.FieldOperation, log.OpExport,
					log.FieldError, err)
			}
		}
	}
}
