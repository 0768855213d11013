package services

import (
	"context"
	"errors"
	"testing"

	"budgetview/internal/amqp"
	"budgetview/internal/core"
	"budgetview/internal/storage"
)

type capturingPublisher struct {
	events []*amqp.ActivityEvent
	err    error
}

func (p *capturingPublisher) PublishActivity(_ context.Context, event *amqp.ActivityEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func validTx() core.Transaction {
	d, _ := core.ParseDate("2024-04-01")
	return core.Transaction{
		Date:        d,
		Description: "groceries",
		Amount:      core.Money{Cents: -2000},
		Category:    "Food",
	}
}

func TestLedgerService_CreateTransaction(t *testing.T) {
	pub := &capturingPublisher{}
	svc := NewLedgerService(storage.NewMemoryStore(), pub)
	ctx := context.Background()

	id, err := svc.CreateTransaction(ctx, validTx())
	if err != nil {
		t.Fatalf("CreateTransaction() error: %v", err)
	}
	if id == 0 {
		t.Error("CreateTransaction() returned zero id")
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].Type != amqp.EventTransactionCreated {
		t.Errorf("event type = %q, want %q", pub.events[0].Type, amqp.EventTransactionCreated)
	}
	if pub.events[0].TransactionID != id {
		t.Errorf("event transaction id = %d, want %d", pub.events[0].TransactionID, id)
	}
}

func TestLedgerService_CreateTransactionInvalid(t *testing.T) {
	pub := &capturingPublisher{}
	svc := NewLedgerService(storage.NewMemoryStore(), pub)

	tx := validTx()
	tx.Description = "  "

	if _, err := svc.CreateTransaction(context.Background(), tx); !errors.Is(err, core.ErrEmptyDescription) {
		t.Errorf("CreateTransaction() = %v, want ErrEmptyDescription", err)
	}
	if len(pub.events) != 0 {
		t.Error("no event should be published for a rejected transaction")
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("broker down")}
	svc := NewLedgerService(storage.NewMemoryStore(), pub)
	ctx := context.Background()

	id, err := svc.CreateTransaction(ctx, validTx())
	if err != nil {
		t.Fatalf("CreateTransaction() error: %v", err)
	}

	got, err := svc.GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("GetTransaction() error: %v", err)
	}
	if got.Description != "groceries" {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestLedgerService_NilPublisher(t *testing.T) {
	svc := NewLedgerService(storage.NewMemoryStore(), nil)

	if _, err := svc.CreateTransaction(context.Background(), validTx()); err != nil {
		t.Fatalf("CreateTransaction() with nil publisher error: %v", err)
	}
}

func TestLedgerService_DeleteTransaction(t *testing.T) {
	pub := &capturingPublisher{}
	svc := NewLedgerService(storage.NewMemoryStore(), pub)
	ctx := context.Background()

	id, err := svc.CreateTransaction(ctx, validTx())
	if err != nil {
		t.Fatalf("CreateTransaction() error: %v", err)
	}

	if err := svc.DeleteTransaction(ctx, id); err != nil {
		t.Fatalf("DeleteTransaction() error: %v", err)
	}
	if len(pub.events) != 2 || pub.events[1].Type != amqp.EventTransactionDeleted {
		t.Errorf("expected deleted event, got %+v", pub.events)
	}

	if err := svc.DeleteTransaction(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteTransaction() twice = %v, want ErrNotFound", err)
	}
}

func TestLedgerService_ImportTransactions(t *testing.T) {
	svc := NewLedgerService(storage.NewMemoryStore(), nil)
	ctx := context.Background()

	bad := validTx()
	bad.Amount = core.Money{}

	if _, err := svc.ImportTransactions(ctx, []core.Transaction{validTx(), bad}); err == nil {
		t.Error("ImportTransactions() should reject batch with invalid row")
	}

	n, err := svc.ImportTransactions(ctx, []core.Transaction{validTx(), validTx()})
	if err != nil {
		t.Fatalf("ImportTransactions() error: %v", err)
	}
	if n != 2 {
		t.Errorf("ImportTransactions() = %d, want 2", n)
	}
}

func TestLedgerService_SaveSettings(t *testing.T) {
	pub := &capturingPublisher{}
	svc := NewLedgerService(storage.NewMemoryStore(), pub)
	ctx := context.Background()

	bad := core.Settings{
		Budgets: []core.Budget{{Category: "", Amount: core.Money{Cents: 100}}},
	}
	if err := svc.SaveSettings(ctx, bad); !errors.Is(err, core.ErrEmptyCategory) {
		t.Errorf("SaveSettings() = %v, want ErrEmptyCategory", err)
	}

	good := core.Settings{
		Categories: []core.Category{{Name: "Food"}},
		Budgets:    []core.Budget{{Category: "Food", Amount: core.Money{Cents: 40000}}},
		Currency:   "EUR",
	}
	if err := svc.SaveSettings(ctx, good); err != nil {
		t.Fatalf("SaveSettings() error: %v", err)
	}

	if len(pub.events) != 1 || pub.events[0].Type != amqp.EventSettingsUpdated {
		t.Errorf("expected settings updated event, got %+v", pub.events)
	}

	got, err := svc.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() error: %v", err)
	}
	if len(got.Budgets) != 1 || got.Budgets[0].Category != "Food" {
		t.Errorf("GetSettings() = %+v", got)
	}
}
