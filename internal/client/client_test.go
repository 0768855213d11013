package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"budgetview/internal/core"
	apphttp "budgetview/internal/http"
	"budgetview/internal/services"
	"budgetview/internal/storage"
)

// newTestBackend runs a real API server backed by the in-memory store.
func newTestBackend(t *testing.T) (*Client, *services.LedgerService) {
	t.Helper()
	ledger := services.NewLedgerService(storage.NewMemoryStore(), nil)
	srv := apphttp.NewServer(":0", ledger, 32, time.Minute)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return New(ts.URL), ledger
}

func seedTransaction(t *testing.T, ledger *services.LedgerService, date core.Date, cents int64, desc, category string) {
	t.Helper()
	_, err := ledger.CreateTransaction(context.Background(), core.Transaction{
		Date:          date,
		Description:   desc,
		Amount:        core.Money{Cents: cents},
		PaymentSource: "bank",
		Category:      category,
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

func TestClientTransactionRoundTrip(t *testing.T) {
	c, _ := newTestBackend(t)
	ctx := context.Background()

	created, err := c.CreateTransaction(ctx, core.Transaction{
		Date:          core.NewDate(2025, 4, 1),
		Description:   "bus ticket",
		Amount:        core.Money{Cents: -250},
		PaymentSource: "card",
		Category:      "Transport",
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created transaction has no id")
	}

	updated, err := c.UpdateTransactionCategory(ctx, created.ID, "Travel", "Local")
	if err != nil {
		t.Fatalf("UpdateTransactionCategory() error = %v", err)
	}
	if updated.Category != "Travel" || updated.Subcategory != "Local" {
		t.Errorf("category = %s/%s, want Travel/Local", updated.Category, updated.Subcategory)
	}

	if err := c.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}

	var apiErr *APIError
	if err := c.DeleteTransaction(ctx, created.ID); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("second delete error = %v, want 404 APIError", err)
	}
}

func TestClientLoadDashboard(t *testing.T) {
	c, ledger := newTestBackend(t)

	seedTransaction(t, ledger, core.NewDate(2025, 1, 5), 200000, "salary", "Income")
	seedTransaction(t, ledger, core.NewDate(2025, 1, 10), -30000, "rent", "Housing")
	seedTransaction(t, ledger, core.NewDate(2025, 2, 3), -5000, "groceries", "Food")

	d, err := c.LoadDashboard(context.Background(), 2025, nil)
	if err != nil {
		t.Fatalf("LoadDashboard() error = %v", err)
	}
	if d.Summary.Income.Cents != 200000 {
		t.Errorf("income = %d, want 200000", d.Summary.Income.Cents)
	}
	if d.Summary.Expenses.Cents != 35000 {
		t.Errorf("expenses = %d, want 35000", d.Summary.Expenses.Cents)
	}
	if len(d.CategoryCosts) != 2 {
		t.Errorf("got %d category cost rows, want 2 expense categories", len(d.CategoryCosts))
	}
	if len(d.Monthly) != 2 {
		t.Errorf("got %d monthly rows, want 2", len(d.Monthly))
	}
}

func TestClientLoadDashboardPropagatesFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/category_costs" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
			return
		}
		_ = json.NewEncoder(w).Encode([]any{})
	}))
	defer ts.Close()

	c := New(ts.URL)
	if _, err := c.LoadDashboard(context.Background(), 0, nil); err == nil {
		t.Fatal("expected error when one request fails")
	}
}

func TestClientBudgetVsExpenses(t *testing.T) {
	c, ledger := newTestBackend(t)

	if err := ledger.SaveSettings(context.Background(), core.Settings{
		Categories: []core.Category{{Name: "Food"}},
		Budgets:    []core.Budget{{Category: "Food", Amount: core.Money{Cents: 20000}}},
		Currency:   "EUR",
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	seedTransaction(t, ledger, core.NewDate(2025, 6, 15), -25000, "groceries", "Food")

	rows, err := c.BudgetVsExpenses(context.Background(), ReconciliationQuery{
		Granularity: core.Monthly,
		NumPeriods:  1,
		Year:        2025,
		Categories:  []string{"Food"},
	})
	if err != nil {
		t.Fatalf("BudgetVsExpenses() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Period != "2025-06" || !rows[0].OverBudget {
		t.Errorf("row = %+v, want period 2025-06 over budget", rows[0])
	}
}

func TestReportViewDropsStaleResponse(t *testing.T) {
	release := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		period := "2025-01"
		if r.URL.Query().Get("year") == "2024" {
			// First request hangs until released, simulating a slow backend.
			<-release
			period = "2024-01"
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"period":          period,
			"category":        "ALL_CATEGORIES",
			"budgeted_amount": 0,
			"actual_expenses": 0,
			"difference":      0,
			"over_budget":     false,
		}})
	}))
	defer ts.Close()

	view := NewReportView(New(ts.URL))

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- view.Refresh(context.Background(), ReconciliationQuery{Year: 2024, NumPeriods: 1})
	}()

	// Give the slow request time to take its generation token, then issue
	// the newer one.
	time.Sleep(50 * time.Millisecond)
	if err := view.Refresh(context.Background(), ReconciliationQuery{Year: 2025, NumPeriods: 1}); err != nil {
		t.Fatalf("fast Refresh() error = %v", err)
	}

	close(release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow Refresh() error = %v", err)
	}

	rows := view.Rows()
	if len(rows) != 1 || rows[0].Period != "2025-01" {
		t.Errorf("rows = %+v, want the 2025 response to win", rows)
	}
	if view.Query().Year != 2025 {
		t.Errorf("query year = %d, want 2025", view.Query().Year)
	}
}

func TestReportViewRefreshError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid year"})
	}))
	defer ts.Close()

	view := NewReportView(New(ts.URL))
	if err := view.Refresh(context.Background(), ReconciliationQuery{}); err == nil {
		t.Fatal("expected error from failed refresh")
	}
	if rows := view.Rows(); rows != nil {
		t.Errorf("rows = %v, want nil after failed refresh", rows)
	}
}
