package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetview/internal/core"
	"budgetview/internal/services"
	"budgetview/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ledger := services.NewLedgerService(storage.NewMemoryStore(), nil)
	srv := NewServer(":0", ledger, 32, time.Minute)
	t.Cleanup(func() {
		srv.cacheManager.Stop()
		srv.rateLimiter.stop()
	})
	return srv
}

func doRequest(srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func txPayload(date string, amount float64, description, category, subcategory string) map[string]any {
	return map[string]any{
		"date":           date,
		"description":    description,
		"amount":         amount,
		"payment_source": "bank",
		"category":       category,
		"subcategory":    subcategory,
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-03-10", -42.50, "groceries", "Food", "Supermarket"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created transaction has no id")
	}
	if created.Amount.Cents != -4250 {
		t.Errorf("amount = %d cents, want -4250", created.Amount.Cents)
	}

	rec = doRequest(srv, http.MethodGet, "/api/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed []core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d transactions, want 1", len(listed))
	}

	rec = doRequest(srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing description", txPayload("2025-03-10", -10, "", "Food", "")},
		{"zero amount", txPayload("2025-03-10", 0, "coffee", "Food", "")},
		{"bad date", txPayload("not-a-date", -10, "coffee", "Food", "")},
		{"description too long", txPayload("2025-03-10", -10, strings.Repeat("x", 201), "Food", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdateTransactionCategory(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-03-10", -12.00, "mystery charge", "Uncategorized", ""))
	var created core.Transaction
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doRequest(srv, http.MethodPatch,
		fmt.Sprintf("/api/transactions/%d/category", created.ID),
		map[string]string{"category": "Subscriptions", "subcategory": "Streaming"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Category != "Subscriptions" || updated.Subcategory != "Streaming" {
		t.Errorf("category = %s/%s, want Subscriptions/Streaming",
			updated.Category, updated.Subcategory)
	}

	rec = doRequest(srv, http.MethodPatch,
		fmt.Sprintf("/api/transactions/%d/category", created.ID),
		map[string]string{"category": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty category status = %d, want 400", rec.Code)
	}

	rec = doRequest(srv, http.MethodPatch, "/api/transactions/9999/category",
		map[string]string{"category": "Food"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", rec.Code)
	}
}

func TestExpenseSummary(t *testing.T) {
	srv := newTestServer(t)

	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-01-05", 2000.00, "salary", "Income", ""))
	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-01-10", -300.00, "rent", "Housing", ""))
	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-01-15", -50.00, "groceries", "Food", ""))

	rec := doRequest(srv, http.MethodGet, "/api/expenses?year=2025", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var summary struct {
		Income    core.Money `json:"income"`
		Expenses  core.Money `json:"expenses"`
		NetIncome core.Money `json:"net_income"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Income.Cents != 200000 {
		t.Errorf("income = %d, want 200000", summary.Income.Cents)
	}
	if summary.Expenses.Cents != 35000 {
		t.Errorf("expenses = %d, want 35000", summary.Expenses.Cents)
	}
	if summary.NetIncome.Cents != 165000 {
		t.Errorf("net = %d, want 165000", summary.NetIncome.Cents)
	}
}

func TestExpenseSummaryExcludedCategories(t *testing.T) {
	srv := newTestServer(t)

	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-01-10", -300.00, "rent", "Housing", ""))
	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-01-15", -50.00, "groceries", "Food", ""))

	rec := doRequest(srv, http.MethodGet,
		"/api/expenses?year=2025&excluded_categories=Housing", nil)
	var summary struct {
		Expenses core.Money `json:"expenses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Expenses.Cents != 5000 {
		t.Errorf("expenses = %d, want 5000 with Housing excluded", summary.Expenses.Cents)
	}
}

func TestMonthlyCategoryExpenses(t *testing.T) {
	srv := newTestServer(t)

	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-02-01", -10.00, "coffee", "Food", "Bar"))
	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-02-14", -25.00, "dinner", "Food", "Restaurant"))

	rec := doRequest(srv, http.MethodGet, "/api/monthly_category_expenses?year=2025", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []struct {
		YearMonth   string     `json:"year_month"`
		Category    string     `json:"category"`
		Subcategory string     `json:"subcategory"`
		TotalCost   core.Money `json:"total_cost"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.YearMonth != "2025-02" {
			t.Errorf("year_month = %s, want 2025-02", e.YearMonth)
		}
	}
}

func TestBudgetVsExpenses(t *testing.T) {
	srv := newTestServer(t)

	settings := core.Settings{
		Categories: []core.Category{{Name: "Food", Subcategories: []string{"Bar"}}},
		Budgets:    []core.Budget{{Category: "Food", Amount: core.Money{Cents: 20000}}},
		Currency:   "EUR",
	}
	rec := doRequest(srv, http.MethodPut, "/api/settings", settings)
	if rec.Code != http.StatusOK {
		t.Fatalf("save settings status = %d, body %s", rec.Code, rec.Body.String())
	}

	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-06-15", -250.00, "groceries", "Food", ""))

	rec = doRequest(srv, http.MethodGet,
		"/api/budget_vs_expenses?time_granularity=Monthly&num_periods=1&year=2025&categories=Food", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var rows []struct {
		Period     string     `json:"period"`
		Category   string     `json:"category"`
		Budgeted   core.Money `json:"budgeted_amount"`
		Actual     core.Money `json:"actual_expenses"`
		Difference core.Money `json:"difference"`
		OverBudget bool       `json:"over_budget"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Period != "2025-06" {
		t.Errorf("period = %s, want 2025-06", row.Period)
	}
	if row.Budgeted.Cents != 20000 || row.Actual.Cents != 25000 {
		t.Errorf("budgeted/actual = %d/%d, want 20000/25000",
			row.Budgeted.Cents, row.Actual.Cents)
	}
	if !row.OverBudget {
		t.Error("expected over_budget = true")
	}
}

func TestBudgetVsExpensesRejectsBadGranularity(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet,
		"/api/budget_vs_expenses?time_granularity=Hourly", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	settings := core.Settings{
		Categories: []core.Category{
			{Name: "Food", Subcategories: []string{"Bar", "Restaurant"}},
			{Name: "Housing"},
		},
		Budgets: []core.Budget{
			{Category: "Food", Amount: core.Money{Cents: 40000}},
			{Category: "Housing", Amount: core.Money{Cents: 90000}, Year: 2025},
		},
		Currency: "USD",
	}

	rec := doRequest(srv, http.MethodPut, "/api/settings", settings)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(srv, http.MethodGet, "/api/settings", nil)
	var got core.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if got.Currency != "USD" {
		t.Errorf("currency = %s, want USD", got.Currency)
	}
	if len(got.Categories) != 2 || got.Categories[0].Name != "Food" {
		t.Errorf("categories not preserved: %+v", got.Categories)
	}
	if len(got.Budgets) != 2 || got.Budgets[1].Year != 2025 {
		t.Errorf("budgets not preserved: %+v", got.Budgets)
	}
}

func TestSaveSettingsRejectsInvalidBudget(t *testing.T) {
	srv := newTestServer(t)

	settings := core.Settings{
		Budgets: []core.Budget{{Category: "", Amount: core.Money{Cents: 100}}},
	}
	rec := doRequest(srv, http.MethodPut, "/api/settings", settings)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestPaymentSources(t *testing.T) {
	srv := newTestServer(t)

	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-01-01", -10.00, "a", "Food", ""))

	rec := doRequest(srv, http.MethodGet, "/api/payment_sources", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var sources []string
	if err := json.Unmarshal(rec.Body.Bytes(), &sources); err != nil {
		t.Fatalf("decode sources: %v", err)
	}
	if len(sources) != 1 || sources[0] != "bank" {
		t.Errorf("sources = %v, want [bank]", sources)
	}
}

func TestReportCacheInvalidatedByWrites(t *testing.T) {
	srv := newTestServer(t)

	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-01-10", -100.00, "rent", "Housing", ""))

	first := doRequest(srv, http.MethodGet, "/api/expenses?year=2025", nil)

	// Same query again must come from the cache.
	doRequest(srv, http.MethodGet, "/api/expenses?year=2025", nil)
	if hits := srv.metrics.cacheHits; hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}

	doRequest(srv, http.MethodPost, "/api/transactions",
		txPayload("2025-01-20", -60.00, "groceries", "Food", ""))

	second := doRequest(srv, http.MethodGet, "/api/expenses?year=2025", nil)
	if bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("summary unchanged after write, cache was not invalidated")
	}
}

func TestActivityEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/activity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty activity body = %s, want []", body)
	}

	rec = doRequest(srv, http.MethodGet, "/api/activity?limit=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	doRequest(srv, http.MethodGet, "/api/expenses", nil)
	rec := doRequest(srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, counter := range []string{"http_requests_total", "report_cache_misses"} {
		if !strings.Contains(body, counter) {
			t.Errorf("metrics output missing %s", counter)
		}
	}
}

func TestInvalidYearRejected(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/expenses?year=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
