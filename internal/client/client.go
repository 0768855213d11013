// Package client is a small REST client for the budgetview API, used by
// the CLI tools and by other services that embed a dashboard.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetview/internal/core"
	"budgetview/internal/report"
	"budgetview/internal/storage"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExpenseSummary mirrors the GET /api/expenses payload.
type ExpenseSummary struct {
	Income    core.Money    `json:"income"`
	Expenses  core.Money    `json:"expenses"`
	NetIncome core.Money    `json:"net_income"`
	Settings  core.Settings `json:"settings"`
}

// MonthlyCategoryEntry mirrors one GET /api/monthly_category_expenses row.
type MonthlyCategoryEntry struct {
	YearMonth   string     `json:"year_month"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	TotalCost   core.Money `json:"total_cost"`
}

// ReconciliationQuery selects the budget-vs-actual window.
type ReconciliationQuery struct {
	Granularity core.Granularity
	NumPeriods  int
	Year        int
	Categories  []string
}

func (q ReconciliationQuery) values() url.Values {
	v := url.Values{}
	if q.Granularity != "" {
		v.Set("time_granularity", string(q.Granularity))
	}
	if q.NumPeriods > 0 {
		v.Set("num_periods", strconv.Itoa(q.NumPeriods))
	}
	if q.Year != 0 {
		v.Set("year", strconv.Itoa(q.Year))
	}
	if len(q.Categories) > 0 {
		v.Set("categories", strings.Join(q.Categories, ","))
	}
	return v
}

func summaryValues(year int, excluded []string) url.Values {
	v := url.Values{}
	if year != 0 {
		v.Set("year", strconv.Itoa(year))
	}
	if len(excluded) > 0 {
		v.Set("excluded_categories", strings.Join(excluded, ","))
	}
	return v
}

func (c *Client) ExpenseSummary(ctx context.Context, year int, excluded []string) (ExpenseSummary, error) {
	var out ExpenseSummary
	err := c.get(ctx, "/api/expenses", summaryValues(year, excluded), &out)
	return out, err
}

func (c *Client) CategoryCosts(ctx context.Context, year int, excluded []string) ([]report.CategoryCost, error) {
	var out []report.CategoryCost
	err := c.get(ctx, "/api/category_costs", summaryValues(year, excluded), &out)
	return out, err
}

func (c *Client) MonthlyCategoryExpenses(ctx context.Context, year int, excluded []string) ([]MonthlyCategoryEntry, error) {
	var out []MonthlyCategoryEntry
	err := c.get(ctx, "/api/monthly_category_expenses", summaryValues(year, excluded), &out)
	return out, err
}

func (c *Client) BudgetVsExpenses(ctx context.Context, q ReconciliationQuery) ([]report.ReconciliationRow, error) {
	var out []report.ReconciliationRow
	err := c.get(ctx, "/api/budget_vs_expenses", q.values(), &out)
	return out, err
}

func (c *Client) Settings(ctx context.Context) (core.Settings, error) {
	var out core.Settings
	err := c.get(ctx, "/api/settings", nil, &out)
	return out, err
}

func (c *Client) SaveSettings(ctx context.Context, settings core.Settings) error {
	return c.do(ctx, http.MethodPut, "/api/settings", settings, nil)
}

func (c *Client) Transactions(ctx context.Context, year int) ([]core.Transaction, error) {
	var out []core.Transaction
	err := c.get(ctx, "/api/transactions", summaryValues(year, nil), &out)
	return out, err
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := c.do(ctx, http.MethodPost, "/api/transactions", tx, &out)
	return out, err
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", id), nil, nil)
}

func (c *Client) UpdateTransactionCategory(ctx context.Context, id int64, category, subcategory string) (core.Transaction, error) {
	var out core.Transaction
	err := c.do(ctx, http.MethodPatch,
		fmt.Sprintf("/api/transactions/%d/category", id),
		map[string]string{"category": category, "subcategory": subcategory},
		&out)
	return out, err
}

func (c *Client) PaymentSources(ctx context.Context) ([]string, error) {
	var out []string
	err := c.get(ctx, "/api/payment_sources", nil, &out)
	return out, err
}

func (c *Client) Activity(ctx context.Context, limit int) ([]storage.ActivityEntry, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out []storage.ActivityEntry
	err := c.get(ctx, "/api/activity", v, &out)
	return out, err
}

// Dashboard bundles everything the overview screen needs.
type Dashboard struct {
	Summary       ExpenseSummary
	CategoryCosts []report.CategoryCost
	Monthly       []MonthlyCategoryEntry
}

// LoadDashboard fetches the three overview reports concurrently. The first
// failure cancels the remaining requests.
func (c *Client) LoadDashboard(ctx context.Context, year int, excluded []string) (*Dashboard, error) {
	var d Dashboard

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := c.ExpenseSummary(ctx, year, excluded)
		if err != nil {
			return fmt.Errorf("expense summary: %w", err)
		}
		d.Summary = summary
		return nil
	})
	g.Go(func() error {
		costs, err := c.CategoryCosts(ctx, year, excluded)
		if err != nil {
			return fmt.Errorf("category costs: %w", err)
		}
		d.CategoryCosts = costs
		return nil
	})
	g.Go(func() error {
		monthly, err := c.MonthlyCategoryExpenses(ctx, year, excluded)
		if err != nil {
			return fmt.Errorf("monthly expenses: %w", err)
		}
		d.Monthly = monthly
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.send(req, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
