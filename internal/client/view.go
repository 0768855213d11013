package client

import (
	"context"
	"sync"

	"budgetview/internal/report"
)

// ReportView holds the latest budget-vs-actual rows for a query. Each
// Refresh takes a new generation token; a response is applied only when its
// token is still current, so a slow response can never overwrite the result
// of a newer request.
type ReportView struct {
	client *Client

	mu         sync.Mutex
	generation uint64
	query      ReconciliationQuery
	rows       []report.ReconciliationRow
}

func NewReportView(client *Client) *ReportView {
	return &ReportView{client: client}
}

// Refresh fetches the rows for the query and applies them unless a newer
// Refresh has started in the meantime. A stale response is dropped silently
// and reported as nil.
func (v *ReportView) Refresh(ctx context.Context, q ReconciliationQuery) error {
	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.mu.Unlock()

	rows, err := v.client.BudgetVsExpenses(ctx, q)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return nil
	}
	if err != nil {
		return err
	}
	v.query = q
	v.rows = rows
	return nil
}

// Rows returns the most recently applied reconciliation rows.
func (v *ReportView) Rows() []report.ReconciliationRow {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rows
}

// Query returns the query the current rows belong to.
func (v *ReportView) Query() ReconciliationQuery {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}
