package http

import (
	"encoding/json"
	"net/http"

	"budgetview/internal/core"
	"budgetview/internal/report"
)

// expenseSummaryResponse is the dashboard payload: overall totals plus the
// settings the client needs to render category pickers and budgets.
type expenseSummaryResponse struct {
	Income    core.Money    `json:"income"`
	Expenses  core.Money    `json:"expenses"`
	NetIncome core.Money    `json:"net_income"`
	Settings  core.Settings `json:"settings"`
}

// monthlyCategoryEntry uses snake_case wire keys, consistent with every
// other endpoint in this API.
type monthlyCategoryEntry struct {
	YearMonth   string     `json:"year_month"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	TotalCost   core.Money `json:"total_cost"`
}

// serveCachedReport answers from the report cache when possible, otherwise
// computes the payload, caches the encoded bytes, and writes them.
func (s *Server) serveCachedReport(w http.ResponseWriter, r *http.Request, compute func() (any, error)) {
	key := cacheKey(r)
	if data, ok := s.reportCache.Get(key); ok {
		s.metrics.recordCacheHit()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	s.metrics.recordCacheMiss()

	payload, err := compute()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode report")
		return
	}
	s.reportCache.Set(key, data)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// excludeCategories drops the transactions matched by the filter. An empty
// filter excludes nothing.
func excludeCategories(txs []core.Transaction, excluded report.CategoryFilter) []core.Transaction {
	if len(excluded) == 0 {
		return txs
	}
	kept := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if excluded.Matches(tx) {
			continue
		}
		kept = append(kept, tx)
	}
	return kept
}

func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	excluded := queryCategories(r, "excluded_categories")

	s.serveCachedReport(w, r, func() (any, error) {
		txs, err := s.ledger.ListTransactions(r.Context(), year)
		if err != nil {
			return nil, err
		}
		settings, err := s.ledger.GetSettings(r.Context())
		if err != nil {
			return nil, err
		}
		income, expenses, net := report.Totals(excludeCategories(txs, excluded))
		return expenseSummaryResponse{
			Income:    income,
			Expenses:  expenses,
			NetIncome: net,
			Settings:  settings,
		}, nil
	})
}

func (s *Server) handleCategoryCosts(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	excluded := queryCategories(r, "excluded_categories")

	s.serveCachedReport(w, r, func() (any, error) {
		txs, err := s.ledger.ListTransactions(r.Context(), year)
		if err != nil {
			return nil, err
		}
		costs := report.AggregateByCategory(excludeCategories(txs, excluded), nil)
		return costs, nil
	})
}

func (s *Server) handleMonthlyCategoryExpenses(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	excluded := queryCategories(r, "excluded_categories")

	s.serveCachedReport(w, r, func() (any, error) {
		txs, err := s.ledger.ListTransactions(r.Context(), year)
		if err != nil {
			return nil, err
		}
		entries := report.Aggregate(excludeCategories(txs, excluded), core.Monthly, nil)
		out := make([]monthlyCategoryEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, monthlyCategoryEntry{
				YearMonth:   e.Period,
				Category:    e.Category,
				Subcategory: e.Subcategory,
				TotalCost:   e.TotalCost,
			})
		}
		return out, nil
	})
}

func (s *Server) handleBudgetVsExpenses(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	granularity, err := queryGranularity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	numPeriods, err := queryNumPeriods(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := queryCategories(r, "categories")

	s.serveCachedReport(w, r, func() (any, error) {
		txs, err := s.ledger.ListTransactions(r.Context(), 0)
		if err != nil {
			return nil, err
		}
		settings, err := s.ledger.GetSettings(r.Context())
		if err != nil {
			return nil, err
		}
		rows := report.BuildReconciliation(
			txs, settings.Budgets, settings.Categories,
			granularity, numPeriods, year, filter)
		if rows == nil {
			rows = []report.ReconciliationRow{}
		}
		return rows, nil
	})
}
