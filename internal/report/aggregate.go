package report

import (
	"sort"
	"strings"

	"budgetview/internal/core"
)

// PeriodEntry is one aggregated bucket: the summed expense magnitude for a
// (period, category, subcategory) key. Derived, never persisted.
type PeriodEntry struct {
	Period      string     `json:"period"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory,omitempty"`
	TotalCost   core.Money `json:"total_cost"`
}

// CategoryFilter selects transactions by category. Entries are either a
// category name or "Category:Subcategory". An empty filter, or one containing
// the ALL_CATEGORIES sentinel, selects everything.
type CategoryFilter []string

// IsAll reports whether the filter selects every category.
func (f CategoryFilter) IsAll() bool {
	if len(f) == 0 {
		return true
	}
	for _, entry := range f {
		if entry == core.AllCategories {
			return true
		}
	}
	return false
}

// Matches reports whether a transaction passes the filter.
func (f CategoryFilter) Matches(tx core.Transaction) bool {
	if f.IsAll() {
		return true
	}
	for _, entry := range f {
		cat, sub, hasSub := strings.Cut(entry, ":")
		cat = strings.TrimSpace(cat)
		if hasSub {
			if tx.Category == cat && tx.Subcategory == strings.TrimSpace(sub) {
				return true
			}
		} else if tx.Category == cat {
			return true
		}
	}
	return false
}

// MainCategories returns the distinct top-level category names in the filter,
// in input order, with any subcategory qualifiers stripped.
func (f CategoryFilter) MainCategories() []string {
	seen := make(map[string]struct{}, len(f))
	out := make([]string, 0, len(f))
	for _, entry := range f {
		cat, _, _ := strings.Cut(entry, ":")
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}

// Aggregate groups the expense magnitudes of the given transactions by
// (period, category, subcategory). Income entries are skipped. The result is
// sorted by period, category, then subcategory so identical inputs always
// produce identical output.
func Aggregate(txs []core.Transaction, g core.Granularity, filter CategoryFilter) []PeriodEntry {
	type key struct {
		period, category, subcategory string
	}
	sums := make(map[key]int64)
	for _, tx := range txs {
		if !tx.IsExpense() {
			continue
		}
		if !filter.Matches(tx) {
			continue
		}
		k := key{
			period:      PeriodKey(tx.Date, g),
			category:    tx.Category,
			subcategory: tx.Subcategory,
		}
		sums[k] += tx.Magnitude().Cents
	}

	out := make([]PeriodEntry, 0, len(sums))
	for k, cents := range sums {
		out = append(out, PeriodEntry{
			Period:      k.period,
			Category:    k.category,
			Subcategory: k.subcategory,
			TotalCost:   core.Money{Cents: cents},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Subcategory < out[j].Subcategory
	})
	return out
}

// CategoryCost is the per-category (and subcategory) expense total for a
// whole transaction set, regardless of period.
type CategoryCost struct {
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	TotalCost   core.Money `json:"total_cost"`
}

// AggregateByCategory sums expense magnitudes per (category, subcategory)
// without bucketing by time.
func AggregateByCategory(txs []core.Transaction, filter CategoryFilter) []CategoryCost {
	type key struct{ category, subcategory string }
	sums := make(map[key]int64)
	for _, tx := range txs {
		if !tx.IsExpense() || !filter.Matches(tx) {
			continue
		}
		sums[key{tx.Category, tx.Subcategory}] += tx.Magnitude().Cents
	}
	out := make([]CategoryCost, 0, len(sums))
	for k, cents := range sums {
		out = append(out, CategoryCost{Category: k.category, Subcategory: k.subcategory, TotalCost: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Subcategory < out[j].Subcategory
	})
	return out
}

// Totals sums income, expense magnitude, and net amount over a transaction
// set. Net is the plain signed sum, so income - expenses.
func Totals(txs []core.Transaction) (income, expenses, net core.Money) {
	for _, tx := range txs {
		net.Cents += tx.Amount.Cents
		if tx.IsExpense() {
			expenses.Cents += tx.Magnitude().Cents
		} else {
			income.Cents += tx.Amount.Cents
		}
	}
	return income, expenses, net
}
