package report

import "budgetview/internal/core"

// ReconciliationRow is one budget-vs-actual line for a period. Derived,
// recomputed on every build.
type ReconciliationRow struct {
	Period     string     `json:"period"`
	Category   string     `json:"category"`
	Budgeted   core.Money `json:"budgeted_amount"`
	Actual     core.Money `json:"actual_expenses"`
	Difference core.Money `json:"difference"`
	OverBudget bool       `json:"over_budget"`
}

// totalSelectedLabel is the display category when the filter names more than
// one category.
const totalSelectedLabel = "Total Selected Categories"

// BuildReconciliation produces the budget-vs-actual rows for the most recent
// numPeriods periods. The period window ends at the latest transaction date
// within the requested year, or at 31 December of that year when no
// transactions match; with neither transactions nor a year there is no anchor
// and the result is empty.
//
// Actuals are the aggregated expense magnitudes matching the filter. The
// budgeted amount is the filter categories' resolved budgets summed; an empty
// filter resolves the ALL_CATEGORIES sentinel and, when that yields nothing,
// falls back to the sum of every defined category's budget.
func BuildReconciliation(
	txs []core.Transaction,
	budgets []core.Budget,
	categories []core.Category,
	g core.Granularity,
	numPeriods int,
	year int,
	filter CategoryFilter,
) []ReconciliationRow {
	selected := make([]core.Transaction, 0, len(txs))
	var anchor core.Date
	for _, tx := range txs {
		if year != 0 && tx.Date.Year() != year {
			continue
		}
		if !filter.Matches(tx) {
			continue
		}
		selected = append(selected, tx)
		if anchor.IsZero() || tx.Date.After(anchor.Time) {
			anchor = tx.Date
		}
	}
	if anchor.IsZero() {
		if year == 0 {
			return nil
		}
		anchor = core.NewDate(year, 12, 31)
	}

	periods := PeriodsEndingAt(anchor, g, numPeriods)

	actuals := make(map[string]int64, len(periods))
	for _, entry := range Aggregate(selected, g, nil) {
		actuals[entry.Period] += entry.TotalCost.Cents
	}

	label := categoryLabel(filter)

	rows := make([]ReconciliationRow, 0, len(periods))
	for _, period := range periods {
		cov, err := ParsePeriod(period, g)
		if err != nil {
			// Labels come from PeriodsEndingAt, so this cannot happen;
			// degrade to a zero budget rather than failing the build.
			cov = Coverage{Year: anchor.Year()}
		}
		budgeted := budgetForCoverage(cov, budgets, categories, filter)
		actual := core.Money{Cents: actuals[period]}
		rows = append(rows, ReconciliationRow{
			Period:     period,
			Category:   label,
			Budgeted:   budgeted,
			Actual:     actual,
			Difference: budgeted.Sub(actual),
			OverBudget: actual.Cents > budgeted.Cents,
		})
	}
	return rows
}

func budgetForCoverage(cov Coverage, budgets []core.Budget, categories []core.Category, filter CategoryFilter) core.Money {
	if !filter.IsAll() {
		var total int64
		for _, cat := range filter.MainCategories() {
			total += ResolveBudgetForCoverage(cat, cov, budgets).Cents
		}
		return core.Money{Cents: total}
	}

	if amount := ResolveBudgetForCoverage(core.AllCategories, cov, budgets); amount.Cents != 0 {
		return amount
	}
	// No aggregate budget configured: fall back to the sum of the individual
	// category budgets.
	var total int64
	for _, cat := range categories {
		total += ResolveBudgetForCoverage(cat.Name, cov, budgets).Cents
	}
	return core.Money{Cents: total}
}

func categoryLabel(filter CategoryFilter) string {
	if filter.IsAll() {
		return core.AllCategories
	}
	if main := filter.MainCategories(); len(main) == 1 {
		return filter[0]
	}
	return totalSelectedLabel
}
