package report

import "budgetview/internal/core"

// ResolveBudget returns the applicable budget amount for a category in a
// given year and month. month == 0 asks for the annual figure, which is
// defined as the sum of the twelve monthly resolutions so annual and monthly
// views can never disagree.
//
// For a monthly query the tiers apply in strict order, first match wins:
//
//  1. a budget for that category, year, and an explicit month list
//     containing the month (on overlapping records the first in input
//     order wins, a deterministic tie-break rather than a business rule);
//  2. a budget for that category and year with no month list, read as an
//     annual total and spread as amount/12;
//  3. a year-less, month-less budget for the category, read as a recurring
//     monthly amount;
//  4. otherwise zero.
//
// Category comparison is exact string equality; the ALL_CATEGORIES sentinel
// is an ordinary category name here.
func ResolveBudget(category string, year, month int, budgets []core.Budget) core.Money {
	if month == 0 {
		var total int64
		for m := 1; m <= 12; m++ {
			total += ResolveBudget(category, year, m, budgets).Cents
		}
		return core.Money{Cents: total}
	}

	for _, b := range budgets {
		if b.Category == category && b.Year == year && !b.Months.IsAll() && b.Months.Contains(month) {
			return b.Amount
		}
	}
	for _, b := range budgets {
		if b.Category == category && b.Year == year && b.Months.IsAll() {
			return core.Money{Cents: b.Amount.Cents / 12}
		}
	}
	for _, b := range budgets {
		if b.Category == category && b.Year == 0 && b.Months.IsAll() {
			return b.Amount
		}
	}
	return core.Money{}
}

// ResolveBudgetForCoverage resolves the budget a period stands for: the
// annual figure when the coverage is a whole year, otherwise the sum of the
// covered months' resolutions.
func ResolveBudgetForCoverage(category string, cov Coverage, budgets []core.Budget) core.Money {
	if cov.Months == nil {
		return ResolveBudget(category, cov.Year, 0, budgets)
	}
	var total int64
	for _, m := range cov.Months {
		total += ResolveBudget(category, cov.Year, m, budgets).Cents
	}
	return core.Money{Cents: total}
}
