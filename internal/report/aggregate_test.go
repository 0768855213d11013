package report

import (
	"testing"

	"budgetview/internal/core"
)

func tx(date core.Date, cents int64, category, subcategory string) core.Transaction {
	return core.Transaction{
		Date:        date,
		Description: "tx",
		Amount:      money(cents),
		Category:    category,
		Subcategory: subcategory,
	}
}

func TestAggregateEmpty(t *testing.T) {
	for _, g := range []core.Granularity{core.Weekly, core.Monthly, core.Quarterly, core.HalfYearly, core.Yearly} {
		if got := Aggregate(nil, g, nil); len(got) != 0 {
			t.Fatalf("%s: expected empty result, got %v", g, got)
		}
	}
}

func TestAggregateMonthly(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2024, 3, 15), -5000, "Food", "Groceries"),
		tx(core.NewDate(2024, 3, 20), -3000, "Food", "Groceries"),
		tx(core.NewDate(2024, 3, 25), -1000, "Food", "Restaurants"),
		tx(core.NewDate(2024, 4, 1), -2000, "Food", "Groceries"),
		tx(core.NewDate(2024, 3, 2), -4000, "Transport", ""),
		tx(core.NewDate(2024, 3, 28), 250000, "Income", ""), // income, excluded
	}
	got := Aggregate(txs, core.Monthly, nil)
	want := []PeriodEntry{
		{Period: "2024-03", Category: "Food", Subcategory: "Groceries", TotalCost: money(8000)},
		{Period: "2024-03", Category: "Food", Subcategory: "Restaurants", TotalCost: money(1000)},
		{Period: "2024-03", Category: "Transport", TotalCost: money(4000)},
		{Period: "2024-04", Category: "Food", Subcategory: "Groceries", TotalCost: money(2000)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAggregatePreservesTotalPerCategory(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2024, 1, 1), -100, "Food", "A"),
		tx(core.NewDate(2024, 2, 2), -250, "Food", "B"),
		tx(core.NewDate(2024, 7, 3), -400, "Food", "A"),
		tx(core.NewDate(2024, 8, 4), -75, "Transport", ""),
		tx(core.NewDate(2024, 8, 5), 999, "Food", "A"), // income, not a cost
	}
	var wantFood int64
	for _, x := range txs {
		if x.Category == "Food" && x.IsExpense() {
			wantFood += x.Magnitude().Cents
		}
	}
	for _, g := range []core.Granularity{core.Weekly, core.Monthly, core.Quarterly, core.HalfYearly, core.Yearly} {
		var sum int64
		for _, e := range Aggregate(txs, g, nil) {
			if e.Category == "Food" {
				sum += e.TotalCost.Cents
			}
		}
		if sum != wantFood {
			t.Fatalf("%s: category total %d, want %d", g, sum, wantFood)
		}
	}
}

func TestAggregateDeterministic(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2024, 3, 1), -100, "B", "y"),
		tx(core.NewDate(2024, 3, 2), -200, "A", "z"),
		tx(core.NewDate(2024, 2, 3), -300, "A", "x"),
	}
	first := Aggregate(txs, core.Monthly, nil)
	for i := 0; i < 5; i++ {
		again := Aggregate(txs, core.Monthly, nil)
		if len(again) != len(first) {
			t.Fatalf("run %d: length changed", i)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d: entry %d differs: %+v != %+v", i, j, again[j], first[j])
			}
		}
	}
	// Sorted by period then category.
	if first[0].Period != "2024-02" || first[1].Category != "A" || first[2].Category != "B" {
		t.Fatalf("unexpected ordering: %+v", first)
	}
}

func TestCategoryFilter(t *testing.T) {
	food := tx(core.NewDate(2024, 1, 1), -100, "Food", "Groceries")
	transport := tx(core.NewDate(2024, 1, 1), -100, "Transport", "Bus")

	cases := []struct {
		name   string
		filter CategoryFilter
		tx     core.Transaction
		want   bool
	}{
		{"empty matches all", nil, food, true},
		{"sentinel matches all", CategoryFilter{core.AllCategories}, transport, true},
		{"category match", CategoryFilter{"Food"}, food, true},
		{"category mismatch", CategoryFilter{"Food"}, transport, false},
		{"subcategory match", CategoryFilter{"Food:Groceries"}, food, true},
		{"subcategory mismatch", CategoryFilter{"Food:Restaurants"}, food, false},
		{"multi entry", CategoryFilter{"Transport", "Food:Restaurants"}, transport, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(tc.tx); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCategoryFilterMainCategories(t *testing.T) {
	f := CategoryFilter{"Food:Groceries", "Food:Restaurants", "Transport", "Food"}
	got := f.MainCategories()
	want := []string{"Food", "Transport"}
	if len(got) != len(want) {
		t.Fatalf("MainCategories = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MainCategories = %v, want %v", got, want)
		}
	}
}

func TestAggregateByCategory(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2024, 1, 1), -100, "Food", "A"),
		tx(core.NewDate(2024, 5, 1), -200, "Food", "A"),
		tx(core.NewDate(2024, 6, 1), -300, "Food", "B"),
		tx(core.NewDate(2024, 6, 2), 400, "Food", "A"),
	}
	got := AggregateByCategory(txs, nil)
	want := []CategoryCost{
		{Category: "Food", Subcategory: "A", TotalCost: money(300)},
		{Category: "Food", Subcategory: "B", TotalCost: money(300)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTotals(t *testing.T) {
	txs := []core.Transaction{
		tx(core.NewDate(2024, 1, 1), 500000, "Income", ""),
		tx(core.NewDate(2024, 1, 5), -120000, "Rent", ""),
		tx(core.NewDate(2024, 1, 9), -30000, "Food", ""),
	}
	income, expenses, net := Totals(txs)
	if income.Cents != 500000 {
		t.Fatalf("income = %d, want 500000", income.Cents)
	}
	if expenses.Cents != 150000 {
		t.Fatalf("expenses = %d, want 150000", expenses.Cents)
	}
	if net.Cents != 350000 {
		t.Fatalf("net = %d, want 350000", net.Cents)
	}
}
