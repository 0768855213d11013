// Package report implements the budget reconciliation engine: grouping of
// transactions into period/category totals, tiered budget resolution, and the
// budget-vs-actual rows the reporting API serves. Everything in this package
// is a pure function of its inputs.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"budgetview/internal/core"
)

// Period labels are lexicographically time-ordered within a granularity:
//
//	Weekly      2024-W07   (ISO-8601 week-year and week number)
//	Monthly     2024-02
//	Quarterly   2024-Q1    (quarter = ceil(month/3))
//	Half-Yearly 2024-H1    (half = ceil(month/6))
//	Yearly      2024
//
// Weeks use the ISO week calendar: a week runs Monday through Sunday and
// belongs to the year containing its Thursday.

// PeriodKey returns the period label for a date at the given granularity.
func PeriodKey(d core.Date, g core.Granularity) string {
	switch g {
	case core.Weekly:
		y, w := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case core.Monthly:
		return fmt.Sprintf("%04d-%02d", d.Year(), d.Month())
	case core.Quarterly:
		return fmt.Sprintf("%04d-Q%d", d.Year(), (d.Month()-1)/3+1)
	case core.HalfYearly:
		return fmt.Sprintf("%04d-H%d", d.Year(), (d.Month()-1)/6+1)
	case core.Yearly:
		return fmt.Sprintf("%04d", d.Year())
	}
	return ""
}

// PeriodsEndingAt returns the n consecutive period labels ending at the
// period containing anchor, in chronological order.
func PeriodsEndingAt(anchor core.Date, g core.Granularity, n int) []string {
	if n <= 0 {
		return nil
	}
	labels := make([]string, n)
	cur := periodStart(anchor.Time, g)
	for i := n - 1; i >= 0; i-- {
		labels[i] = PeriodKey(core.Date{Time: cur}, g)
		cur = previousPeriodStart(cur, g)
	}
	return labels
}

// periodStart normalizes a date to the first day of its period.
func periodStart(t time.Time, g core.Granularity) time.Time {
	y, m, _ := t.Date()
	switch g {
	case core.Weekly:
		// Back up to Monday.
		offset := (int(t.Weekday()) + 6) % 7
		t = t.AddDate(0, 0, -offset)
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case core.Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case core.Quarterly:
		first := time.Month((int(m)-1)/3*3 + 1)
		return time.Date(y, first, 1, 0, 0, 0, 0, time.UTC)
	case core.HalfYearly:
		first := time.January
		if m > time.June {
			first = time.July
		}
		return time.Date(y, first, 1, 0, 0, 0, 0, time.UTC)
	case core.Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

func previousPeriodStart(start time.Time, g core.Granularity) time.Time {
	switch g {
	case core.Weekly:
		return start.AddDate(0, 0, -7)
	case core.Monthly:
		return start.AddDate(0, -1, 0)
	case core.Quarterly:
		return start.AddDate(0, -3, 0)
	case core.HalfYearly:
		return start.AddDate(0, -6, 0)
	case core.Yearly:
		return start.AddDate(-1, 0, 0)
	}
	return start
}

// Coverage is the calendar span a period label stands for when resolving
// budgets. Months == nil means the whole year (annual budget query).
type Coverage struct {
	Year   int
	Months []int
}

// ParsePeriod maps a period label back to its budget coverage:
// a monthly label covers its month, quarterly and half-yearly labels cover
// their months, a yearly label covers the whole year, and a weekly label
// covers the calendar month containing the week's Monday.
func ParsePeriod(label string, g core.Granularity) (Coverage, error) {
	switch g {
	case core.Weekly:
		parts := strings.SplitN(label, "-W", 2)
		if len(parts) != 2 {
			return Coverage{}, fmt.Errorf("parse weekly period %q: %w", label, core.ErrInvalidDate)
		}
		year, err1 := strconv.Atoi(parts[0])
		week, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || week < 1 || week > 53 {
			return Coverage{}, fmt.Errorf("parse weekly period %q: %w", label, core.ErrInvalidDate)
		}
		monday := isoWeekMonday(year, week)
		return Coverage{Year: monday.Year(), Months: []int{int(monday.Month())}}, nil
	case core.Monthly:
		t, err := time.Parse("2006-01", label)
		if err != nil {
			return Coverage{}, fmt.Errorf("parse monthly period %q: %w", label, core.ErrInvalidDate)
		}
		return Coverage{Year: t.Year(), Months: []int{int(t.Month())}}, nil
	case core.Quarterly:
		var year, q int
		if _, err := fmt.Sscanf(label, "%d-Q%d", &year, &q); err != nil || q < 1 || q > 4 {
			return Coverage{}, fmt.Errorf("parse quarterly period %q: %w", label, core.ErrInvalidDate)
		}
		first := (q-1)*3 + 1
		return Coverage{Year: year, Months: []int{first, first + 1, first + 2}}, nil
	case core.HalfYearly:
		var year, h int
		if _, err := fmt.Sscanf(label, "%d-H%d", &year, &h); err != nil || h < 1 || h > 2 {
			return Coverage{}, fmt.Errorf("parse half-yearly period %q: %w", label, core.ErrInvalidDate)
		}
		first := (h-1)*6 + 1
		months := make([]int, 6)
		for i := range months {
			months[i] = first + i
		}
		return Coverage{Year: year, Months: months}, nil
	case core.Yearly:
		year, err := strconv.Atoi(label)
		if err != nil {
			return Coverage{}, fmt.Errorf("parse yearly period %q: %w", label, core.ErrInvalidDate)
		}
		return Coverage{Year: year}, nil
	}
	return Coverage{}, core.ErrInvalidGranularity
}

// isoWeekMonday returns the Monday of the given ISO week. January 4th is
// always inside week 1 of its ISO year.
func isoWeekMonday(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	week1Monday := jan4.AddDate(0, 0, -offset)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}
