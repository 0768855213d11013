package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly     Granularity = "Weekly"
	Monthly    Granularity = "Monthly"
	Quarterly  Granularity = "Quarterly"
	HalfYearly Granularity = "Half-Yearly"
	Yearly     Granularity = "Yearly"
)

// AllCategories is the sentinel category name callers pass to request an
// aggregate figure across every category. Compared by exact string equality.
const AllCategories = "ALL_CATEGORIES"

type (
	// Granularity is the time-bucket size used to group transactions.
	Granularity string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single ledger entry. Amount is signed:
	// negative = expense, non-negative = income.
	Transaction struct {
		ID            int64
		Date          Date
		Description   string
		Amount        Money
		PaymentSource string
		Category      string
		Subcategory   string
	}

	// Budget is a spending cap for a category. Year == 0 means the budget
	// recurs every year; Months narrows it to specific months of that year.
	Budget struct {
		Category string
		Amount   Money
		Year     int
		Months   MonthSet
	}

	// Category is a user-defined top-level classification with optional
	// subcategories.
	Category struct {
		Name          string   `json:"name"`
		Subcategories []string `json:"subcategories"`
	}

	// Settings is the per-profile configuration payload: the category tree,
	// the budget records, and the display currency.
	Settings struct {
		Categories []Category `json:"categories"`
		Budgets    []Budget   `json:"budgets"`
		Currency   string     `json:"currency"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidGranularity = errors.New("invalid time granularity")
	ErrEmptyDescription   = errors.New("empty description")
	ErrLongDescription    = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory      = errors.New("empty category")
)

// ParseGranularity maps the wire value of time_granularity to a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.TrimSpace(s)) {
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	case HalfYearly:
		return HalfYearly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", ErrInvalidGranularity
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// IsExpense reports whether the transaction is a cost (negative amount).
// Non-negative amounts are income and are excluded from cost aggregation.
func (t Transaction) IsExpense() bool {
	return t.Amount.Cents < 0
}

// Magnitude returns the absolute value of the transaction amount.
func (t Transaction) Magnitude() Money {
	if t.Amount.Cents < 0 {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrLongDescription
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

// BudgetKind classifies the three budget shapes the resolver distinguishes.
type BudgetKind int

const (
	// BudgetDefault recurs monthly in any year not otherwise covered.
	BudgetDefault BudgetKind = iota
	// BudgetAnnual is one amount for a whole year, spread as amount/12.
	BudgetAnnual
	// BudgetMonths applies as-is to each listed month of its year.
	BudgetMonths
)

// Kind returns the shape of the budget record.
func (b Budget) Kind() BudgetKind {
	switch {
	case b.Year == 0:
		return BudgetDefault
	case b.Months.IsAll():
		return BudgetAnnual
	default:
		return BudgetMonths
	}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if b.Year == 0 && !b.Months.IsAll() {
		// A recurring default cannot name specific months.
		return ErrInvalidMonth
	}
	return nil
}
