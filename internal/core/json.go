package core

import (
	"encoding/json"
	"fmt"
)

// Wire shapes for the JSON API. Absent budget fields are treated as their
// "no constraint" sentinel rather than rejected.

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

type transactionJSON struct {
	ID            int64  `json:"id"`
	Date          Date   `json:"date"`
	Description   string `json:"description"`
	Amount        Money  `json:"amount"`
	PaymentSource string `json:"payment_source"`
	Category      string `json:"category"`
	Subcategory   string `json:"subcategory"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON(t))
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w transactionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Transaction(w)
	return nil
}

type budgetJSON struct {
	Category string   `json:"category"`
	Amount   Money    `json:"amount"`
	Year     *int     `json:"year"`
	Months   MonthSet `json:"months"`
}

func (b Budget) MarshalJSON() ([]byte, error) {
	w := budgetJSON{Category: b.Category, Amount: b.Amount, Months: b.Months}
	if b.Year != 0 {
		y := b.Year
		w.Year = &y
	}
	return json.Marshal(w)
}

func (b *Budget) UnmarshalJSON(data []byte) error {
	var w budgetJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.Category = w.Category
	b.Amount = w.Amount
	b.Months = w.Months
	b.Year = 0
	if w.Year != nil {
		b.Year = *w.Year
	}
	return nil
}
