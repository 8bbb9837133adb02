// Package models provides the data structures used throughout the application.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for every transaction date on the wire.
const DateLayout = "2006-01-02"

// Transaction is the canonical form of a movement consumed by the sync core.
// Amount is always expressed in major currency units, negative for expenses.
type Transaction struct {
	Date      time.Time
	Amount    decimal.Decimal
	Payee     string
	Reference string
	Notes     string

	// Source names the collaborator that produced the movement ("aggregator", "email", ...).
	Source string

	// CategoryID is the target system category, 0 when uncategorized.
	CategoryID int64

	// Invalid is set by a source that could not convert the movement. Such a
	// transaction only carries the fields that identify it and is never inserted.
	Invalid error
}

// DateString returns the transaction date formatted as YYYY-MM-DD.
func (t Transaction) DateString() string {
	if t.Date.IsZero() {
		return ""
	}
	return t.Date.Format(DateLayout)
}

// AmountString returns the amount with exactly two decimals.
func (t Transaction) AmountString() string {
	return t.Amount.StringFixed(2)
}

// IsExpense reports whether the transaction moves money out of the account.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// String renders a short human readable form, used in logs and error messages.
func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %q", t.DateString(), t.AmountString(), t.Payee)
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(value string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d, nil
}

// TruncateToDate drops the time component of t, keeping the calendar day in UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type transactionJSON struct {
	Date       string          `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Payee      string          `json:"payee"`
	Reference  string          `json:"reference,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Source     string          `json:"source,omitempty"`
	CategoryID int64           `json:"category_id,omitempty"`
}

// MarshalJSON writes the date as YYYY-MM-DD.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Date:       t.DateString(),
		Amount:     t.Amount,
		Payee:      t.Payee,
		Reference:  t.Reference,
		Notes:      t.Notes,
		Source:     t.Source,
		CategoryID: t.CategoryID,
	})
}

// UnmarshalJSON accepts the form written by MarshalJSON.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var date time.Time
	if raw.Date != "" {
		d, err := ParseDate(raw.Date)
		if err != nil {
			return err
		}
		date = d
	}
	*t = Transaction{
		Date:       date,
		Amount:     raw.Amount,
		Payee:      raw.Payee,
		Reference:  raw.Reference,
		Notes:      raw.Notes,
		Source:     raw.Source,
		CategoryID: raw.CategoryID,
	}
	return nil
}
