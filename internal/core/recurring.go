package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often a recurring expense materializes.
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

var ErrUnknownFrequency = errors.New("unknown frequency")

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Monthly, Quarterly, Yearly:
		return f, nil
	default:
		return "", ErrUnknownFrequency
	}
}

// RecurringExpense is a template (rent, salaries) that produces one Expense per
// due month between StartMonth and EndMonth. LastMonth is the most recent month
// already materialized, empty when none.
type RecurringExpense struct {
	ID          string
	OrgID       string
	BusinessID  string
	Category    string
	Description string
	Amount      decimal.Decimal
	Frequency   Frequency
	StartMonth  string
	EndMonth    string
	LastMonth   string
	Active      bool
}

func (r RecurringExpense) Validate() error {
	if strings.TrimSpace(r.BusinessID) == "" {
		return ErrEmptyBusiness
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := ParseFrequency(string(r.Frequency)); err != nil {
		return err
	}
	start, ok := ParseMonth(r.StartMonth, time.UTC)
	if !ok {
		return ErrInvalidMonth
	}
	if r.EndMonth != "" {
		end, ok := ParseMonth(r.EndMonth, time.UTC)
		if !ok || end.Before(start) {
			return ErrInvalidMonth
		}
	}
	return nil
}

// CoversMonth reports whether month lies within [StartMonth, EndMonth].
func (r RecurringExpense) CoversMonth(month time.Time) bool {
	start, ok := ParseMonth(r.StartMonth, month.Location())
	if !ok || month.Before(start) {
		return false
	}
	if r.EndMonth == "" {
		return true
	}
	end, ok := ParseMonth(r.EndMonth, month.Location())
	return ok && !month.After(end)
}

// Materialize builds the Expense row for month.
func (r RecurringExpense) Materialize(month time.Time) Expense {
	return Expense{
		ID:          r.ExpenseID(month),
		OrgID:       r.OrgID,
		BusinessID:  r.BusinessID,
		Month:       month.Format(MonthLayout),
		Category:    r.Category,
		Description: r.Description,
		Amount:      r.Amount,
	}
}

// ExpenseID is the stable id of the expense materialized for month, so a
// repeated pass over the same month is recognized as a duplicate.
func (r RecurringExpense) ExpenseID(month time.Time) string {
	return "rec-" + r.ID + "-" + month.Format(MonthLayout)
}

// MonthsBetween counts whole calendar months from a to b.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
