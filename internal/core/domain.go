package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MonthLayout is the calendar-month key used by expenses and selected months.
const MonthLayout = "2006-01"

// DayLayout is the calendar-day key used by date ranges and daily points.
const DayLayout = "2006-01-02"

type (
	// Sale is one recorded sale. Pre-aggregated daily entries and per-checkout
	// transactions share this shape; GroupByDay folds both into one row per day.
	Sale struct {
		ID           string
		OrgID        string
		BusinessID   string
		Date         time.Time
		SalesAmount  decimal.Decimal
		ProfitAmount decimal.Decimal
		Note         string
	}

	// Expense is a monthly cost attributed to a business. Month is "YYYY-MM".
	Expense struct {
		ID          string
		OrgID       string
		BusinessID  string
		Month       string
		Category    string
		Description string
		Amount      decimal.Decimal
	}

	// Business is one shop location owned by an organization.
	Business struct {
		ID       string
		OrgID    string
		Name     string
		Location string
	}

	// Records is the in-memory snapshot the aggregator reduces over.
	Records struct {
		Sales    []Sale
		Expenses []Expense
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyBusiness     = errors.New("empty business id")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyCategory     = errors.New("empty category")
	ErrProfitExceedsSale = errors.New("profit exceeds sales amount")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
	ErrNameLength        = errors.New("name too long (max 120 characters)")
)

// ProfitPercentage is derived on read; ProfitAmount is authoritative.
func (s Sale) ProfitPercentage() decimal.Decimal {
	return percentOf(s.ProfitAmount, s.SalesAmount)
}

func (s Sale) Validate() error {
	if strings.TrimSpace(s.BusinessID) == "" {
		return ErrEmptyBusiness
	}
	if s.Date.IsZero() {
		return ErrInvalidDate
	}
	if s.SalesAmount.IsNegative() || s.ProfitAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if s.ProfitAmount.GreaterThan(s.SalesAmount) {
		return ErrProfitExceedsSale
	}
	return nil
}

// Date returns the first instant of the expense month in loc.
func (e Expense) Date(loc *time.Location) (time.Time, bool) {
	return ParseMonth(e.Month, loc)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.BusinessID) == "" {
		return ErrEmptyBusiness
	}
	if _, ok := ParseMonth(e.Month, time.UTC); !ok {
		return ErrInvalidMonth
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLength
	}
	return nil
}

func (b Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if len(b.Name) > 120 {
		return ErrNameLength
	}
	return nil
}

// ParseMonth parses "YYYY-MM" into the first day of that month in loc.
func ParseMonth(s string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(MonthLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDay parses "YYYY-MM-DD" into local midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(DayLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
