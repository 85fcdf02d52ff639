package core

import "github.com/shopspring/decimal"

var half = decimal.New(5, -1)

// TrendValue is a rounded percentage change. Value is always non-negative;
// direction lives in IsUp.
type TrendValue struct {
	Value int64
	IsUp  bool
}

// Trends compares the headline totals of two periods. A nil field means the
// previous value was not positive and no comparison is shown.
type Trends struct {
	Sales    *TrendValue
	Profit   *TrendValue
	Expenses *TrendValue
	Net      *TrendValue
}

// Trend returns the percentage change from previous to current rounded to a
// whole number, or nil when previous is zero or negative.
// Halves round toward positive infinity, so -2.5 becomes -2 and 2.5 becomes 3.
func Trend(current, previous decimal.Decimal) *TrendValue {
	if !previous.IsPositive() {
		return nil
	}
	pct := current.Sub(previous).Div(previous).Mul(hundred)
	rounded := pct.Add(half).Floor()
	return &TrendValue{
		Value: rounded.Abs().IntPart(),
		IsUp:  current.GreaterThanOrEqual(previous),
	}
}

// CompareTotals builds the trend set for a dashboard.
func CompareTotals(current, previous Totals) Trends {
	return Trends{
		Sales:    Trend(current.TotalSales, previous.TotalSales),
		Profit:   Trend(current.TotalProfit, previous.TotalProfit),
		Expenses: Trend(current.TotalExpenses, previous.TotalExpenses),
		Net:      Trend(current.NetProfit, previous.NetProfit),
	}
}
