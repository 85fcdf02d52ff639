package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency selects the display currency. Stored amounts are always BASE.
type Currency string

const (
	Base      Currency = "BASE"
	Secondary Currency = "SECONDARY"
)

var ErrUnknownCurrency = errors.New("unknown currency")

// ParseCurrency accepts BASE or SECONDARY in any case. Empty selects Base.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case "", Base:
		return Base, nil
	case Secondary:
		return Secondary, nil
	default:
		return "", ErrUnknownCurrency
	}
}

// Convert maps a base amount into the display currency. Only Secondary is
// multiplied; every other value is returned unchanged.
func Convert(amount decimal.Decimal, to Currency, rate decimal.Decimal) decimal.Decimal {
	if to != Secondary {
		return amount
	}
	return amount.Mul(rate)
}

// ConvertTotals converts the monetary fields. MarginPercent is a ratio and is
// left alone.
func ConvertTotals(t Totals, to Currency, rate decimal.Decimal) Totals {
	return Totals{
		TotalSales:    Convert(t.TotalSales, to, rate),
		TotalProfit:   Convert(t.TotalProfit, to, rate),
		TotalExpenses: Convert(t.TotalExpenses, to, rate),
		NetProfit:     Convert(t.NetProfit, to, rate),
		MarginPercent: t.MarginPercent,
	}
}

func ConvertRanking(r Ranking, to Currency, rate decimal.Decimal) Ranking {
	rows := make([]BusinessRow, len(r.Rows))
	for i, row := range r.Rows {
		row.Totals = ConvertTotals(row.Totals, to, rate)
		rows[i] = row
	}
	out := Ranking{Rows: rows}
	if r.RevenueLeader != nil {
		leader := *r.RevenueLeader
		leader.Totals = ConvertTotals(leader.Totals, to, rate)
		out.RevenueLeader = &leader
	}
	if r.MarginLeader != nil {
		leader := *r.MarginLeader
		leader.Totals = ConvertTotals(leader.Totals, to, rate)
		out.MarginLeader = &leader
	}
	return out
}

func ConvertDaily(points []DailyPoint, to Currency, rate decimal.Decimal) []DailyPoint {
	out := make([]DailyPoint, len(points))
	for i, p := range points {
		p.TotalSales = Convert(p.TotalSales, to, rate)
		p.TotalProfit = Convert(p.TotalProfit, to, rate)
		out[i] = p
	}
	return out
}
