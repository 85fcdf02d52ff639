package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary is the persisted one-row-per-business-per-day rollup.
type DailySummary struct {
	OrgID        string
	BusinessID   string
	Day          string // YYYY-MM-DD on the org's calendar
	TotalSales   decimal.Decimal
	TotalProfit  decimal.Decimal
	Transactions int
	UpdatedAt    time.Time
}

// MarginPercent is derived from the stored totals.
func (d DailySummary) MarginPercent() decimal.Decimal {
	return percentOf(d.TotalProfit, d.TotalSales)
}

// SummarizeDay rebuilds the rollup for one business on the calendar day of
// day, in day's location. A day without sales yields a zero summary so stale
// rows get overwritten.
func SummarizeDay(sales []Sale, orgID, businessID string, day time.Time) DailySummary {
	p := dayPeriod(day)
	summary := DailySummary{
		OrgID:      orgID,
		BusinessID: businessID,
		Day:        p.Start.Format(DayLayout),
	}
	for _, point := range GroupByDay(sales, p, FullAccess(), businessID) {
		summary.TotalSales = summary.TotalSales.Add(point.TotalSales)
		summary.TotalProfit = summary.TotalProfit.Add(point.TotalProfit)
	}
	summary.Transactions = len(FilterSales(sales, p, FullAccess(), businessID))
	return summary
}
