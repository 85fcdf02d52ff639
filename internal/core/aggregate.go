package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Scope reports whether the current actor may see a business. It is
	// supplied by the caller; a nil Scope sees nothing.
	Scope func(businessID string) bool

	// Totals is the reduction of a filtered record set.
	Totals struct {
		TotalSales    decimal.Decimal
		TotalProfit   decimal.Decimal
		TotalExpenses decimal.Decimal
		NetProfit     decimal.Decimal
		MarginPercent decimal.Decimal
	}

	// BusinessRow is one business's totals inside a Ranking.
	BusinessRow struct {
		BusinessID string
		Name       string
		Location   string
		Totals
	}

	// Ranking orders businesses by revenue and names the revenue and margin
	// leaders. Leaders are nil when no business is visible.
	Ranking struct {
		Rows          []BusinessRow
		RevenueLeader *BusinessRow
		MarginLeader  *BusinessRow
	}

	// DailyPoint is the sum of sales on one local calendar day.
	DailyPoint struct {
		Date        time.Time
		DateLabel   string
		TotalSales  decimal.Decimal
		TotalProfit decimal.Decimal
	}
)

// FullAccess sees every business.
func FullAccess() Scope {
	return func(string) bool { return true }
}

// AllowList sees only the listed businesses.
func AllowList(ids ...string) Scope {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := allowed[id]
		return ok
	}
}

// Allows reports whether the scope admits businessID. A nil Scope admits nothing.
func (s Scope) Allows(businessID string) bool {
	return s != nil && s(businessID)
}

// MatchesBusiness applies a business filter; empty and "all" match everything.
func MatchesBusiness(filter, businessID string) bool {
	return filter == "" || filter == AllBusinesses || filter == businessID
}

// FilterSales keeps the sales inside p that the scope and business filter admit.
// Input order is preserved.
func FilterSales(sales []Sale, p Period, scope Scope, businessFilter string) []Sale {
	out := make([]Sale, 0, len(sales))
	for _, s := range sales {
		if !MatchesBusiness(businessFilter, s.BusinessID) || !p.Contains(s.Date) || !scope.Allows(s.BusinessID) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FilterExpenses keeps the expenses whose month start falls inside p.
func FilterExpenses(expenses []Expense, p Period, scope Scope, businessFilter string) []Expense {
	loc := p.Location()
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if !MatchesBusiness(businessFilter, e.BusinessID) {
			continue
		}
		d, ok := e.Date(loc)
		if !ok || !p.Contains(d) || !scope.Allows(e.BusinessID) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Aggregate reduces the records inside p to totals. Empty input yields zero
// totals with a zero margin.
func Aggregate(recs Records, p Period, scope Scope, businessFilter string) Totals {
	var sales, profit, expenses decimal.Decimal
	for _, s := range FilterSales(recs.Sales, p, scope, businessFilter) {
		sales = sales.Add(s.SalesAmount)
		profit = profit.Add(s.ProfitAmount)
	}
	for _, e := range FilterExpenses(recs.Expenses, p, scope, businessFilter) {
		expenses = expenses.Add(e.Amount)
	}
	return newTotals(sales, profit, expenses)
}

func newTotals(sales, profit, expenses decimal.Decimal) Totals {
	return Totals{
		TotalSales:    sales,
		TotalProfit:   profit,
		TotalExpenses: expenses,
		NetProfit:     profit.Sub(expenses),
		MarginPercent: percentOf(profit, sales),
	}
}

// GroupByBusiness computes per-business totals for every visible business in
// the list, sorted by revenue descending. Ties keep the list order.
func GroupByBusiness(recs Records, businesses []Business, p Period, scope Scope, businessFilter string) Ranking {
	type acc struct{ sales, profit, expenses decimal.Decimal }
	sums := make(map[string]*acc, len(businesses))
	rows := make([]BusinessRow, 0, len(businesses))
	for _, b := range businesses {
		if !MatchesBusiness(businessFilter, b.ID) || !scope.Allows(b.ID) {
			continue
		}
		if _, dup := sums[b.ID]; dup {
			continue
		}
		sums[b.ID] = &acc{}
		rows = append(rows, BusinessRow{BusinessID: b.ID, Name: b.Name, Location: b.Location})
	}

	for _, s := range FilterSales(recs.Sales, p, scope, businessFilter) {
		if a, ok := sums[s.BusinessID]; ok {
			a.sales = a.sales.Add(s.SalesAmount)
			a.profit = a.profit.Add(s.ProfitAmount)
		}
	}
	for _, e := range FilterExpenses(recs.Expenses, p, scope, businessFilter) {
		if a, ok := sums[e.BusinessID]; ok {
			a.expenses = a.expenses.Add(e.Amount)
		}
	}

	for i := range rows {
		a := sums[rows[i].BusinessID]
		rows[i].Totals = newTotals(a.sales, a.profit, a.expenses)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalSales.GreaterThan(rows[j].TotalSales)
	})

	ranking := Ranking{Rows: rows}
	if len(rows) == 0 {
		return ranking
	}

	revenueLeader := rows[0]
	ranking.RevenueLeader = &revenueLeader

	byMargin := make([]BusinessRow, len(rows))
	copy(byMargin, rows)
	sort.SliceStable(byMargin, func(i, j int) bool {
		return byMargin[i].MarginPercent.GreaterThan(byMargin[j].MarginPercent)
	})
	marginLeader := byMargin[0]
	ranking.MarginLeader = &marginLeader

	return ranking
}

// GroupByDay sums sales per local calendar day of p's location, ascending by
// date. Several transactions on one day collapse into one point; a single
// pre-aggregated row per day passes through unchanged.
func GroupByDay(sales []Sale, p Period, scope Scope, businessFilter string) []DailyPoint {
	loc := p.Location()
	byDay := make(map[string]*DailyPoint)
	for _, s := range FilterSales(sales, p, scope, businessFilter) {
		local := s.Date.In(loc)
		label := local.Format(DayLayout)
		point, ok := byDay[label]
		if !ok {
			point = &DailyPoint{Date: StartOfDay(local), DateLabel: label}
			byDay[label] = point
		}
		point.TotalSales = point.TotalSales.Add(s.SalesAmount)
		point.TotalProfit = point.TotalProfit.Add(s.ProfitAmount)
	}

	out := make([]DailyPoint, 0, len(byDay))
	for _, point := range byDay {
		out = append(out, *point)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateLabel < out[j].DateLabel })
	return out
}
