package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bizdash/internal/core"
	"bizdash/internal/fxrate"
	"bizdash/internal/log"
	"bizdash/internal/ports"
	"bizdash/internal/services"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeValidation(w http.ResponseWriter, fe fieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: fe})
}

// writeDecodeError answers a failed decodeBody call.
func writeDecodeError(w http.ResponseWriter, err error) {
	var fe fieldErrors
	if errors.As(err, &fe) {
		writeValidation(w, fe)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// writeServiceError maps service sentinels to status codes. Anything
// unrecognized is logged and hidden behind a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, errBadQuery):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ports.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, fxrate.ErrRateUnavailable):
		writeError(w, http.StatusServiceUnavailable, "exchange rate unavailable")
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Money fields below are fixed two-decimal strings.

type totalsDTO struct {
	TotalSales    string `json:"total_sales"`
	TotalProfit   string `json:"total_profit"`
	TotalExpenses string `json:"total_expenses"`
	NetProfit     string `json:"net_profit"`
	MarginPercent string `json:"margin_percent"`
}

func newTotalsDTO(t core.Totals) totalsDTO {
	return totalsDTO{
		TotalSales:    core.FormatAmount(t.TotalSales),
		TotalProfit:   core.FormatAmount(t.TotalProfit),
		TotalExpenses: core.FormatAmount(t.TotalExpenses),
		NetProfit:     core.FormatAmount(t.NetProfit),
		MarginPercent: core.FormatAmount(t.MarginPercent),
	}
}

type periodDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func newPeriodDTO(p core.Period) periodDTO {
	return periodDTO{Start: p.Start, End: p.End}
}

type trendDTO struct {
	Value int64 `json:"value"`
	IsUp  bool  `json:"is_up"`
}

func newTrendDTO(t *core.TrendValue) *trendDTO {
	if t == nil {
		return nil
	}
	return &trendDTO{Value: t.Value, IsUp: t.IsUp}
}

type trendsDTO struct {
	Sales    *trendDTO `json:"sales,omitempty"`
	Profit   *trendDTO `json:"profit,omitempty"`
	Expenses *trendDTO `json:"expenses,omitempty"`
	Net      *trendDTO `json:"net,omitempty"`
}

type businessRowDTO struct {
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
	Location   string `json:"location,omitempty"`
	totalsDTO
}

func newBusinessRowDTO(row *core.BusinessRow) *businessRowDTO {
	if row == nil {
		return nil
	}
	return &businessRowDTO{
		BusinessID: row.BusinessID,
		Name:       row.Name,
		Location:   row.Location,
		totalsDTO:  newTotalsDTO(row.Totals),
	}
}

type rankingDTO struct {
	Rows          []businessRowDTO `json:"rows"`
	RevenueLeader *businessRowDTO  `json:"revenue_leader"`
	MarginLeader  *businessRowDTO  `json:"margin_leader"`
}

func newRankingDTO(r core.Ranking) rankingDTO {
	out := rankingDTO{
		Rows:          make([]businessRowDTO, 0, len(r.Rows)),
		RevenueLeader: newBusinessRowDTO(r.RevenueLeader),
		MarginLeader:  newBusinessRowDTO(r.MarginLeader),
	}
	for i := range r.Rows {
		out.Rows = append(out.Rows, *newBusinessRowDTO(&r.Rows[i]))
	}
	return out
}

type dailyPointDTO struct {
	Date        string `json:"date"`
	DateLabel   string `json:"date_label"`
	TotalSales  string `json:"total_sales"`
	TotalProfit string `json:"total_profit"`
}

type dashboardDTO struct {
	Timeframe      core.Timeframe  `json:"timeframe"`
	Period         periodDTO       `json:"period"`
	PreviousPeriod *periodDTO      `json:"previous_period,omitempty"`
	Currency       core.Currency   `json:"currency"`
	Rate           string          `json:"rate"`
	Totals         totalsDTO       `json:"totals"`
	PreviousTotals *totalsDTO      `json:"previous_totals,omitempty"`
	Trends         trendsDTO       `json:"trends"`
	Ranking        rankingDTO      `json:"ranking"`
	Daily          []dailyPointDTO `json:"daily"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

func newDashboardDTO(d services.Dashboard) dashboardDTO {
	out := dashboardDTO{
		Timeframe: d.Timeframe,
		Period:    newPeriodDTO(d.Period),
		Currency:  d.Currency,
		Rate:      d.Rate.String(),
		Totals:    newTotalsDTO(d.Totals),
		Trends: trendsDTO{
			Sales:    newTrendDTO(d.Trends.Sales),
			Profit:   newTrendDTO(d.Trends.Profit),
			Expenses: newTrendDTO(d.Trends.Expenses),
			Net:      newTrendDTO(d.Trends.Net),
		},
		Ranking:     newRankingDTO(d.Ranking),
		Daily:       make([]dailyPointDTO, 0, len(d.Daily)),
		GeneratedAt: d.GeneratedAt,
	}
	if d.Comparable {
		prev := newPeriodDTO(d.PreviousPeriod)
		prevTotals := newTotalsDTO(d.PreviousTotals)
		out.PreviousPeriod = &prev
		out.PreviousTotals = &prevTotals
	}
	for _, p := range d.Daily {
		out.Daily = append(out.Daily, dailyPointDTO{
			Date:        p.Date.Format(core.DayLayout),
			DateLabel:   p.DateLabel,
			TotalSales:  core.FormatAmount(p.TotalSales),
			TotalProfit: core.FormatAmount(p.TotalProfit),
		})
	}
	return out
}

type saleDTO struct {
	ID               string `json:"id"`
	BusinessID       string `json:"business_id"`
	Date             string `json:"date"`
	SalesAmount      string `json:"sales_amount"`
	ProfitAmount     string `json:"profit_amount"`
	ProfitPercentage string `json:"profit_percentage"`
	Note             string `json:"note,omitempty"`
}

func newSaleDTO(s core.Sale, loc *time.Location) saleDTO {
	return saleDTO{
		ID:               s.ID,
		BusinessID:       s.BusinessID,
		Date:             s.Date.In(loc).Format(core.DayLayout),
		SalesAmount:      core.FormatAmount(s.SalesAmount),
		ProfitAmount:     core.FormatAmount(s.ProfitAmount),
		ProfitPercentage: core.FormatAmount(s.ProfitPercentage()),
		Note:             s.Note,
	}
}

type expenseDTO struct {
	ID          string `json:"id"`
	BusinessID  string `json:"business_id"`
	Month       string `json:"month"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
}

func newExpenseDTO(e core.Expense) expenseDTO {
	return expenseDTO{
		ID:          e.ID,
		BusinessID:  e.BusinessID,
		Month:       e.Month,
		Category:    e.Category,
		Description: e.Description,
		Amount:      core.FormatAmount(e.Amount),
	}
}

type businessDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

func newBusinessDTO(b core.Business) businessDTO {
	return businessDTO{ID: b.ID, Name: b.Name, Location: b.Location}
}

type cashShiftDTO struct {
	ID          string     `json:"id"`
	BusinessID  string     `json:"business_id"`
	Cashier     string     `json:"cashier,omitempty"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Expected    string     `json:"expected"`
	CountedCash string     `json:"counted_cash"`
	Variance    string     `json:"variance"`
	Status      string     `json:"status"`
}

func newCashShiftDTO(s core.CashShift) cashShiftDTO {
	out := cashShiftDTO{
		ID:          s.ID,
		BusinessID:  s.BusinessID,
		Cashier:     s.Cashier,
		OpenedAt:    s.OpenedAt,
		Expected:    core.FormatAmount(s.Expected()),
		CountedCash: core.FormatAmount(s.CountedCash),
		Variance:    core.FormatAmount(s.Variance()),
		Status:      string(s.Status()),
	}
	if !s.ClosedAt.IsZero() {
		closed := s.ClosedAt
		out.ClosedAt = &closed
	}
	return out
}

type shiftSummaryDTO struct {
	BusinessID    string `json:"business_id"`
	Shifts        int    `json:"shifts"`
	ShortShifts   int    `json:"short_shifts"`
	OverShifts    int    `json:"over_shifts"`
	TotalExpected string `json:"total_expected"`
	TotalCounted  string `json:"total_counted"`
	NetVariance   string `json:"net_variance"`
}

func newShiftSummaryDTO(s core.ShiftSummary) shiftSummaryDTO {
	return shiftSummaryDTO{
		BusinessID:    s.BusinessID,
		Shifts:        s.Shifts,
		ShortShifts:   s.ShortShifts,
		OverShifts:    s.OverShifts,
		TotalExpected: core.FormatAmount(s.TotalExpected),
		TotalCounted:  core.FormatAmount(s.TotalCounted),
		NetVariance:   core.FormatAmount(s.NetVariance),
	}
}

type movementDTO struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Item       string    `json:"item"`
	Kind       string    `json:"kind"`
	Quantity   string    `json:"quantity"`
	Delta      string    `json:"delta"`
	UnitCost   string    `json:"unit_cost"`
	At         time.Time `json:"at"`
	Note       string    `json:"note,omitempty"`
}

func newMovementDTO(m core.InventoryMovement) movementDTO {
	return movementDTO{
		ID:         m.ID,
		BusinessID: m.BusinessID,
		Item:       m.Item,
		Kind:       string(m.Kind),
		Quantity:   m.Quantity.String(),
		Delta:      m.Delta().String(),
		UnitCost:   core.FormatAmount(m.UnitCost),
		At:         m.At,
		Note:       m.Note,
	}
}

type stockDTO struct {
	BusinessID string    `json:"business_id"`
	Item       string    `json:"item"`
	OnHand     string    `json:"on_hand"`
	LastMoved  time.Time `json:"last_moved"`
}

type recurringDTO struct {
	ID          string `json:"id"`
	BusinessID  string `json:"business_id"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount"`
	Frequency   string `json:"frequency"`
	StartMonth  string `json:"start_month"`
	EndMonth    string `json:"end_month,omitempty"`
	Active      bool   `json:"active"`
}

func newRecurringDTO(r core.RecurringExpense) recurringDTO {
	return recurringDTO{
		ID:          r.ID,
		BusinessID:  r.BusinessID,
		Category:    r.Category,
		Description: r.Description,
		Amount:      core.FormatAmount(r.Amount),
		Frequency:   string(r.Frequency),
		StartMonth:  r.StartMonth,
		EndMonth:    r.EndMonth,
		Active:      r.Active,
	}
}

type dailySummaryDTO struct {
	BusinessID    string    `json:"business_id"`
	Day           string    `json:"day"`
	TotalSales    string    `json:"total_sales"`
	TotalProfit   string    `json:"total_profit"`
	MarginPercent string    `json:"margin_percent"`
	Transactions  int       `json:"transactions"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newDailySummaryDTO(d core.DailySummary) dailySummaryDTO {
	return dailySummaryDTO{
		BusinessID:    d.BusinessID,
		Day:           d.Day,
		TotalSales:    core.FormatAmount(d.TotalSales),
		TotalProfit:   core.FormatAmount(d.TotalProfit),
		MarginPercent: core.FormatAmount(d.MarginPercent()),
		Transactions:  d.Transactions,
		UpdatedAt:     d.UpdatedAt,
	}
}

type tenantDTO struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Tier      string     `json:"tier"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func newTenantDTO(t core.Tenant) tenantDTO {
	out := tenantDTO{ID: t.ID, Name: t.Name, Tier: string(t.Tier), Active: t.Active}
	if !t.ExpiresAt.IsZero() {
		exp := t.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

type mrrBucketDTO struct {
	Tier    string `json:"tier"`
	Price   string `json:"price"`
	Tenants int    `json:"tenants"`
	MRR     string `json:"mrr"`
}

type mrrDTO struct {
	Buckets       []mrrBucketDTO `json:"buckets"`
	Total         string         `json:"total"`
	ActiveTenants int            `json:"active_tenants"`
}

func newMRRDTO(r core.MRRReport) mrrDTO {
	out := mrrDTO{
		Buckets:       make([]mrrBucketDTO, 0, len(r.Buckets)),
		Total:         core.FormatAmount(r.Total),
		ActiveTenants: r.ActiveTenants,
	}
	for _, b := range r.Buckets {
		out.Buckets = append(out.Buckets, mrrBucketDTO{
			Tier:    string(b.Tier),
			Price:   core.FormatAmount(b.Tier.MonthlyPrice()),
			Tenants: b.Tenants,
			MRR:     core.FormatAmount(b.MRR),
		})
	}
	return out
}

// mapSlice converts a domain slice, never returning nil so JSON shows [].
func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
