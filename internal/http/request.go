package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"bizdash/internal/core"
)

const maxBodyBytes = 64 << 10

// errBadQuery marks a query parameter the server cannot interpret.
var errBadQuery = errors.New("invalid query parameter")

// fieldErrors maps a JSON field name to the rule it failed.
type fieldErrors map[string]string

func (fe fieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// processValidationErrors flattens validator output into field -> tag.
func processValidationErrors(err error) fieldErrors {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fieldErrors{"body": err.Error()}
	}
	out := make(fieldErrors, len(ves))
	for _, ve := range ves {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

// decodeBody reads a JSON object into dst and runs struct validation.
// Malformed JSON is a plain error; rule failures come back as fieldErrors.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return processValidationErrors(err)
	}
	return nil
}

// amount accepts both JSON numbers and strings so clients can send "12,50".
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amount(n.String())
	return nil
}

// money parses a non-negative amount into fe under field.
func money(fe fieldErrors, field string, a amount) decimal.Decimal {
	if a == "" {
		return decimal.Zero
	}
	d, err := core.ParseAmount(string(a))
	if err != nil {
		fe[field] = "amount"
	}
	return d
}

type saleRequest struct {
	BusinessID   string `json:"business_id" validate:"required,max=64"`
	Date         string `json:"date" validate:"required,datetime=2006-01-02"`
	SalesAmount  amount `json:"sales_amount" validate:"required"`
	ProfitAmount amount `json:"profit_amount" validate:"required"`
	Note         string `json:"note" validate:"max=500"`
}

func (req saleRequest) toSale(orgID string, loc *time.Location) (core.Sale, fieldErrors) {
	fe := fieldErrors{}
	day, ok := core.ParseDay(req.Date, loc)
	if !ok {
		fe["date"] = "datetime"
	}
	sale := core.Sale{
		OrgID:        orgID,
		BusinessID:   strings.TrimSpace(req.BusinessID),
		Date:         day,
		SalesAmount:  money(fe, "sales_amount", req.SalesAmount),
		ProfitAmount: money(fe, "profit_amount", req.ProfitAmount),
		Note:         sanitizeInput(req.Note),
	}
	return sale, fe
}

type expenseRequest struct {
	BusinessID  string `json:"business_id" validate:"required,max=64"`
	Month       string `json:"month" validate:"required,datetime=2006-01"`
	Category    string `json:"category" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Amount      amount `json:"amount" validate:"required"`
}

func (req expenseRequest) toExpense(orgID string) (core.Expense, fieldErrors) {
	fe := fieldErrors{}
	e := core.Expense{
		OrgID:       orgID,
		BusinessID:  strings.TrimSpace(req.BusinessID),
		Month:       strings.TrimSpace(req.Month),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Amount:      money(fe, "amount", req.Amount),
	}
	return e, fe
}

type businessRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Location string `json:"location" validate:"max=200"`
}

type tenantRequest struct {
	Name      string `json:"name" validate:"max=120"`
	Tier      string `json:"tier" validate:"required,oneof=starter growth enterprise"`
	Active    *bool  `json:"active"`
	ExpiresAt string `json:"expires_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// toTenant treats a missing active flag as true.
func (req tenantRequest) toTenant(id string) (core.Tenant, fieldErrors) {
	fe := fieldErrors{}
	tier, err := core.ParseTier(req.Tier)
	if err != nil {
		fe["tier"] = "oneof"
	}
	t := core.Tenant{
		ID:     strings.TrimSpace(id),
		Name:   sanitizeInput(req.Name),
		Tier:   tier,
		Active: req.Active == nil || *req.Active,
	}
	if req.ExpiresAt != "" {
		t.ExpiresAt, _ = time.Parse(time.RFC3339, req.ExpiresAt)
	}
	return t, fe
}

type cashShiftRequest struct {
	BusinessID  string `json:"business_id" validate:"required,max=64"`
	Cashier     string `json:"cashier" validate:"max=100"`
	OpenedAt    string `json:"opened_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	ClosedAt    string `json:"closed_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	OpeningCash amount `json:"opening_cash" validate:"required"`
	CashSales   amount `json:"cash_sales"`
	PaidOuts    amount `json:"paid_outs"`
	CountedCash amount `json:"counted_cash" validate:"required"`
}

func (req cashShiftRequest) toShift(orgID string) (core.CashShift, fieldErrors) {
	fe := fieldErrors{}
	shift := core.CashShift{
		OrgID:       orgID,
		BusinessID:  strings.TrimSpace(req.BusinessID),
		Cashier:     sanitizeInput(req.Cashier),
		OpeningCash: money(fe, "opening_cash", req.OpeningCash),
		CashSales:   money(fe, "cash_sales", req.CashSales),
		PaidOuts:    money(fe, "paid_outs", req.PaidOuts),
		CountedCash: money(fe, "counted_cash", req.CountedCash),
	}
	shift.OpenedAt, _ = time.Parse(time.RFC3339, req.OpenedAt)
	if req.ClosedAt != "" {
		shift.ClosedAt, _ = time.Parse(time.RFC3339, req.ClosedAt)
	}
	return shift, fe
}

type movementRequest struct {
	BusinessID string `json:"business_id" validate:"required,max=64"`
	Item       string `json:"item" validate:"required,max=100"`
	Kind       string `json:"kind" validate:"required,oneof=restock sale adjustment waste"`
	Quantity   amount `json:"quantity" validate:"required"`
	UnitCost   amount `json:"unit_cost"`
	At         string `json:"at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Note       string `json:"note" validate:"max=500"`
}

func (req movementRequest) toMovement(orgID string) (core.InventoryMovement, fieldErrors) {
	fe := fieldErrors{}
	kind, err := core.ParseMovementKind(req.Kind)
	if err != nil {
		fe["kind"] = "oneof"
	}
	// Adjustments carry their own sign, so quantity is not run through money.
	qty, err := decimal.NewFromString(strings.TrimSpace(string(req.Quantity)))
	if err != nil {
		fe["quantity"] = "number"
	}
	m := core.InventoryMovement{
		OrgID:      orgID,
		BusinessID: strings.TrimSpace(req.BusinessID),
		Item:       sanitizeInput(req.Item),
		Kind:       kind,
		Quantity:   qty,
		UnitCost:   money(fe, "unit_cost", req.UnitCost),
		Note:       sanitizeInput(req.Note),
	}
	if req.At != "" {
		m.At, _ = time.Parse(time.RFC3339, req.At)
	}
	return m, fe
}

type recurringRequest struct {
	BusinessID  string `json:"business_id" validate:"required,max=64"`
	Category    string `json:"category" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Amount      amount `json:"amount" validate:"required"`
	Frequency   string `json:"frequency" validate:"required,oneof=monthly quarterly yearly"`
	StartMonth  string `json:"start_month" validate:"required,datetime=2006-01"`
	EndMonth    string `json:"end_month" validate:"omitempty,datetime=2006-01"`
}

func (req recurringRequest) toRecurring(orgID string) (core.RecurringExpense, fieldErrors) {
	fe := fieldErrors{}
	freq, err := core.ParseFrequency(req.Frequency)
	if err != nil {
		fe["frequency"] = "oneof"
	}
	re := core.RecurringExpense{
		OrgID:       orgID,
		BusinessID:  strings.TrimSpace(req.BusinessID),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Amount:      money(fe, "amount", req.Amount),
		Frequency:   freq,
		StartMonth:  req.StartMonth,
		EndMonth:    req.EndMonth,
	}
	return re, fe
}

// parseFilters reads the period and business selection from the query string.
// Unknown timeframes are rejected rather than silently widened.
func parseFilters(r *http.Request) (core.Filters, error) {
	q := r.URL.Query()
	tf, err := core.ParseTimeframe(q.Get("timeframe"))
	if err != nil {
		return core.Filters{}, fmt.Errorf("%w: timeframe %q", errBadQuery, q.Get("timeframe"))
	}
	return core.Filters{
		BusinessID:    strings.TrimSpace(q.Get("business")),
		Timeframe:     tf,
		SelectedMonth: strings.TrimSpace(q.Get("month")),
		DateRange: core.DateRange{
			Start: strings.TrimSpace(q.Get("start")),
			End:   strings.TrimSpace(q.Get("end")),
		},
	}, nil
}

func parseCurrency(r *http.Request) (core.Currency, error) {
	raw := r.URL.Query().Get("currency")
	c, err := core.ParseCurrency(raw)
	if err != nil {
		return "", fmt.Errorf("%w: currency %q", errBadQuery, raw)
	}
	return c, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
