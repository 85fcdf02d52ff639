package core

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ShiftStatus is the outcome of counting the drawer at the end of a shift.
type ShiftStatus string

const (
	ShiftBalanced ShiftStatus = "balanced"
	ShiftOver     ShiftStatus = "over"
	ShiftShort    ShiftStatus = "short"
)

var ErrShiftNotClosed = errors.New("shift closes before it opens")

// CashShift is one cashier session on a business's till.
type CashShift struct {
	ID          string
	OrgID       string
	BusinessID  string
	Cashier     string
	OpenedAt    time.Time
	ClosedAt    time.Time
	OpeningCash decimal.Decimal
	CashSales   decimal.Decimal
	PaidOuts    decimal.Decimal
	CountedCash decimal.Decimal
}

// Expected is what the drawer should hold at close.
func (s CashShift) Expected() decimal.Decimal {
	return s.OpeningCash.Add(s.CashSales).Sub(s.PaidOuts)
}

// Variance is counted minus expected. Positive means the drawer is over.
func (s CashShift) Variance() decimal.Decimal {
	return s.CountedCash.Sub(s.Expected())
}

func (s CashShift) Status() ShiftStatus {
	switch v := s.Variance(); {
	case v.IsPositive():
		return ShiftOver
	case v.IsNegative():
		return ShiftShort
	default:
		return ShiftBalanced
	}
}

func (s CashShift) Validate() error {
	if strings.TrimSpace(s.BusinessID) == "" {
		return ErrEmptyBusiness
	}
	if s.OpenedAt.IsZero() {
		return ErrInvalidDate
	}
	if !s.ClosedAt.IsZero() && s.ClosedAt.Before(s.OpenedAt) {
		return ErrShiftNotClosed
	}
	for _, d := range []decimal.Decimal{s.OpeningCash, s.CashSales, s.PaidOuts, s.CountedCash} {
		if d.IsNegative() {
			return ErrInvalidAmount
		}
	}
	return nil
}

// ShiftSummary totals the shifts of one business.
type ShiftSummary struct {
	BusinessID    string
	Shifts        int
	ShortShifts   int
	OverShifts    int
	TotalExpected decimal.Decimal
	TotalCounted  decimal.Decimal
	NetVariance   decimal.Decimal
}

// SummarizeShifts groups the shifts opened inside p by business, sorted by
// business id.
func SummarizeShifts(shifts []CashShift, p Period, scope Scope, businessFilter string) []ShiftSummary {
	byBusiness := make(map[string]*ShiftSummary)
	for _, s := range shifts {
		if !MatchesBusiness(businessFilter, s.BusinessID) || !p.Contains(s.OpenedAt) || !scope.Allows(s.BusinessID) {
			continue
		}
		sum, ok := byBusiness[s.BusinessID]
		if !ok {
			sum = &ShiftSummary{BusinessID: s.BusinessID}
			byBusiness[s.BusinessID] = sum
		}
		sum.Shifts++
		switch s.Status() {
		case ShiftShort:
			sum.ShortShifts++
		case ShiftOver:
			sum.OverShifts++
		}
		sum.TotalExpected = sum.TotalExpected.Add(s.Expected())
		sum.TotalCounted = sum.TotalCounted.Add(s.CountedCash)
		sum.NetVariance = sum.NetVariance.Add(s.Variance())
	}

	out := make([]ShiftSummary, 0, len(byBusiness))
	for _, sum := range byBusiness {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessID < out[j].BusinessID })
	return out
}
