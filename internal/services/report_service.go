package services

import (
	"context"
	"fmt"

	"bizdash/internal/clock"
	"bizdash/internal/core"
	"bizdash/internal/ports"
)

// ReportService serves the scoped list and report endpoints that do not need
// the full dashboard.
type ReportService struct {
	repo  ports.Repository
	clock clock.Clock
}

func NewReportService(repo ports.Repository, clk clock.Clock) *ReportService {
	if clk == nil {
		clk = clock.NewReal(nil)
	}
	return &ReportService{repo: repo, clock: clk}
}

func (s *ReportService) resolve(f core.Filters) core.Period {
	return core.ResolvePeriod(f, s.clock.Now()).Current
}

// Sales lists the visible sales inside the filtered period.
func (s *ReportService) Sales(ctx context.Context, orgID string, scope core.Scope, f core.Filters) ([]core.Sale, error) {
	sales, err := s.repo.ListSales(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return core.FilterSales(sales, s.resolve(f), scope, f.Business()), nil
}

func (s *ReportService) Expenses(ctx context.Context, orgID string, scope core.Scope, f core.Filters) ([]core.Expense, error) {
	expenses, err := s.repo.ListExpenses(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return core.FilterExpenses(expenses, s.resolve(f), scope, f.Business()), nil
}

// Businesses lists the organization's businesses the scope can see.
func (s *ReportService) Businesses(ctx context.Context, orgID string, scope core.Scope) ([]core.Business, error) {
	all, err := s.repo.ListBusinesses(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	out := make([]core.Business, 0, len(all))
	for _, b := range all {
		if scope.Allows(b.ID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *ReportService) CashShifts(ctx context.Context, orgID string, scope core.Scope, f core.Filters) ([]core.ShiftSummary, error) {
	shifts, err := s.repo.ListCashShifts(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list cash shifts: %w", err)
	}
	return core.SummarizeShifts(shifts, s.resolve(f), scope, f.Business()), nil
}

func (s *ReportService) Movements(ctx context.Context, orgID string, scope core.Scope, businessFilter string) ([]core.InventoryMovement, error) {
	all, err := s.repo.ListMovements(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	out := make([]core.InventoryMovement, 0, len(all))
	for _, m := range all {
		if core.MatchesBusiness(businessFilter, m.BusinessID) && scope.Allows(m.BusinessID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ReportService) Stock(ctx context.Context, orgID string, scope core.Scope, businessFilter string) ([]core.StockLevel, error) {
	movements, err := s.repo.ListMovements(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return core.StockLevels(movements, scope, businessFilter), nil
}

// DailySummaries reads persisted rollups for the filtered period.
func (s *ReportService) DailySummaries(ctx context.Context, orgID string, scope core.Scope, f core.Filters) ([]core.DailySummary, error) {
	p := s.resolve(f)
	rows, err := s.repo.ListDailySummaries(ctx, orgID, p.Start.Format(core.DayLayout), p.End.Format(core.DayLayout))
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	business := f.Business()
	out := make([]core.DailySummary, 0, len(rows))
	for _, d := range rows {
		if core.MatchesBusiness(business, d.BusinessID) && scope.Allows(d.BusinessID) {
			out = append(out, d)
		}
	}
	return out, nil
}

// MRR reports platform revenue across every tenant.
func (s *ReportService) MRR(ctx context.Context) (core.MRRReport, error) {
	tenants, err := s.repo.ListTenants(ctx)
	if err != nil {
		return core.MRRReport{}, fmt.Errorf("list tenants: %w", err)
	}
	return core.ComputeMRR(tenants, s.clock.Now()), nil
}
