package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bizdash/internal/cache"
	"bizdash/internal/clock"
	"bizdash/internal/core"
	"bizdash/internal/log"
	"bizdash/internal/ports"
)

// RateSource supplies the base-to-secondary exchange rate.
type RateSource interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// Snapshot is everything an organization's dashboard reduces over.
type Snapshot struct {
	Sales      []core.Sale
	Expenses   []core.Expense
	Businesses []core.Business
}

func (s Snapshot) Records() core.Records {
	return core.Records{Sales: s.Sales, Expenses: s.Expenses}
}

type DashboardRequest struct {
	OrgID    string
	Scope    core.Scope
	Filters  core.Filters
	Currency core.Currency
}

// Dashboard is one fully computed view. Money is in Currency.
type Dashboard struct {
	Timeframe      core.Timeframe
	Period         core.Period
	PreviousPeriod core.Period
	Comparable     bool
	Currency       core.Currency
	Rate           decimal.Decimal
	Totals         core.Totals
	PreviousTotals core.Totals
	Trends         core.Trends
	Ranking        core.Ranking
	Daily          []core.DailyPoint
	GeneratedAt    time.Time
}

// DashboardService loads an organization's records and runs the period
// resolver and aggregator over them.
type DashboardService struct {
	repo  ports.Repository
	cache cache.Cache[Snapshot]
	rates RateSource
	clock clock.Clock
}

func NewDashboardService(repo ports.Repository, snapshots cache.Cache[Snapshot], rates RateSource, clk clock.Clock) *DashboardService {
	if clk == nil {
		clk = clock.NewReal(nil)
	}
	return &DashboardService{
		repo:  repo,
		cache: snapshots,
		rates: rates,
		clock: clk,
	}
}

func snapshotKey(orgID string) string {
	return "snapshot:" + orgID
}

// Invalidate drops the cached snapshot so the next read sees new writes.
func (s *DashboardService) Invalidate(ctx context.Context, orgID string) {
	if s.cache != nil {
		s.cache.Delete(ctx, snapshotKey(orgID))
	}
}

// SnapshotInvalidator evicts cached snapshots for processes that write
// records but never serve dashboards, such as the recurring worker.
type SnapshotInvalidator struct {
	Snapshots cache.Cache[Snapshot]
}

func (s SnapshotInvalidator) Invalidate(ctx context.Context, orgID string) {
	if s.Snapshots != nil {
		s.Snapshots.Delete(ctx, snapshotKey(orgID))
	}
}

// Snapshot fetches sales, expenses and businesses concurrently, serving a
// cached copy when one is available.
func (s *DashboardService) Snapshot(ctx context.Context, orgID string) (Snapshot, error) {
	if s.cache != nil {
		if snap, ok := s.cache.Get(ctx, snapshotKey(orgID)); ok {
			return snap, nil
		}
	}

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sales, err := s.repo.ListSales(gctx, orgID)
		if err != nil {
			return fmt.Errorf("list sales: %w", err)
		}
		snap.Sales = sales
		return nil
	})
	g.Go(func() error {
		expenses, err := s.repo.ListExpenses(gctx, orgID)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		snap.Expenses = expenses
		return nil
	})
	g.Go(func() error {
		businesses, err := s.repo.ListBusinesses(gctx, orgID)
		if err != nil {
			return fmt.Errorf("list businesses: %w", err)
		}
		snap.Businesses = businesses
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, snapshotKey(orgID), snap)
	}
	return snap, nil
}

// rate resolves the multiplier for currency. Base never needs a fetch.
func (s *DashboardService) rate(ctx context.Context, currency core.Currency) (decimal.Decimal, error) {
	if currency != core.Secondary {
		return decimal.NewFromInt(1), nil
	}
	if s.rates == nil {
		return decimal.Zero, fmt.Errorf("no exchange rate source configured")
	}
	return s.rates.Rate(ctx)
}

// Build computes the dashboard for req at the service clock's now.
func (s *DashboardService) Build(ctx context.Context, req DashboardRequest) (Dashboard, error) {
	snap, err := s.Snapshot(ctx, req.OrgID)
	if err != nil {
		return Dashboard{}, err
	}
	rate, err := s.rate(ctx, req.Currency)
	if err != nil {
		return Dashboard{}, fmt.Errorf("exchange rate: %w", err)
	}

	now := s.clock.Now()
	res := core.ResolvePeriod(req.Filters, now)
	business := req.Filters.Business()
	recs := snap.Records()

	current := core.Aggregate(recs, res.Current, req.Scope, business)
	previous := core.Aggregate(recs, res.Previous, req.Scope, business)

	var trends core.Trends
	if res.Comparable {
		trends = core.CompareTotals(current, previous)
	}

	ranking := core.GroupByBusiness(recs, snap.Businesses, res.Current, req.Scope, business)
	daily := core.GroupByDay(snap.Sales, res.Current, req.Scope, business)

	fields := log.NewFields().
		WithPeriod(string(req.Filters.Timeframe), res.Current.Start, res.Current.End).
		WithOperation(log.OpAggregate)
	fields[log.FieldOrgID] = req.OrgID
	log.FromContext(ctx).WithComponent(log.ComponentDashboard).
		DebugContext(ctx, "Dashboard built", append(fields.ToSlice(), "currency", req.Currency)...)

	return Dashboard{
		Timeframe:      req.Filters.Timeframe,
		Period:         res.Current,
		PreviousPeriod: res.Previous,
		Comparable:     res.Comparable,
		Currency:       req.Currency,
		Rate:           rate,
		Totals:         core.ConvertTotals(current, req.Currency, rate),
		PreviousTotals: core.ConvertTotals(previous, req.Currency, rate),
		Trends:         trends,
		Ranking:        core.ConvertRanking(ranking, req.Currency, rate),
		Daily:          core.ConvertDaily(daily, req.Currency, rate),
		GeneratedAt:    now,
	}, nil
}
