package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bizdash/internal/cache"
	"bizdash/internal/clock"
	"bizdash/internal/core"
	"bizdash/internal/storage/memory"
)

type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (r fixedRate) Rate(context.Context) (decimal.Decimal, error) { return r.rate, r.err }

// countingStore counts ListSales calls to observe snapshot caching.
type countingStore struct {
	*memory.Store
	salesCalls int32
}

func (s *countingStore) ListSales(ctx context.Context, orgID string) ([]core.Sale, error) {
	atomic.AddInt32(&s.salesCalls, 1)
	return s.Store.ListSales(ctx, orgID)
}

var dashboardNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func dashboardStore(t *testing.T) *memory.Store {
	t.Helper()
	store := newStore(t, core.Growth, "b1", "b2")
	addSale(t, store, "b1", time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), "1000", "200")
	addSale(t, store, "b2", time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC), "500", "150")
	addSale(t, store, "b1", time.Date(2024, 2, 10, 10, 0, 0, 0, time.UTC), "800", "100")
	addExpense(t, store, "b1", "2024-03", "300")
	return store
}

func TestDashboardService_BuildThisMonth(t *testing.T) {
	svc := NewDashboardService(dashboardStore(t), nil, nil, clock.NewFixed(dashboardNow))

	d, err := svc.Build(context.Background(), DashboardRequest{
		OrgID:   testOrg,
		Scope:   core.FullAccess(),
		Filters: core.Filters{Timeframe: core.ThisMonth},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !d.Totals.TotalSales.Equal(dec("1500")) || !d.Totals.NetProfit.Equal(dec("50")) {
		t.Fatalf("unexpected totals: %+v", d.Totals)
	}
	if !d.PreviousTotals.TotalSales.Equal(dec("800")) {
		t.Fatalf("unexpected previous totals: %+v", d.PreviousTotals)
	}
	if !d.Comparable {
		t.Fatal("this_month should be comparable")
	}

	if d.Trends.Sales == nil || d.Trends.Sales.Value != 88 || !d.Trends.Sales.IsUp {
		t.Fatalf("sales trend = %+v, want 88 up", d.Trends.Sales)
	}
	if d.Trends.Profit == nil || d.Trends.Profit.Value != 250 {
		t.Fatalf("profit trend = %+v, want 250", d.Trends.Profit)
	}
	if d.Trends.Expenses != nil {
		t.Fatalf("expenses trend should be suppressed without a previous value, got %+v", d.Trends.Expenses)
	}
	if d.Trends.Net == nil || d.Trends.Net.Value != 50 || d.Trends.Net.IsUp {
		t.Fatalf("net trend = %+v, want 50 down", d.Trends.Net)
	}

	if len(d.Ranking.Rows) != 2 || d.Ranking.RevenueLeader.BusinessID != "b1" || d.Ranking.MarginLeader.BusinessID != "b2" {
		t.Fatalf("unexpected ranking: %+v", d.Ranking)
	}
	if len(d.Daily) != 2 || d.Daily[0].DateLabel != "2024-03-05" || d.Daily[1].DateLabel != "2024-03-06" {
		t.Fatalf("unexpected daily points: %+v", d.Daily)
	}
	if !d.Rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("base currency rate = %s", d.Rate)
	}
}

func TestDashboardService_LifetimeSuppressesTrends(t *testing.T) {
	svc := NewDashboardService(dashboardStore(t), nil, nil, clock.NewFixed(dashboardNow))

	d, err := svc.Build(context.Background(), DashboardRequest{
		OrgID:   testOrg,
		Scope:   core.FullAccess(),
		Filters: core.Filters{Timeframe: core.Lifetime},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if d.Comparable {
		t.Fatal("lifetime must not be comparable")
	}
	if d.Trends != (core.Trends{}) {
		t.Fatalf("expected no trends, got %+v", d.Trends)
	}
	if !d.Totals.TotalSales.Equal(dec("2300")) {
		t.Fatalf("lifetime sales = %s, want 2300", d.Totals.TotalSales)
	}
}

func TestDashboardService_ScopeAndBusinessFilter(t *testing.T) {
	svc := NewDashboardService(dashboardStore(t), nil, nil, clock.NewFixed(dashboardNow))
	ctx := context.Background()

	scoped, err := svc.Build(ctx, DashboardRequest{OrgID: testOrg, Scope: core.AllowList("b2")})
	if err != nil {
		t.Fatal(err)
	}
	if !scoped.Totals.TotalSales.Equal(dec("500")) || len(scoped.Ranking.Rows) != 1 {
		t.Fatalf("scope leaked: %+v", scoped.Totals)
	}

	filtered, err := svc.Build(ctx, DashboardRequest{
		OrgID: testOrg, Scope: core.FullAccess(), Filters: core.Filters{BusinessID: "b1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !filtered.Totals.TotalSales.Equal(dec("1000")) || !filtered.Totals.TotalExpenses.Equal(dec("300")) {
		t.Fatalf("unexpected filtered totals: %+v", filtered.Totals)
	}

	none, err := svc.Build(ctx, DashboardRequest{OrgID: testOrg})
	if err != nil {
		t.Fatal(err)
	}
	if !none.Totals.TotalSales.IsZero() || none.Ranking.RevenueLeader != nil {
		t.Fatalf("nil scope must see nothing: %+v", none.Totals)
	}
}

func TestDashboardService_SecondaryCurrency(t *testing.T) {
	svc := NewDashboardService(dashboardStore(t), nil, fixedRate{rate: dec("2")}, clock.NewFixed(dashboardNow))

	d, err := svc.Build(context.Background(), DashboardRequest{
		OrgID: testOrg, Scope: core.FullAccess(), Currency: core.Secondary,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !d.Totals.TotalSales.Equal(dec("3000")) || !d.Ranking.Rows[0].TotalSales.Equal(dec("2000")) {
		t.Fatalf("totals not converted: %+v", d.Totals)
	}
	if d.Totals.MarginPercent.StringFixed(2) != "23.33" {
		t.Fatalf("margin must not be converted, got %s", d.Totals.MarginPercent)
	}
	if !d.Daily[0].TotalSales.Equal(dec("2000")) {
		t.Fatalf("daily not converted: %+v", d.Daily[0])
	}
	if d.Trends.Sales.Value != 88 {
		t.Fatalf("trend must not depend on rate, got %d", d.Trends.Sales.Value)
	}

	failing := NewDashboardService(dashboardStore(t), nil, fixedRate{err: errors.New("offline")}, clock.NewFixed(dashboardNow))
	if _, err := failing.Build(context.Background(), DashboardRequest{OrgID: testOrg, Scope: core.FullAccess(), Currency: core.Secondary}); err == nil {
		t.Fatal("expected rate error")
	}
	if _, err := failing.Build(context.Background(), DashboardRequest{OrgID: testOrg, Scope: core.FullAccess()}); err != nil {
		t.Fatalf("base currency must not need a rate: %v", err)
	}
}

func TestDashboardService_SnapshotCache(t *testing.T) {
	store := &countingStore{Store: dashboardStore(t)}
	lru := cache.NewLRUCache[Snapshot](10, time.Minute)
	svc := NewDashboardService(store, lru, nil, clock.NewFixed(dashboardNow))
	ctx := context.Background()
	req := DashboardRequest{OrgID: testOrg, Scope: core.FullAccess()}

	for i := 0; i < 3; i++ {
		if _, err := svc.Build(ctx, req); err != nil {
			t.Fatal(err)
		}
	}
	if got := atomic.LoadInt32(&store.salesCalls); got != 1 {
		t.Fatalf("expected 1 storage read, got %d", got)
	}

	svc.Invalidate(ctx, testOrg)
	if _, err := svc.Build(ctx, req); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&store.salesCalls); got != 2 {
		t.Fatalf("expected reload after invalidation, got %d reads", got)
	}
}
