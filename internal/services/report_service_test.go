package services

import (
	"context"
	"testing"
	"time"

	"bizdash/internal/clock"
	"bizdash/internal/core"
)

func TestReportService_ScopedLists(t *testing.T) {
	store := dashboardStore(t)
	svc := NewReportService(store, clock.NewFixed(dashboardNow))
	ctx := context.Background()
	scope := core.AllowList("b1")

	sales, err := svc.Sales(ctx, testOrg, scope, core.Filters{Timeframe: core.Lifetime})
	if err != nil {
		t.Fatal(err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 visible sales, got %d", len(sales))
	}

	sales, err = svc.Sales(ctx, testOrg, scope, core.Filters{Timeframe: core.SelectMonth, SelectedMonth: "2024-02"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sales) != 1 || !sales[0].SalesAmount.Equal(dec("800")) {
		t.Fatalf("unexpected february sales: %+v", sales)
	}

	expenses, err := svc.Expenses(ctx, testOrg, core.AllowList("b2"), core.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(expenses) != 0 {
		t.Fatalf("expense of b1 leaked into b2 scope: %+v", expenses)
	}

	businesses, err := svc.Businesses(ctx, testOrg, scope)
	if err != nil {
		t.Fatal(err)
	}
	if len(businesses) != 1 || businesses[0].ID != "b1" {
		t.Fatalf("unexpected businesses: %+v", businesses)
	}
}

func TestReportService_ShiftsAndStock(t *testing.T) {
	store := newStore(t, core.Growth, "b1", "b2")
	ctx := context.Background()
	opened := time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)
	for _, s := range []core.CashShift{
		{OrgID: testOrg, BusinessID: "b1", OpenedAt: opened, ClosedAt: opened.Add(8 * time.Hour), OpeningCash: dec("100"), CashSales: dec("300"), CountedCash: dec("390")},
		{OrgID: testOrg, BusinessID: "b2", OpenedAt: opened, ClosedAt: opened.Add(8 * time.Hour), OpeningCash: dec("50"), CashSales: dec("50"), CountedCash: dec("100")},
	} {
		if _, err := store.AddCashShift(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	for _, m := range []core.InventoryMovement{
		{OrgID: testOrg, BusinessID: "b1", Item: "Beans", Kind: core.Restock, Quantity: dec("20"), At: opened},
		{OrgID: testOrg, BusinessID: "b1", Item: "beans", Kind: core.SaleOut, Quantity: dec("5"), At: opened.Add(time.Hour)},
		{OrgID: testOrg, BusinessID: "b2", Item: "Milk", Kind: core.Restock, Quantity: dec("3"), At: opened},
	} {
		if _, err := store.AddMovement(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	svc := NewReportService(store, clock.NewFixed(dashboardNow))
	shifts, err := svc.CashShifts(ctx, testOrg, core.FullAccess(), core.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(shifts) != 2 || shifts[0].ShortShifts != 1 || shifts[1].Shifts != 1 {
		t.Fatalf("unexpected shift summaries: %+v", shifts)
	}

	stock, err := svc.Stock(ctx, testOrg, core.AllowList("b1"), core.AllBusinesses)
	if err != nil {
		t.Fatal(err)
	}
	if len(stock) != 1 || !stock[0].OnHand.Equal(dec("15")) {
		t.Fatalf("unexpected stock: %+v", stock)
	}

	movements, err := svc.Movements(ctx, testOrg, core.FullAccess(), "b2")
	if err != nil {
		t.Fatal(err)
	}
	if len(movements) != 1 || movements[0].Item != "Milk" {
		t.Fatalf("unexpected movements: %+v", movements)
	}
}

func TestReportService_DailySummariesAndMRR(t *testing.T) {
	store := newStore(t, core.Growth, "b1", "b2")
	ctx := context.Background()
	for _, d := range []core.DailySummary{
		{OrgID: testOrg, BusinessID: "b1", Day: "2024-03-14", TotalSales: dec("10")},
		{OrgID: testOrg, BusinessID: "b2", Day: "2024-03-14", TotalSales: dec("20")},
		{OrgID: testOrg, BusinessID: "b1", Day: "2024-02-28", TotalSales: dec("30")},
	} {
		if err := store.UpsertDailySummary(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.UpsertTenant(ctx, core.Tenant{ID: "org-2", Tier: core.Enterprise, Active: true}); err != nil {
		t.Fatal(err)
	}

	svc := NewReportService(store, clock.NewFixed(dashboardNow))
	rows, err := svc.DailySummaries(ctx, testOrg, core.AllowList("b1"), core.Filters{Timeframe: core.ThisMonth})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Day != "2024-03-14" || rows[0].BusinessID != "b1" {
		t.Fatalf("unexpected summaries: %+v", rows)
	}

	mrr, err := svc.MRR(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mrr.ActiveTenants != 2 || !mrr.Total.Equal(dec("278")) {
		t.Fatalf("unexpected MRR: %+v", mrr)
	}
}
