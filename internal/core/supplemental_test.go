package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCashShiftReconciliation(t *testing.T) {
	cases := []struct {
		counted  string
		variance string
		status   ShiftStatus
	}{
		{"170", "0", ShiftBalanced},
		{"175.50", "5.5", ShiftOver},
		{"160", "-10", ShiftShort},
	}
	for _, tc := range cases {
		s := CashShift{
			OpeningCash: dec("100"),
			CashSales:   dec("90"),
			PaidOuts:    dec("20"),
			CountedCash: dec(tc.counted),
		}
		if !s.Expected().Equal(dec("170")) {
			t.Fatalf("expected 170, got %s", s.Expected())
		}
		if !s.Variance().Equal(dec(tc.variance)) || s.Status() != tc.status {
			t.Errorf("counted %s: got variance %s status %s", tc.counted, s.Variance(), s.Status())
		}
	}
}

func TestCashShiftValidate(t *testing.T) {
	open := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	s := CashShift{BusinessID: "A", OpenedAt: open, ClosedAt: open.Add(-time.Hour)}
	if err := s.Validate(); !errors.Is(err, ErrShiftNotClosed) {
		t.Fatalf("got %v", err)
	}
	s.ClosedAt = open.Add(8 * time.Hour)
	s.PaidOuts = dec("-1")
	if err := s.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("got %v", err)
	}
}

func TestSummarizeShifts(t *testing.T) {
	at := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	shift := func(business, counted string) CashShift {
		return CashShift{BusinessID: business, OpenedAt: at, OpeningCash: dec("50"), CashSales: dec("50"), CountedCash: dec(counted)}
	}
	shifts := []CashShift{shift("B", "100"), shift("A", "90"), shift("A", "105"), shift("C", "1")}

	got := SummarizeShifts(shifts, march2024(time.UTC), AllowList("A", "B"), AllBusinesses)
	if len(got) != 2 || got[0].BusinessID != "A" || got[1].BusinessID != "B" {
		t.Fatalf("unexpected summaries: %+v", got)
	}
	a := got[0]
	if a.Shifts != 2 || a.ShortShifts != 1 || a.OverShifts != 1 || !a.NetVariance.Equal(dec("-5")) {
		t.Fatalf("unexpected A summary: %+v", a)
	}
}

func TestStockLevels(t *testing.T) {
	at := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	mv := func(business, item string, kind MovementKind, qty string, offset int) InventoryMovement {
		return InventoryMovement{BusinessID: business, Item: item, Kind: kind, Quantity: dec(qty), At: at.Add(time.Duration(offset) * time.Hour)}
	}
	movements := []InventoryMovement{
		mv("B", "Rice", Restock, "10", 0),
		mv("A", "Soap", Restock, "20", 0),
		mv("A", "soap", SaleOut, "3", 1),
		mv("A", "Soap", Waste, "1", 2),
		mv("A", "Soap", Adjustment, "-2", 3),
		mv("A", "Beans", Restock, "5", 0),
	}

	got := StockLevels(movements, FullAccess(), AllBusinesses)
	want := []struct {
		business, item, onHand string
	}{
		{"A", "Beans", "5"},
		{"A", "Soap", "14"},
		{"B", "Rice", "10"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d levels, got %+v", len(want), got)
	}
	for i, w := range want {
		if got[i].BusinessID != w.business || got[i].Item != w.item || !got[i].OnHand.Equal(dec(w.onHand)) {
			t.Errorf("row %d: expected %+v, got %+v", i, w, got[i])
		}
	}
	if !got[1].LastMoved.Equal(at.Add(3 * time.Hour)) {
		t.Errorf("last moved: got %s", got[1].LastMoved)
	}

	if only := StockLevels(movements, FullAccess(), "B"); len(only) != 1 {
		t.Errorf("business filter: got %+v", only)
	}
}

func TestInventoryMovementValidate(t *testing.T) {
	at := time.Now()
	m := InventoryMovement{BusinessID: "A", Item: "Soap", Kind: SaleOut, Quantity: dec("-1"), At: at}
	if err := m.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative sale: got %v", err)
	}
	m.Kind = Adjustment
	if err := m.Validate(); err != nil {
		t.Fatalf("negative adjustment should pass: %v", err)
	}
	m.Kind = "theft"
	if err := m.Validate(); !errors.Is(err, ErrUnknownMovement) {
		t.Fatalf("kind: got %v", err)
	}
}

func TestComputeMRR(t *testing.T) {
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	tenants := []Tenant{
		{ID: "1", Tier: Starter, Active: true},
		{ID: "2", Tier: Growth, Active: true, ExpiresAt: now.AddDate(0, 1, 0)},
		{ID: "3", Tier: Growth, Active: true, ExpiresAt: now.AddDate(0, -1, 0)},
		{ID: "4", Tier: Enterprise, Active: false},
		{ID: "5", Tier: Growth, Active: true},
		{ID: "6", Tier: "platinum", Active: true},
	}
	r := ComputeMRR(tenants, now)

	if r.ActiveTenants != 3 || !r.Total.Equal(dec("187")) {
		t.Fatalf("unexpected report: %+v", r)
	}
	if len(r.Buckets) != 3 || r.Buckets[1].Tier != Growth || r.Buckets[1].Tenants != 2 {
		t.Fatalf("unexpected buckets: %+v", r.Buckets)
	}
	if r.Buckets[2].Tenants != 0 || !r.Buckets[2].MRR.IsZero() {
		t.Fatalf("enterprise bucket should be empty: %+v", r.Buckets[2])
	}
}

func TestTierLimits(t *testing.T) {
	now := time.Now()
	starter := Tenant{Tier: Starter, Active: true}
	if err := starter.CanAddBusiness(0, now); err != nil {
		t.Fatalf("first business: %v", err)
	}
	if err := starter.CanAddBusiness(1, now); !errors.Is(err, ErrBusinessLimit) {
		t.Fatalf("second business: %v", err)
	}
	if !Enterprise.AllowsBusinesses(500) {
		t.Fatalf("enterprise is unlimited")
	}
	lapsed := Tenant{Tier: Enterprise, Active: true, ExpiresAt: now.Add(-time.Hour)}
	if err := lapsed.CanAddBusiness(0, now); !errors.Is(err, ErrSubscriptionEnded) {
		t.Fatalf("lapsed: %v", err)
	}
}

func TestTenantValidate(t *testing.T) {
	tests := []struct {
		name   string
		tenant Tenant
		want   error
	}{
		{"valid", Tenant{ID: "org-1", Tier: Growth}, nil},
		{"blank id", Tenant{ID: "  ", Tier: Growth}, ErrEmptyTenant},
		{"unknown tier", Tenant{ID: "org-1", Tier: "gold"}, ErrUnknownTier},
		{"long name", Tenant{ID: "org-1", Tier: Starter, Name: strings.Repeat("n", 121)}, ErrNameLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tenant.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecurringExpenseCoverage(t *testing.T) {
	r := RecurringExpense{
		BusinessID: "A", Category: "rent", Amount: dec("1200"),
		Frequency: Monthly, StartMonth: "2024-01", EndMonth: "2024-06",
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	month := func(m time.Month) time.Time { return time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC) }
	if r.CoversMonth(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)) || !r.CoversMonth(month(1)) || !r.CoversMonth(month(6)) || r.CoversMonth(month(7)) {
		t.Fatalf("coverage bounds wrong")
	}
	r.ID = "tmpl-1"
	e := r.Materialize(month(3))
	if e.ID != "rec-tmpl-1-2024-03" {
		t.Fatalf("materialized id = %q", e.ID)
	}
	if e.Month != "2024-03" || !e.Amount.Equal(dec("1200")) || e.Validate() != nil {
		t.Fatalf("unexpected expense: %+v", e)
	}

	r.EndMonth = "2023-12"
	if err := r.Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("end before start: %v", err)
	}
	if MonthsBetween(month(11), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) != 3 {
		t.Fatalf("months between")
	}
}
