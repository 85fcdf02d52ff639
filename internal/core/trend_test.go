package core

import "testing"

func TestTrend(t *testing.T) {
	cases := []struct {
		name     string
		current  string
		previous string
		nilWant  bool
		value    int64
		up       bool
	}{
		{"zero baseline", "0", "0", true, 0, false},
		{"negative baseline", "10", "-5", true, 0, false},
		{"up", "150", "100", false, 50, true},
		{"down", "50", "100", false, 50, false},
		{"flat", "100", "100", false, 0, true},
		{"half rounds up", "102.5", "100", false, 3, true},
		{"negative half rounds toward zero", "97.5", "100", false, 2, false},
		{"drop to zero", "0", "80", false, 100, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Trend(dec(tc.current), dec(tc.previous))
			if tc.nilWant {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected trend, got nil")
			}
			if got.Value != tc.value || got.IsUp != tc.up {
				t.Fatalf("expected {%d %v}, got %+v", tc.value, tc.up, *got)
			}
		})
	}
}

func TestCompareTotals(t *testing.T) {
	current := newTotals(dec("200"), dec("50"), dec("60"))
	previous := newTotals(dec("100"), dec("50"), dec("0"))

	tr := CompareTotals(current, previous)
	if tr.Sales == nil || tr.Sales.Value != 100 || !tr.Sales.IsUp {
		t.Errorf("sales trend: %+v", tr.Sales)
	}
	if tr.Profit == nil || tr.Profit.Value != 0 {
		t.Errorf("profit trend: %+v", tr.Profit)
	}
	if tr.Expenses != nil {
		t.Errorf("expenses against zero baseline must be nil, got %+v", tr.Expenses)
	}
	if tr.Net == nil || tr.Net.Value != 120 || tr.Net.IsUp {
		t.Errorf("net trend: %+v", tr.Net)
	}
}
