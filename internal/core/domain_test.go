package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSaleValidate(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   Sale
		err  error
	}{
		{"ok", sale("A", day, "100", "20"), nil},
		{"zero day is fine", sale("A", day, "0", "0"), nil},
		{"missing business", sale("", day, "100", "20"), ErrEmptyBusiness},
		{"missing date", sale("A", time.Time{}, "100", "20"), ErrInvalidDate},
		{"negative", sale("A", day, "-1", "0"), ErrInvalidAmount},
		{"profit above sales", sale("A", day, "10", "11"), ErrProfitExceedsSale},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.in.Validate(); !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestSaleProfitPercentageDerived(t *testing.T) {
	s := sale("A", time.Now(), "200", "50")
	if !s.ProfitPercentage().Equal(dec("25")) {
		t.Fatalf("got %s", s.ProfitPercentage())
	}
	if !sale("A", time.Now(), "0", "0").ProfitPercentage().IsZero() {
		t.Fatalf("zero sale must have zero percentage")
	}
}

func TestExpenseValidate(t *testing.T) {
	base := Expense{BusinessID: "A", Month: "2024-03", Category: "rent", Amount: dec("10")}

	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := base
	bad.Month = "2024-3"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("month: got %v", err)
	}

	bad = base
	bad.Amount = dec("0")
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("amount: got %v", err)
	}

	bad = base
	bad.Category = " "
	if err := bad.Validate(); !errors.Is(err, ErrEmptyCategory) {
		t.Errorf("category: got %v", err)
	}

	bad = base
	bad.Description = strings.Repeat("x", 201)
	if err := bad.Validate(); !errors.Is(err, ErrDescriptionLength) {
		t.Errorf("description: got %v", err)
	}
}

func TestBusinessValidate(t *testing.T) {
	tests := []struct {
		name string
		in   Business
		err  error
	}{
		{"valid", Business{Name: "Harbor"}, nil},
		{"blank name", Business{Name: "  "}, ErrEmptyName},
		{"long name", Business{Name: strings.Repeat("x", 121)}, ErrNameLength},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.in.Validate(); !errors.Is(err, tc.err) {
				t.Fatalf("Validate() = %v, want %v", err, tc.err)
			}
		})
	}
}

func TestExpenseDateInLocation(t *testing.T) {
	e := Expense{Month: "2024-03"}
	d, ok := e.Date(plus2)
	if !ok || !d.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, plus2)) {
		t.Fatalf("got %s, %v", d, ok)
	}
	if _, ok := (Expense{Month: "March"}).Date(plus2); ok {
		t.Fatalf("expected parse failure")
	}
}

func TestSummarizeDay(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	sales := []Sale{
		sale("A", day.Add(2*time.Hour), "10", "2"),
		sale("A", day.Add(20*time.Hour), "15", "5"),
		sale("B", day.Add(3*time.Hour), "99", "9"),
		sale("A", day.AddDate(0, 0, 1), "50", "5"),
	}
	got := SummarizeDay(sales, "org", "A", day.Add(13*time.Hour))

	if got.Day != "2024-03-05" || got.Transactions != 2 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if !got.TotalSales.Equal(dec("25")) || !got.TotalProfit.Equal(dec("7")) {
		t.Fatalf("unexpected totals: %s/%s", got.TotalSales, got.TotalProfit)
	}
	if !got.MarginPercent().Equal(dec("28")) {
		t.Fatalf("unexpected margin: %s", got.MarginPercent())
	}

	empty := SummarizeDay(sales, "org", "C", day)
	if !empty.TotalSales.IsZero() || empty.Transactions != 0 {
		t.Fatalf("expected zero summary, got %+v", empty)
	}
}
