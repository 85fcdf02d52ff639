package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bizdash/internal/core"
)

// fakeSheet serves the subset of the Sheets values API the exporter uses.
type fakeSheet struct {
	mu      sync.Mutex
	rows    [][]any
	appends int
	updates int
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		keys := make([][]any, 0, len(f.rows))
		for _, row := range f.rows {
			keys = append(keys, row[:3])
		}
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": keys})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":append"):
		var vr struct{ Values [][]any }
		json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		f.appends++
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		var vr struct{ Values [][]any }
		json.NewDecoder(r.Body).Decode(&vr)
		start := startRow(rng)
		for i, row := range vr.Values {
			idx := start - 1 + i
			for len(f.rows) <= idx {
				f.rows = append(f.rows, nil)
			}
			f.rows[idx] = row
		}
		f.updates++
		w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
	}
}

// startRow extracts 5 from "Daily!A5:H5".
func startRow(rng string) int {
	_, cell, _ := strings.Cut(rng, "!A")
	digits, _, _ := strings.Cut(cell, ":")
	n, _ := strconv.Atoi(digits)
	return n
}

func newTestExporter(t *testing.T) (*Exporter, *fakeSheet) {
	t.Helper()
	sheet := &fakeSheet{}
	srv := httptest.NewServer(sheet)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-1", "Daily"), sheet
}

func summary(business, day, sales string, tx int) core.DailySummary {
	return core.DailySummary{
		OrgID:        "org-1",
		BusinessID:   business,
		Day:          day,
		TotalSales:   decimal.RequireFromString(sales),
		TotalProfit:  decimal.RequireFromString(sales).Div(decimal.NewFromInt(4)),
		Transactions: tx,
		UpdatedAt:    time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestExportDailySummary_Upserts(t *testing.T) {
	exp, sheet := newTestExporter(t)
	ctx := context.Background()

	for _, d := range []core.DailySummary{
		summary("b1", "2024-03-15", "100", 1),
		summary("b2", "2024-03-15", "80", 2),
		summary("b1", "2024-03-15", "150", 2),
	} {
		if err := exp.ExportDailySummary(ctx, d); err != nil {
			t.Fatalf("ExportDailySummary: %v", err)
		}
	}

	if len(sheet.rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %v", sheet.rows)
	}
	if got := toStrings(sheet.rows[0]); got[0] != "Day" {
		t.Fatalf("missing header: %v", got)
	}
	b1 := toStrings(sheet.rows[1])
	if b1[2] != "b1" || b1[3] != "150.00" || b1[5] != "25.00" || b1[6] != "2" {
		t.Fatalf("b1 row not rewritten: %v", b1)
	}
	if b2 := toStrings(sheet.rows[2]); b2[2] != "b2" || b2[3] != "80.00" {
		t.Fatalf("unexpected b2 row: %v", b2)
	}
	if sheet.appends != 1 || sheet.updates != 2 {
		t.Fatalf("appends=%d updates=%d, want 1 and 2", sheet.appends, sheet.updates)
	}
}

func TestExportDailySummary_NilService(t *testing.T) {
	exp := NewWithService(nil, "sheet-1", "Daily")
	if err := exp.ExportDailySummary(context.Background(), core.DailySummary{}); err == nil {
		t.Fatal("expected error without a service")
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "missing spreadsheet", cfg: Config{SheetName: "Daily"}, want: "missing spreadsheet ID"},
		{name: "missing sheet", cfg: Config{SpreadsheetID: "s"}, want: "missing summary sheet name"},
		{name: "missing credentials", cfg: Config{SpreadsheetID: "s", SheetName: "Daily"}, want: "missing service account credentials"},
		{name: "unreadable file", cfg: Config{SpreadsheetID: "s", SheetName: "Daily", CredentialsFile: "/non/existent.json"}, want: "read service account file"},
		{name: "invalid json", cfg: Config{SpreadsheetID: "s", SheetName: "Daily", CredentialsJSON: "not-json"}, want: "parse service account credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("New() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"Day", "Org", "Business"},
		{"2024-03-14", "org-1", "b1"},
		{"2024-03-15", "org-1", "b1"},
		{"2024-03-15"},
	}
	if n := findRow(values, core.DailySummary{Day: "2024-03-15", OrgID: "org-1", BusinessID: "b1"}); n != 3 {
		t.Fatalf("findRow = %d, want 3", n)
	}
	if n := findRow(values, core.DailySummary{Day: "2024-03-15", OrgID: "org-2", BusinessID: "b1"}); n != 0 {
		t.Fatalf("findRow = %d, want 0", n)
	}
}
