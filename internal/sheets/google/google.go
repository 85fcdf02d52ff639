package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bizdash/internal/core"
	"bizdash/internal/ports"
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// Exporter keeps one row per business per day in a summary sheet. Rows are
// keyed by the first three columns (day, org, business) and rewritten in
// place when a day is recomputed.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// serializes the find-then-write sequence of upserts
	mu sync.Mutex
}

var _ ports.SummaryExporter = (*Exporter)(nil)

// header is written to row 1 of an empty sheet.
var header = []any{"Day", "Org", "Business", "Sales", "Profit", "Margin %", "Transactions", "Updated"}

// New creates an exporter authenticated with service account credentials.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing summary sheet name")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Exporter {
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// newSheetsService builds a Sheets service whose token source rides on the
// pooled HTTP client.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	jwtCfg, err := goauth.JWTConfigFromJSON(credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"client_email", jwtCfg.Email,
		"scope", gsheet.SpreadsheetsScope)

	authCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(jwtCfg.Client(authCtx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling and keep-alive.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// ExportDailySummary writes d to its row, appending a new row the first time
// a (day, org, business) key is seen.
func (e *Exporter) ExportDailySummary(ctx context.Context, d core.DailySummary) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	keyRange := fmt.Sprintf("%s!A:C", e.sheetName)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, keyRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read keys from %s: %w", e.sheetName, err)
	}

	row := summaryRow(d)
	if len(resp.Values) == 0 {
		vr := &gsheet.ValueRange{Values: [][]any{header, row}}
		_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, fmt.Sprintf("%s!A1:H2", e.sheetName), vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("initialize sheet %s: %w", e.sheetName, err)
		}
		return nil
	}

	if n := findRow(resp.Values, d); n > 0 {
		rng := fmt.Sprintf("%s!A%d:H%d", e.sheetName, n, n)
		_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Updated daily summary row", "range", rng)
		return nil
	}

	_, err = e.svc.Spreadsheets.Values.Append(e.spreadsheetID, fmt.Sprintf("%s!A:H", e.sheetName), &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", e.sheetName, err)
	}
	slog.DebugContext(ctx, "Appended daily summary row",
		"business_id", d.BusinessID,
		"day", d.Day)
	return nil
}

func summaryRow(d core.DailySummary) []any {
	return []any{
		d.Day,
		d.OrgID,
		d.BusinessID,
		d.TotalSales.StringFixed(2),
		d.TotalProfit.StringFixed(2),
		d.MarginPercent().StringFixed(2),
		d.Transactions,
		d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// findRow returns the 1-based sheet row holding d's key, or 0.
func findRow(values [][]any, d core.DailySummary) int {
	for i, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 3 {
			continue
		}
		if cols[0] == d.Day && cols[1] == d.OrgID && cols[2] == d.BusinessID {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
