package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bizdash/internal/core"
	"bizdash/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ports.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable; used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	return err
}

func (r *SQLiteRepository) AddSale(ctx context.Context, s core.Sale) (core.Sale, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := r.queries.CreateSale(ctx, SaleRow{
		ID:           s.ID,
		OrgID:        s.OrgID,
		BusinessID:   s.BusinessID,
		SoldAtMs:     millis(s.Date),
		SalesAmount:  s.SalesAmount,
		ProfitAmount: s.ProfitAmount,
		Note:         s.Note,
	})
	if err != nil {
		return core.Sale{}, fmt.Errorf("create sale: %w", err)
	}

	slog.InfoContext(ctx, "Sale saved to SQLite",
		"id", s.ID,
		"business_id", s.BusinessID,
		"sales_amount", s.SalesAmount.String())

	return s, nil
}

func saleFromRow(row SaleRow) core.Sale {
	return core.Sale{
		ID:           row.ID,
		OrgID:        row.OrgID,
		BusinessID:   row.BusinessID,
		Date:         fromMillis(row.SoldAtMs),
		SalesAmount:  row.SalesAmount,
		ProfitAmount: row.ProfitAmount,
		Note:         row.Note,
	}
}

func (r *SQLiteRepository) ListSales(ctx context.Context, orgID string) ([]core.Sale, error) {
	rows, err := r.queries.ListSalesByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	out := make([]core.Sale, len(rows))
	for i, row := range rows {
		out[i] = saleFromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) ListSalesBetween(ctx context.Context, orgID, businessID string, from, to time.Time) ([]core.Sale, error) {
	rows, err := r.queries.ListSalesBetween(ctx, orgID, businessID, millis(from), millis(to))
	if err != nil {
		return nil, fmt.Errorf("list sales between: %w", err)
	}
	out := make([]core.Sale, len(rows))
	for i, row := range rows {
		out[i] = saleFromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	inserted, err := r.queries.CreateExpense(ctx, ExpenseRow{
		ID:          e.ID,
		OrgID:       e.OrgID,
		BusinessID:  e.BusinessID,
		Month:       e.Month,
		Category:    e.Category,
		Description: e.Description,
		Amount:      e.Amount,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	if !inserted {
		return core.Expense{}, fmt.Errorf("create expense %s: %w", e.ID, ports.ErrDuplicate)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"business_id", e.BusinessID,
		"month", e.Month,
		"amount", e.Amount.String())

	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, orgID string) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, len(rows))
	for i, row := range rows {
		out[i] = core.Expense{
			ID:          row.ID,
			OrgID:       row.OrgID,
			BusinessID:  row.BusinessID,
			Month:       row.Month,
			Category:    row.Category,
			Description: row.Description,
			Amount:      row.Amount,
		}
	}
	return out, nil
}

func (r *SQLiteRepository) AddBusiness(ctx context.Context, b core.Business) (core.Business, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := r.queries.CreateBusiness(ctx, BusinessRow{ID: b.ID, OrgID: b.OrgID, Name: b.Name, Location: b.Location}); err != nil {
		return core.Business{}, fmt.Errorf("create business: %w", err)
	}
	slog.InfoContext(ctx, "Business saved to SQLite", "id", b.ID, "org_id", b.OrgID, "name", b.Name)
	return b, nil
}

func (r *SQLiteRepository) GetBusiness(ctx context.Context, orgID, id string) (core.Business, error) {
	row, err := r.queries.GetBusiness(ctx, orgID, id)
	if err != nil {
		return core.Business{}, fmt.Errorf("get business %s: %w", id, notFound(err))
	}
	return core.Business{ID: row.ID, OrgID: row.OrgID, Name: row.Name, Location: row.Location}, nil
}

func (r *SQLiteRepository) ListBusinesses(ctx context.Context, orgID string) ([]core.Business, error) {
	rows, err := r.queries.ListBusinessesByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	out := make([]core.Business, len(rows))
	for i, row := range rows {
		out[i] = core.Business{ID: row.ID, OrgID: row.OrgID, Name: row.Name, Location: row.Location}
	}
	return out, nil
}

func (r *SQLiteRepository) AddCashShift(ctx context.Context, s core.CashShift) (core.CashShift, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := r.queries.CreateCashShift(ctx, CashShiftRow{
		ID:          s.ID,
		OrgID:       s.OrgID,
		BusinessID:  s.BusinessID,
		Cashier:     s.Cashier,
		OpenedAtMs:  millis(s.OpenedAt),
		ClosedAtMs:  nullMillis(s.ClosedAt),
		OpeningCash: s.OpeningCash,
		CashSales:   s.CashSales,
		PaidOuts:    s.PaidOuts,
		CountedCash: s.CountedCash,
	})
	if err != nil {
		return core.CashShift{}, fmt.Errorf("create cash shift: %w", err)
	}
	slog.InfoContext(ctx, "Cash shift saved to SQLite",
		"id", s.ID,
		"business_id", s.BusinessID,
		"status", s.Status())
	return s, nil
}

func (r *SQLiteRepository) ListCashShifts(ctx context.Context, orgID string) ([]core.CashShift, error) {
	rows, err := r.queries.ListCashShiftsByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list cash shifts: %w", err)
	}
	out := make([]core.CashShift, len(rows))
	for i, row := range rows {
		out[i] = core.CashShift{
			ID:          row.ID,
			OrgID:       row.OrgID,
			BusinessID:  row.BusinessID,
			Cashier:     row.Cashier,
			OpenedAt:    fromMillis(row.OpenedAtMs),
			ClosedAt:    fromNullMillis(row.ClosedAtMs),
			OpeningCash: row.OpeningCash,
			CashSales:   row.CashSales,
			PaidOuts:    row.PaidOuts,
			CountedCash: row.CountedCash,
		}
	}
	return out, nil
}

func (r *SQLiteRepository) AddMovement(ctx context.Context, m core.InventoryMovement) (core.InventoryMovement, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := r.queries.CreateMovement(ctx, MovementRow{
		ID:         m.ID,
		OrgID:      m.OrgID,
		BusinessID: m.BusinessID,
		Item:       m.Item,
		Kind:       string(m.Kind),
		Quantity:   m.Quantity,
		UnitCost:   m.UnitCost,
		MovedAtMs:  millis(m.At),
		Note:       m.Note,
	})
	if err != nil {
		return core.InventoryMovement{}, fmt.Errorf("create inventory movement: %w", err)
	}
	slog.InfoContext(ctx, "Inventory movement saved to SQLite",
		"id", m.ID,
		"business_id", m.BusinessID,
		"item", m.Item,
		"kind", m.Kind)
	return m, nil
}

func (r *SQLiteRepository) ListMovements(ctx context.Context, orgID string) ([]core.InventoryMovement, error) {
	rows, err := r.queries.ListMovementsByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list inventory movements: %w", err)
	}
	out := make([]core.InventoryMovement, len(rows))
	for i, row := range rows {
		out[i] = core.InventoryMovement{
			ID:         row.ID,
			OrgID:      row.OrgID,
			BusinessID: row.BusinessID,
			Item:       row.Item,
			Kind:       core.MovementKind(row.Kind),
			Quantity:   row.Quantity,
			UnitCost:   row.UnitCost,
			At:         fromMillis(row.MovedAtMs),
			Note:       row.Note,
		}
	}
	return out, nil
}

func tenantFromRow(row TenantRow) core.Tenant {
	return core.Tenant{
		ID:        row.ID,
		Name:      row.Name,
		Tier:      core.Tier(row.Tier),
		Active:    row.Active,
		ExpiresAt: fromNullMillis(row.ExpiresAt),
	}
}

func (r *SQLiteRepository) UpsertTenant(ctx context.Context, t core.Tenant) error {
	err := r.queries.UpsertTenant(ctx, TenantRow{
		ID:        t.ID,
		Name:      t.Name,
		Tier:      string(t.Tier),
		Active:    t.Active,
		ExpiresAt: nullMillis(t.ExpiresAt),
	})
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetTenant(ctx context.Context, id string) (core.Tenant, error) {
	row, err := r.queries.GetTenant(ctx, id)
	if err != nil {
		return core.Tenant{}, fmt.Errorf("get tenant %s: %w", id, notFound(err))
	}
	return tenantFromRow(row), nil
}

func (r *SQLiteRepository) ListTenants(ctx context.Context) ([]core.Tenant, error) {
	rows, err := r.queries.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	out := make([]core.Tenant, len(rows))
	for i, row := range rows {
		out[i] = tenantFromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) AddRecurring(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	if re.ID == "" {
		re.ID = uuid.NewString()
	}
	err := r.queries.CreateRecurring(ctx, RecurringRow{
		ID:          re.ID,
		OrgID:       re.OrgID,
		BusinessID:  re.BusinessID,
		Category:    re.Category,
		Description: re.Description,
		Amount:      re.Amount,
		Frequency:   string(re.Frequency),
		StartMonth:  re.StartMonth,
		EndMonth:    re.EndMonth,
		LastMonth:   re.LastMonth,
		Active:      re.Active,
	})
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("create recurring expense: %w", err)
	}
	return re, nil
}

func (r *SQLiteRepository) ListActiveRecurring(ctx context.Context) ([]core.RecurringExpense, error) {
	rows, err := r.queries.ListActiveRecurring(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	out := make([]core.RecurringExpense, len(rows))
	for i, row := range rows {
		out[i] = core.RecurringExpense{
			ID:          row.ID,
			OrgID:       row.OrgID,
			BusinessID:  row.BusinessID,
			Category:    row.Category,
			Description: row.Description,
			Amount:      row.Amount,
			Frequency:   core.Frequency(row.Frequency),
			StartMonth:  row.StartMonth,
			EndMonth:    row.EndMonth,
			LastMonth:   row.LastMonth,
			Active:      row.Active,
		}
	}
	return out, nil
}

func (r *SQLiteRepository) MarkRecurringMaterialized(ctx context.Context, id, month string) error {
	n, err := r.queries.UpdateRecurringLastMonth(ctx, id, month)
	if err != nil {
		return fmt.Errorf("update recurring last month: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("recurring expense %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) UpsertDailySummary(ctx context.Context, d core.DailySummary) error {
	err := r.queries.UpsertDailySummary(ctx, DailySummaryRow{
		OrgID:        d.OrgID,
		BusinessID:   d.BusinessID,
		Day:          d.Day,
		TotalSales:   d.TotalSales,
		TotalProfit:  d.TotalProfit,
		Transactions: int64(d.Transactions),
		UpdatedAtMs:  millis(d.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("upsert daily summary: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListDailySummaries(ctx context.Context, orgID, fromDay, toDay string) ([]core.DailySummary, error) {
	rows, err := r.queries.ListDailySummaries(ctx, orgID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	out := make([]core.DailySummary, len(rows))
	for i, row := range rows {
		out[i] = core.DailySummary{
			OrgID:        row.OrgID,
			BusinessID:   row.BusinessID,
			Day:          row.Day,
			TotalSales:   row.TotalSales,
			TotalProfit:  row.TotalProfit,
			Transactions: int(row.Transactions),
			UpdatedAt:    fromMillis(row.UpdatedAtMs),
		}
	}
	return out, nil
}
