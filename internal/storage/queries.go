package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type (
	SaleRow struct {
		ID           string
		OrgID        string
		BusinessID   string
		SoldAtMs     int64
		SalesAmount  decimal.Decimal
		ProfitAmount decimal.Decimal
		Note         string
	}

	ExpenseRow struct {
		ID          string
		OrgID       string
		BusinessID  string
		Month       string
		Category    string
		Description string
		Amount      decimal.Decimal
	}

	BusinessRow struct {
		ID       string
		OrgID    string
		Name     string
		Location string
	}

	CashShiftRow struct {
		ID          string
		OrgID       string
		BusinessID  string
		Cashier     string
		OpenedAtMs  int64
		ClosedAtMs  sql.NullInt64
		OpeningCash decimal.Decimal
		CashSales   decimal.Decimal
		PaidOuts    decimal.Decimal
		CountedCash decimal.Decimal
	}

	MovementRow struct {
		ID         string
		OrgID      string
		BusinessID string
		Item       string
		Kind       string
		Quantity   decimal.Decimal
		UnitCost   decimal.Decimal
		MovedAtMs  int64
		Note       string
	}

	TenantRow struct {
		ID        string
		Name      string
		Tier      string
		Active    bool
		ExpiresAt sql.NullInt64
	}

	RecurringRow struct {
		ID          string
		OrgID       string
		BusinessID  string
		Category    string
		Description string
		Amount      decimal.Decimal
		Frequency   string
		StartMonth  string
		EndMonth    string
		LastMonth   string
		Active      bool
	}

	DailySummaryRow struct {
		OrgID        string
		BusinessID   string
		Day          string
		TotalSales   decimal.Decimal
		TotalProfit  decimal.Decimal
		Transactions int64
		UpdatedAtMs  int64
	}
)

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromMillis(n.Int64)
}

const createSale = `INSERT INTO sales (id, org_id, business_id, sold_at_ms, sales_amount, profit_amount, note)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateSale(ctx context.Context, r SaleRow) error {
	_, err := q.db.ExecContext(ctx, createSale, r.ID, r.OrgID, r.BusinessID, r.SoldAtMs,
		r.SalesAmount.String(), r.ProfitAmount.String(), r.Note)
	return err
}

const listSalesByOrg = `SELECT id, org_id, business_id, sold_at_ms, sales_amount, profit_amount, note
FROM sales WHERE org_id = ? ORDER BY sold_at_ms, id`

func (q *Queries) ListSalesByOrg(ctx context.Context, orgID string) ([]SaleRow, error) {
	return q.querySales(ctx, listSalesByOrg, orgID)
}

const listSalesBetween = `SELECT id, org_id, business_id, sold_at_ms, sales_amount, profit_amount, note
FROM sales WHERE org_id = ? AND business_id = ? AND sold_at_ms BETWEEN ? AND ?
ORDER BY sold_at_ms, id`

func (q *Queries) ListSalesBetween(ctx context.Context, orgID, businessID string, fromMs, toMs int64) ([]SaleRow, error) {
	return q.querySales(ctx, listSalesBetween, orgID, businessID, fromMs, toMs)
}

func (q *Queries) querySales(ctx context.Context, query string, args ...interface{}) ([]SaleRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleRow
	for rows.Next() {
		var i SaleRow
		if err := rows.Scan(&i.ID, &i.OrgID, &i.BusinessID, &i.SoldAtMs, &i.SalesAmount, &i.ProfitAmount, &i.Note); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createExpense = `INSERT INTO expenses (id, org_id, business_id, month, category, description, amount)
VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`

// CreateExpense reports whether a row was inserted; an existing id is left untouched.
func (q *Queries) CreateExpense(ctx context.Context, r ExpenseRow) (bool, error) {
	res, err := q.db.ExecContext(ctx, createExpense, r.ID, r.OrgID, r.BusinessID, r.Month,
		r.Category, r.Description, r.Amount.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const listExpensesByOrg = `SELECT id, org_id, business_id, month, category, description, amount
FROM expenses WHERE org_id = ? ORDER BY month, id`

func (q *Queries) ListExpensesByOrg(ctx context.Context, orgID string) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByOrg, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseRow
	for rows.Next() {
		var i ExpenseRow
		if err := rows.Scan(&i.ID, &i.OrgID, &i.BusinessID, &i.Month, &i.Category, &i.Description, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createBusiness = `INSERT INTO businesses (id, org_id, name, location) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateBusiness(ctx context.Context, r BusinessRow) error {
	_, err := q.db.ExecContext(ctx, createBusiness, r.ID, r.OrgID, r.Name, r.Location)
	return err
}

const getBusiness = `SELECT id, org_id, name, location FROM businesses WHERE org_id = ? AND id = ?`

func (q *Queries) GetBusiness(ctx context.Context, orgID, id string) (BusinessRow, error) {
	var i BusinessRow
	err := q.db.QueryRowContext(ctx, getBusiness, orgID, id).Scan(&i.ID, &i.OrgID, &i.Name, &i.Location)
	return i, err
}

const listBusinessesByOrg = `SELECT id, org_id, name, location FROM businesses WHERE org_id = ?
ORDER BY rowid`

func (q *Queries) ListBusinessesByOrg(ctx context.Context, orgID string) ([]BusinessRow, error) {
	rows, err := q.db.QueryContext(ctx, listBusinessesByOrg, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BusinessRow
	for rows.Next() {
		var i BusinessRow
		if err := rows.Scan(&i.ID, &i.OrgID, &i.Name, &i.Location); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createCashShift = `INSERT INTO cash_shifts
(id, org_id, business_id, cashier, opened_at_ms, closed_at_ms, opening_cash, cash_sales, paid_outs, counted_cash)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCashShift(ctx context.Context, r CashShiftRow) error {
	_, err := q.db.ExecContext(ctx, createCashShift, r.ID, r.OrgID, r.BusinessID, r.Cashier,
		r.OpenedAtMs, r.ClosedAtMs, r.OpeningCash.String(), r.CashSales.String(),
		r.PaidOuts.String(), r.CountedCash.String())
	return err
}

const listCashShiftsByOrg = `SELECT id, org_id, business_id, cashier, opened_at_ms, closed_at_ms,
opening_cash, cash_sales, paid_outs, counted_cash
FROM cash_shifts WHERE org_id = ? ORDER BY opened_at_ms, id`

func (q *Queries) ListCashShiftsByOrg(ctx context.Context, orgID string) ([]CashShiftRow, error) {
	rows, err := q.db.QueryContext(ctx, listCashShiftsByOrg, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CashShiftRow
	for rows.Next() {
		var i CashShiftRow
		if err := rows.Scan(&i.ID, &i.OrgID, &i.BusinessID, &i.Cashier, &i.OpenedAtMs, &i.ClosedAtMs,
			&i.OpeningCash, &i.CashSales, &i.PaidOuts, &i.CountedCash); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createMovement = `INSERT INTO inventory_movements
(id, org_id, business_id, item, kind, quantity, unit_cost, moved_at_ms, note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateMovement(ctx context.Context, r MovementRow) error {
	_, err := q.db.ExecContext(ctx, createMovement, r.ID, r.OrgID, r.BusinessID, r.Item, r.Kind,
		r.Quantity.String(), r.UnitCost.String(), r.MovedAtMs, r.Note)
	return err
}

const listMovementsByOrg = `SELECT id, org_id, business_id, item, kind, quantity, unit_cost, moved_at_ms, note
FROM inventory_movements WHERE org_id = ? ORDER BY moved_at_ms, id`

func (q *Queries) ListMovementsByOrg(ctx context.Context, orgID string) ([]MovementRow, error) {
	rows, err := q.db.QueryContext(ctx, listMovementsByOrg, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MovementRow
	for rows.Next() {
		var i MovementRow
		if err := rows.Scan(&i.ID, &i.OrgID, &i.BusinessID, &i.Item, &i.Kind, &i.Quantity,
			&i.UnitCost, &i.MovedAtMs, &i.Note); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertTenant = `INSERT INTO tenants (id, name, tier, active, expires_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, tier = excluded.tier,
active = excluded.active, expires_at = excluded.expires_at`

func (q *Queries) UpsertTenant(ctx context.Context, r TenantRow) error {
	_, err := q.db.ExecContext(ctx, upsertTenant, r.ID, r.Name, r.Tier, r.Active, r.ExpiresAt)
	return err
}

const getTenant = `SELECT id, name, tier, active, expires_at FROM tenants WHERE id = ?`

func (q *Queries) GetTenant(ctx context.Context, id string) (TenantRow, error) {
	var i TenantRow
	err := q.db.QueryRowContext(ctx, getTenant, id).Scan(&i.ID, &i.Name, &i.Tier, &i.Active, &i.ExpiresAt)
	return i, err
}

const listTenants = `SELECT id, name, tier, active, expires_at FROM tenants ORDER BY id`

func (q *Queries) ListTenants(ctx context.Context) ([]TenantRow, error) {
	rows, err := q.db.QueryContext(ctx, listTenants)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TenantRow
	for rows.Next() {
		var i TenantRow
		if err := rows.Scan(&i.ID, &i.Name, &i.Tier, &i.Active, &i.ExpiresAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createRecurring = `INSERT INTO recurring_expenses
(id, org_id, business_id, category, description, amount, frequency, start_month, end_month, last_month, active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRecurring(ctx context.Context, r RecurringRow) error {
	_, err := q.db.ExecContext(ctx, createRecurring, r.ID, r.OrgID, r.BusinessID, r.Category,
		r.Description, r.Amount.String(), r.Frequency, r.StartMonth, r.EndMonth, r.LastMonth, r.Active)
	return err
}

const listActiveRecurring = `SELECT id, org_id, business_id, category, description, amount, frequency,
start_month, end_month, last_month, active
FROM recurring_expenses WHERE active = 1 ORDER BY id`

func (q *Queries) ListActiveRecurring(ctx context.Context) ([]RecurringRow, error) {
	rows, err := q.db.QueryContext(ctx, listActiveRecurring)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringRow
	for rows.Next() {
		var i RecurringRow
		if err := rows.Scan(&i.ID, &i.OrgID, &i.BusinessID, &i.Category, &i.Description, &i.Amount,
			&i.Frequency, &i.StartMonth, &i.EndMonth, &i.LastMonth, &i.Active); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateRecurringLastMonth = `UPDATE recurring_expenses SET last_month = ? WHERE id = ?`

func (q *Queries) UpdateRecurringLastMonth(ctx context.Context, id, month string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRecurringLastMonth, month, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const upsertDailySummary = `INSERT INTO daily_summaries
(org_id, business_id, day, total_sales, total_profit, transactions, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(business_id, day) DO UPDATE SET
total_sales = excluded.total_sales, total_profit = excluded.total_profit,
transactions = excluded.transactions, updated_at_ms = excluded.updated_at_ms`

func (q *Queries) UpsertDailySummary(ctx context.Context, r DailySummaryRow) error {
	_, err := q.db.ExecContext(ctx, upsertDailySummary, r.OrgID, r.BusinessID, r.Day,
		r.TotalSales.String(), r.TotalProfit.String(), r.Transactions, r.UpdatedAtMs)
	return err
}

const listDailySummaries = `SELECT org_id, business_id, day, total_sales, total_profit, transactions, updated_at_ms
FROM daily_summaries WHERE org_id = ? AND day BETWEEN ? AND ? ORDER BY day, business_id`

func (q *Queries) ListDailySummaries(ctx context.Context, orgID, fromDay, toDay string) ([]DailySummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, listDailySummaries, orgID, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailySummaryRow
	for rows.Next() {
		var i DailySummaryRow
		if err := rows.Scan(&i.OrgID, &i.BusinessID, &i.Day, &i.TotalSales, &i.TotalProfit,
			&i.Transactions, &i.UpdatedAtMs); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
