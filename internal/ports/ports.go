// Package ports declares the storage collaborators the services depend on.
// Every read is scoped to one organization; business-level visibility is
// applied afterwards by core.Scope.
package ports

import (
	"context"
	"errors"
	"time"

	"bizdash/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a record with the same id already exists.
	ErrDuplicate = errors.New("already exists")
)

type (
	SaleStore interface {
		AddSale(ctx context.Context, s core.Sale) (core.Sale, error)
		ListSales(ctx context.Context, orgID string) ([]core.Sale, error)
		// ListSalesBetween returns one business's sales in [from, to].
		ListSalesBetween(ctx context.Context, orgID, businessID string, from, to time.Time) ([]core.Sale, error)
	}

	ExpenseStore interface {
		AddExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		ListExpenses(ctx context.Context, orgID string) ([]core.Expense, error)
	}

	BusinessStore interface {
		AddBusiness(ctx context.Context, b core.Business) (core.Business, error)
		GetBusiness(ctx context.Context, orgID, id string) (core.Business, error)
		ListBusinesses(ctx context.Context, orgID string) ([]core.Business, error)
	}

	CashShiftStore interface {
		AddCashShift(ctx context.Context, s core.CashShift) (core.CashShift, error)
		ListCashShifts(ctx context.Context, orgID string) ([]core.CashShift, error)
	}

	InventoryStore interface {
		AddMovement(ctx context.Context, m core.InventoryMovement) (core.InventoryMovement, error)
		ListMovements(ctx context.Context, orgID string) ([]core.InventoryMovement, error)
	}

	TenantStore interface {
		UpsertTenant(ctx context.Context, t core.Tenant) error
		GetTenant(ctx context.Context, id string) (core.Tenant, error)
		ListTenants(ctx context.Context) ([]core.Tenant, error)
	}

	RecurringStore interface {
		AddRecurring(ctx context.Context, r core.RecurringExpense) (core.RecurringExpense, error)
		ListActiveRecurring(ctx context.Context) ([]core.RecurringExpense, error)
		// MarkRecurringMaterialized records month ("YYYY-MM") as the last one produced.
		MarkRecurringMaterialized(ctx context.Context, id, month string) error
	}

	SummaryStore interface {
		UpsertDailySummary(ctx context.Context, d core.DailySummary) error
		// ListDailySummaries returns rows with fromDay <= day <= toDay ("YYYY-MM-DD").
		ListDailySummaries(ctx context.Context, orgID, fromDay, toDay string) ([]core.DailySummary, error)
	}

	// Repository is everything a backend provides.
	Repository interface {
		SaleStore
		ExpenseStore
		BusinessStore
		CashShiftStore
		InventoryStore
		TenantStore
		RecurringStore
		SummaryStore
		Close() error
	}

	// SummaryExporter pushes a rollup to an external sink such as a spreadsheet.
	SummaryExporter interface {
		ExportDailySummary(ctx context.Context, d core.DailySummary) error
	}
)
