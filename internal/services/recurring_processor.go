package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bizdash/internal/clock"
	"bizdash/internal/core"
	"bizdash/internal/ports"
)

// maxCatchUpMonths bounds how far back a stalled template is backfilled.
const maxCatchUpMonths = 24

// ExpenseCreator is the write path materialized expenses go through.
type ExpenseCreator interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
}

// RecurringProcessor turns recurring expense templates into monthly expenses.
type RecurringProcessor struct {
	store    ports.RecurringStore
	expenses ExpenseCreator
}

func NewRecurringProcessor(store ports.RecurringStore, expenses ExpenseCreator) *RecurringProcessor {
	return &RecurringProcessor{
		store:    store,
		expenses: expenses,
	}
}

// ProcessDueExpenses materializes every billing month up to and including
// now's month that each active template has not produced yet. now's location
// is the calendar months are counted on.
func (p *RecurringProcessor) ProcessDueExpenses(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.expenses == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	templates, err := p.store.ListActiveRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get active recurring expenses: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring expenses",
		"total_active", len(templates),
		"processing_month", now.Format(core.MonthLayout))

	created := 0
	for _, re := range templates {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := p.processTemplate(ctx, re, now)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring expense",
				"recurring_id", re.ID,
				"business_id", re.BusinessID,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"created", created,
		"total_checked", len(templates))

	return created, nil
}

func (p *RecurringProcessor) processTemplate(ctx context.Context, re core.RecurringExpense, now time.Time) (int, error) {
	checker, err := GetDuenessChecker(re.Frequency)
	if err != nil {
		return 0, err
	}

	loc := now.Location()
	start, ok := core.ParseMonth(re.StartMonth, loc)
	if !ok {
		return 0, fmt.Errorf("start month %q: %w", re.StartMonth, core.ErrInvalidMonth)
	}

	next := start
	if re.LastMonth != "" {
		last, ok := core.ParseMonth(re.LastMonth, loc)
		if !ok {
			return 0, fmt.Errorf("last month %q: %w", re.LastMonth, core.ErrInvalidMonth)
		}
		next = last.AddDate(0, 1, 0)
	}

	current := core.StartOfMonth(now)
	if core.MonthsBetween(next, current) > maxCatchUpMonths {
		floor := current.AddDate(0, -maxCatchUpMonths, 0)
		slog.WarnContext(ctx, "Recurring expense backlog truncated",
			"recurring_id", re.ID,
			"skipped_from", next.Format(core.MonthLayout),
			"resume_at", floor.Format(core.MonthLayout))
		next = floor
	}

	created := 0
	for m := next; !m.After(current); m = m.AddDate(0, 1, 0) {
		if !re.CoversMonth(m) {
			if m.Before(start) {
				continue
			}
			break
		}
		key := m.Format(core.MonthLayout)

		if checker.IsDue(start, m) {
			saved, err := p.expenses.CreateExpense(ctx, re.Materialize(m))
			switch {
			case errors.Is(err, ports.ErrDuplicate):
				// Created by an earlier pass whose mark did not land.
				slog.InfoContext(ctx, "Recurring expense already materialized",
					"recurring_id", re.ID,
					"month", key)
			case err != nil:
				return created, fmt.Errorf("create expense for %s: %w", key, err)
			default:
				created++
				slog.InfoContext(ctx, "Created expense from recurring template",
					"recurring_id", re.ID,
					"expense_id", saved.ID,
					"month", key,
					"amount", saved.Amount.StringFixed(2),
					"frequency", re.Frequency)
			}
		}

		if err := p.store.MarkRecurringMaterialized(ctx, re.ID, key); err != nil {
			return created, fmt.Errorf("mark %s materialized: %w", key, err)
		}
	}
	return created, nil
}

// Run processes immediately and then every interval until ctx is done.
func (p *RecurringProcessor) Run(ctx context.Context, interval time.Duration, clk clock.Clock) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.ProcessDueExpenses(ctx, clk.Now()); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Recurring expense processing failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
