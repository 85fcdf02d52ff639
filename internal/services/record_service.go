package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bizdash/internal/amqp"
	"bizdash/internal/clock"
	"bizdash/internal/core"
	"bizdash/internal/ports"
)

var (
	// ErrInvalidInput wraps every validation failure returned by the services.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when the tenant's plan does not allow a write.
	ErrForbidden = errors.New("forbidden")
)

// Publisher announces record changes to the rollup worker.
type Publisher interface {
	PublishRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error
	Close() error
}

// Invalidator drops cached snapshots of an organization.
type Invalidator interface {
	Invalidate(ctx context.Context, orgID string)
}

// RecordService orchestrates writes across storage and AMQP. Records are
// saved first; publishing is best-effort and never fails the write.
type RecordService struct {
	repo        ports.Repository
	publisher   Publisher
	clock       clock.Clock
	invalidator Invalidator
}

func NewRecordService(repo ports.Repository, publisher Publisher, clk clock.Clock) *RecordService {
	if clk == nil {
		clk = clock.NewReal(nil)
	}
	return &RecordService{
		repo:      repo,
		publisher: publisher,
		clock:     clk,
	}
}

// SetInvalidator registers the cache to drop after each write.
func (s *RecordService) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// ownedBusiness checks that businessID belongs to orgID.
func (s *RecordService) ownedBusiness(ctx context.Context, orgID, businessID string) error {
	if _, err := s.repo.GetBusiness(ctx, orgID, businessID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("business %s: %w", businessID, ports.ErrNotFound)
		}
		return fmt.Errorf("load business: %w", err)
	}
	return nil
}

// CreateSale saves a sale and announces the day it lands on.
func (s *RecordService) CreateSale(ctx context.Context, sale core.Sale) (core.Sale, error) {
	if err := sale.Validate(); err != nil {
		return core.Sale{}, invalid(err)
	}
	if err := s.ownedBusiness(ctx, sale.OrgID, sale.BusinessID); err != nil {
		return core.Sale{}, err
	}

	saved, err := s.repo.AddSale(ctx, sale)
	if err != nil {
		return core.Sale{}, fmt.Errorf("save sale: %w", err)
	}

	day := saved.Date.In(s.clock.Now().Location()).Format(core.DayLayout)
	s.changed(ctx, amqp.KindSale, saved.OrgID, saved.BusinessID, saved.ID, day)
	return saved, nil
}

func (s *RecordService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}
	if err := s.ownedBusiness(ctx, e.OrgID, e.BusinessID); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.repo.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.changed(ctx, amqp.KindExpense, saved.OrgID, saved.BusinessID, saved.ID, "")
	return saved, nil
}

// CreateBusiness enforces the tenant's tier cap before adding a location.
func (s *RecordService) CreateBusiness(ctx context.Context, b core.Business) (core.Business, error) {
	if err := b.Validate(); err != nil {
		return core.Business{}, invalid(err)
	}

	tenant, err := s.repo.GetTenant(ctx, b.OrgID)
	if err != nil {
		return core.Business{}, fmt.Errorf("load tenant: %w", err)
	}
	existing, err := s.repo.ListBusinesses(ctx, b.OrgID)
	if err != nil {
		return core.Business{}, fmt.Errorf("list businesses: %w", err)
	}
	if err := tenant.CanAddBusiness(len(existing), s.clock.Now()); err != nil {
		return core.Business{}, fmt.Errorf("%w: %w", ErrForbidden, err)
	}

	saved, err := s.repo.AddBusiness(ctx, b)
	if err != nil {
		return core.Business{}, fmt.Errorf("save business: %w", err)
	}

	slog.InfoContext(ctx, "Business created",
		"org_id", saved.OrgID,
		"business_id", saved.ID,
		"tier", tenant.Tier,
		"count", len(existing)+1)
	s.invalidate(ctx, saved.OrgID)
	return saved, nil
}

// SaveTenant creates or replaces an organization's subscription.
func (s *RecordService) SaveTenant(ctx context.Context, t core.Tenant) (core.Tenant, error) {
	if err := t.Validate(); err != nil {
		return core.Tenant{}, invalid(err)
	}
	if err := s.repo.UpsertTenant(ctx, t); err != nil {
		return core.Tenant{}, fmt.Errorf("save tenant: %w", err)
	}

	slog.InfoContext(ctx, "Tenant saved",
		"org_id", t.ID,
		"tier", t.Tier,
		"active", t.Active)
	s.invalidate(ctx, t.ID)
	return t, nil
}

func (s *RecordService) CreateCashShift(ctx context.Context, shift core.CashShift) (core.CashShift, error) {
	if err := shift.Validate(); err != nil {
		return core.CashShift{}, invalid(err)
	}
	if err := s.ownedBusiness(ctx, shift.OrgID, shift.BusinessID); err != nil {
		return core.CashShift{}, err
	}

	saved, err := s.repo.AddCashShift(ctx, shift)
	if err != nil {
		return core.CashShift{}, fmt.Errorf("save cash shift: %w", err)
	}

	day := ""
	if !saved.ClosedAt.IsZero() {
		day = saved.ClosedAt.In(s.clock.Now().Location()).Format(core.DayLayout)
	}
	s.changed(ctx, amqp.KindCashShift, saved.OrgID, saved.BusinessID, saved.ID, day)
	return saved, nil
}

func (s *RecordService) RecordMovement(ctx context.Context, m core.InventoryMovement) (core.InventoryMovement, error) {
	if m.At.IsZero() {
		m.At = s.clock.Now()
	}
	if err := m.Validate(); err != nil {
		return core.InventoryMovement{}, invalid(err)
	}
	if err := s.ownedBusiness(ctx, m.OrgID, m.BusinessID); err != nil {
		return core.InventoryMovement{}, err
	}

	saved, err := s.repo.AddMovement(ctx, m)
	if err != nil {
		return core.InventoryMovement{}, fmt.Errorf("save movement: %w", err)
	}

	s.changed(ctx, amqp.KindInventory, saved.OrgID, saved.BusinessID, saved.ID, "")
	return saved, nil
}

func (s *RecordService) CreateRecurring(ctx context.Context, r core.RecurringExpense) (core.RecurringExpense, error) {
	r.Active = true
	if err := r.Validate(); err != nil {
		return core.RecurringExpense{}, invalid(err)
	}
	if err := s.ownedBusiness(ctx, r.OrgID, r.BusinessID); err != nil {
		return core.RecurringExpense{}, err
	}

	saved, err := s.repo.AddRecurring(ctx, r)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("save recurring expense: %w", err)
	}
	return saved, nil
}

func (s *RecordService) changed(ctx context.Context, kind, orgID, businessID, id, day string) {
	slog.InfoContext(ctx, "Record created",
		"record_kind", kind,
		"record_id", id,
		"org_id", orgID,
		"business_id", businessID)

	s.invalidate(ctx, orgID)

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping record changed message")
		return
	}
	msg := amqp.NewRecordChangedMessage(kind, orgID, businessID, id, day)
	if err := s.publisher.PublishRecordChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record changed message",
			"record_kind", kind,
			"record_id", id,
			"error", err)
	}
}

func (s *RecordService) invalidate(ctx context.Context, orgID string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, orgID)
	}
}

// Close closes both storage and AMQP connections
func (s *RecordService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close record service: %w", errors.Join(errs...))
	}
	return nil
}
