// Package memory is the in-process backend used for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bizdash/internal/core"
	"bizdash/internal/ports"
)

type Store struct {
	mu         sync.RWMutex
	sales      []core.Sale
	expenses   []core.Expense
	businesses []core.Business
	shifts     []core.CashShift
	movements  []core.InventoryMovement
	tenants    map[string]core.Tenant
	recurring  []core.RecurringExpense
	summaries  map[string]core.DailySummary
}

var _ ports.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		tenants:   make(map[string]core.Tenant),
		summaries: make(map[string]core.DailySummary),
	}
}

// NewFromFiles seeds one organization's businesses from
// base/seed_businesses.txt, one "name|location" per line. Blank lines and
// lines starting with # are skipped, duplicate names keep the first entry.
// Without a seed file a single "Main Store" is created.
func NewFromFiles(base, orgID string) *Store {
	s := New()
	lines := dedupeByName(readLines(filepath.Join(base, "seed_businesses.txt")))
	if len(lines) == 0 {
		lines = []string{"Main Store"}
	}
	for _, line := range lines {
		name, location, _ := strings.Cut(line, "|")
		s.businesses = append(s.businesses, core.Business{
			ID:       uuid.NewString(),
			OrgID:    orgID,
			Name:     strings.TrimSpace(name),
			Location: strings.TrimSpace(location),
		})
	}
	s.tenants[orgID] = core.Tenant{ID: orgID, Name: orgID, Tier: core.Enterprise, Active: true}
	return s
}

func (s *Store) Close() error { return nil }

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func (s *Store) AddSale(_ context.Context, sale core.Sale) (core.Sale, error) {
	sale.ID = newID(sale.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sale)
	return sale, nil
}

func (s *Store) ListSales(_ context.Context, orgID string) ([]core.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if sale.OrgID == orgID {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *Store) ListSalesBetween(_ context.Context, orgID, businessID string, from, to time.Time) ([]core.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Sale
	for _, sale := range s.sales {
		if sale.OrgID != orgID || sale.BusinessID != businessID {
			continue
		}
		if sale.Date.Before(from) || sale.Date.After(to) {
			continue
		}
		out = append(out, sale)
	}
	return out, nil
}

func (s *Store) AddExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	e.ID = newID(e.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.expenses {
		if existing.ID == e.ID {
			return core.Expense{}, fmt.Errorf("expense %s: %w", e.ID, ports.ErrDuplicate)
		}
	}
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, orgID string) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if e.OrgID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) AddBusiness(_ context.Context, b core.Business) (core.Business, error) {
	b.ID = newID(b.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses = append(s.businesses, b)
	return b, nil
}

func (s *Store) GetBusiness(_ context.Context, orgID, id string) (core.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.businesses {
		if b.OrgID == orgID && b.ID == id {
			return b, nil
		}
	}
	return core.Business{}, fmt.Errorf("business %s: %w", id, ports.ErrNotFound)
}

func (s *Store) ListBusinesses(_ context.Context, orgID string) ([]core.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Business, 0, len(s.businesses))
	for _, b := range s.businesses {
		if b.OrgID == orgID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) AddCashShift(_ context.Context, shift core.CashShift) (core.CashShift, error) {
	shift.ID = newID(shift.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts = append(s.shifts, shift)
	return shift, nil
}

func (s *Store) ListCashShifts(_ context.Context, orgID string) ([]core.CashShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.CashShift
	for _, shift := range s.shifts {
		if shift.OrgID == orgID {
			out = append(out, shift)
		}
	}
	return out, nil
}

func (s *Store) AddMovement(_ context.Context, m core.InventoryMovement) (core.InventoryMovement, error) {
	m.ID = newID(m.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, m)
	return m, nil
}

func (s *Store) ListMovements(_ context.Context, orgID string) ([]core.InventoryMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.InventoryMovement
	for _, m := range s.movements {
		if m.OrgID == orgID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) UpsertTenant(_ context.Context, t core.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	return nil
}

func (s *Store) GetTenant(_ context.Context, id string) (core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return core.Tenant{}, fmt.Errorf("tenant %s: %w", id, ports.ErrNotFound)
	}
	return t, nil
}

func (s *Store) ListTenants(_ context.Context) ([]core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AddRecurring(_ context.Context, r core.RecurringExpense) (core.RecurringExpense, error) {
	r.ID = newID(r.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring = append(s.recurring, r)
	return r, nil
}

func (s *Store) ListActiveRecurring(_ context.Context) ([]core.RecurringExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.RecurringExpense
	for _, r := range s.recurring {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) MarkRecurringMaterialized(_ context.Context, id, month string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recurring {
		if s.recurring[i].ID == id {
			s.recurring[i].LastMonth = month
			return nil
		}
	}
	return fmt.Errorf("recurring expense %s: %w", id, ports.ErrNotFound)
}

func summaryKey(businessID, day string) string {
	return businessID + "|" + day
}

func (s *Store) UpsertDailySummary(_ context.Context, d core.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summaryKey(d.BusinessID, d.Day)] = d
	return nil
}

func (s *Store) ListDailySummaries(_ context.Context, orgID, fromDay, toDay string) ([]core.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.DailySummary
	for _, d := range s.summaries {
		if d.OrgID == orgID && d.Day >= fromDay && d.Day <= toDay {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].BusinessID < out[j].BusinessID
	})
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupeByName(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, line := range in {
		name, _, _ := strings.Cut(line, "|")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, line)
	}
	return out
}
