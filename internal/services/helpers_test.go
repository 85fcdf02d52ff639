package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bizdash/internal/amqp"
	"bizdash/internal/core"
	"bizdash/internal/storage/memory"
)

const testOrg = "org-1"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakePublisher records published messages and can be told to fail.
type fakePublisher struct {
	mu       sync.Mutex
	messages []*amqp.RecordChangedMessage
	fail     bool
	closed   bool
}

func (p *fakePublisher) PublishRecordChanged(_ context.Context, msg *amqp.RecordChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func (p *fakePublisher) published() []*amqp.RecordChangedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.RecordChangedMessage(nil), p.messages...)
}

// newStore returns a memory store with one tenant on tier and the given
// businesses, keyed by id.
func newStore(t *testing.T, tier core.Tier, businessIDs ...string) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.UpsertTenant(ctx, core.Tenant{ID: testOrg, Name: "Org", Tier: tier, Active: true}); err != nil {
		t.Fatalf("UpsertTenant: %v", err)
	}
	for _, id := range businessIDs {
		if _, err := store.AddBusiness(ctx, core.Business{ID: id, OrgID: testOrg, Name: "Shop " + id}); err != nil {
			t.Fatalf("AddBusiness: %v", err)
		}
	}
	return store
}

func addSale(t *testing.T, store *memory.Store, business string, at time.Time, amount, profit string) {
	t.Helper()
	_, err := store.AddSale(context.Background(), core.Sale{
		OrgID:        testOrg,
		BusinessID:   business,
		Date:         at,
		SalesAmount:  dec(amount),
		ProfitAmount: dec(profit),
	})
	if err != nil {
		t.Fatalf("AddSale: %v", err)
	}
}

func addExpense(t *testing.T, store *memory.Store, business, month, amount string) {
	t.Helper()
	_, err := store.AddExpense(context.Background(), core.Expense{
		OrgID:      testOrg,
		BusinessID: business,
		Month:      month,
		Category:   "rent",
		Amount:     dec(amount),
	})
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
}
