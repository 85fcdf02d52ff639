package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizdash/internal/amqp"
	"bizdash/internal/core"
)

type call struct {
	org, business string
	day           time.Time
}

type fakeRollup struct {
	loc     *time.Location
	calls   []call
	fail    error
	written int
}

func (f *fakeRollup) RecomputeDay(_ context.Context, orgID, businessID string, day time.Time) (core.DailySummary, error) {
	f.calls = append(f.calls, call{orgID, businessID, day})
	if f.fail != nil {
		return core.DailySummary{}, f.fail
	}
	return core.DailySummary{OrgID: orgID, BusinessID: businessID, Day: day.Format(core.DayLayout)}, nil
}

func (f *fakeRollup) RecomputeRecent(context.Context) (int, error) {
	return f.written, f.fail
}

func (f *fakeRollup) Location() *time.Location { return f.loc }

func TestHandleRecordChanged(t *testing.T) {
	tests := []struct {
		name      string
		msg       *amqp.RecordChangedMessage
		wantCalls int
	}{
		{
			name:      "sale recomputes its day",
			msg:       amqp.NewRecordChangedMessage(amqp.KindSale, "org-1", "b1", "s1", "2024-03-15"),
			wantCalls: 1,
		},
		{
			name:      "expense is skipped",
			msg:       amqp.NewRecordChangedMessage(amqp.KindExpense, "org-1", "b1", "e1", ""),
			wantCalls: 0,
		},
		{
			name:      "inventory is skipped",
			msg:       amqp.NewRecordChangedMessage(amqp.KindInventory, "org-1", "b1", "m1", ""),
			wantCalls: 0,
		},
		{
			name:      "malformed day is dropped",
			msg:       amqp.NewRecordChangedMessage(amqp.KindSale, "org-1", "b1", "s2", "15/03/2024"),
			wantCalls: 0,
		},
		{
			name:      "missing business is dropped",
			msg:       amqp.NewRecordChangedMessage(amqp.KindSale, "org-1", "", "s3", "2024-03-15"),
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rollup := &fakeRollup{loc: time.UTC}
			w := NewRollupWorker(rollup)
			if err := w.HandleRecordChanged(context.Background(), tt.msg); err != nil {
				t.Fatalf("HandleRecordChanged: %v", err)
			}
			if len(rollup.calls) != tt.wantCalls {
				t.Fatalf("got %d recomputations, want %d", len(rollup.calls), tt.wantCalls)
			}
		})
	}
}

func TestHandleRecordChangedUsesRollupCalendar(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	rollup := &fakeRollup{loc: loc}
	w := NewRollupWorker(rollup)

	msg := amqp.NewRecordChangedMessage(amqp.KindSale, "org-1", "b1", "s1", "2024-03-15")
	if err := w.HandleRecordChanged(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	got := rollup.calls[0]
	if got.org != "org-1" || got.business != "b1" {
		t.Fatalf("unexpected keys: %+v", got)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, loc)
	if !got.day.Equal(want) {
		t.Fatalf("day = %v, want %v", got.day, want)
	}
}

func TestHandleRecordChangedPropagatesFailure(t *testing.T) {
	rollup := &fakeRollup{loc: time.UTC, fail: errors.New("db locked")}
	w := NewRollupWorker(rollup)

	msg := amqp.NewRecordChangedMessage(amqp.KindSale, "org-1", "b1", "s1", "2024-03-15")
	if err := w.HandleRecordChanged(context.Background(), msg); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

func TestStartupCatchUp(t *testing.T) {
	w := NewRollupWorker(&fakeRollup{loc: time.UTC, written: 6})
	if err := w.StartupCatchUp(context.Background()); err != nil {
		t.Fatalf("StartupCatchUp: %v", err)
	}

	w = NewRollupWorker(&fakeRollup{loc: time.UTC, fail: errors.New("boom")})
	if err := w.StartupCatchUp(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
