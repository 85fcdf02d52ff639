package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bizdash/internal/amqp"
	"bizdash/internal/core"
)

// Rollup is the part of services.RollupProcessor the worker drives.
type Rollup interface {
	RecomputeDay(ctx context.Context, orgID, businessID string, day time.Time) (core.DailySummary, error)
	RecomputeRecent(ctx context.Context) (int, error)
	Location() *time.Location
}

// RollupWorker keeps daily summaries current from record changed messages.
type RollupWorker struct {
	rollup Rollup
}

func NewRollupWorker(rollup Rollup) *RollupWorker {
	return &RollupWorker{rollup: rollup}
}

// HandleRecordChanged recomputes the day a sale landed on. Other record kinds
// do not feed daily summaries and are acknowledged without work.
func (w *RollupWorker) HandleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	slog.InfoContext(ctx, "Processing record changed message",
		"kind", msg.Kind,
		"record_id", msg.RecordID,
		"business_id", msg.BusinessID,
		"day", msg.Day)

	if msg.Kind != amqp.KindSale {
		slog.DebugContext(ctx, "Record kind has no daily rollup, skipping", "kind", msg.Kind)
		return nil
	}
	if msg.OrgID == "" || msg.BusinessID == "" {
		slog.WarnContext(ctx, "Record changed message missing keys, dropping", "record_id", msg.RecordID)
		return nil
	}

	day, ok := core.ParseDay(msg.Day, w.rollup.Location())
	if !ok {
		// a malformed day would never succeed on redelivery
		slog.WarnContext(ctx, "Record changed message has invalid day, dropping",
			"record_id", msg.RecordID,
			"day", msg.Day)
		return nil
	}

	summary, err := w.rollup.RecomputeDay(ctx, msg.OrgID, msg.BusinessID, day)
	if err != nil {
		return fmt.Errorf("recompute %s for %s: %w", msg.Day, msg.BusinessID, err)
	}

	slog.InfoContext(ctx, "Daily summary updated",
		"business_id", summary.BusinessID,
		"day", summary.Day,
		"transactions", summary.Transactions,
		"total_sales", summary.TotalSales.StringFixed(2))
	return nil
}

// StartupCatchUp recomputes the lookback window at worker startup to recover
// from missed AMQP messages or worker downtime.
func (w *RollupWorker) StartupCatchUp(ctx context.Context) error {
	start := time.Now()
	written, err := w.rollup.RecomputeRecent(ctx)
	if err != nil {
		return fmt.Errorf("startup catch-up: %w", err)
	}

	slog.InfoContext(ctx, "Startup catch-up completed",
		"summaries", written,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}
