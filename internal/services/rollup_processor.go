package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bizdash/internal/cache"
	"bizdash/internal/clock"
	"bizdash/internal/core"
	"bizdash/internal/ports"
)

// RollupProcessorConfig holds configuration for the rollup processor
type RollupProcessorConfig struct {
	// PollInterval is how often the lookback pass runs (default: 5m)
	PollInterval time.Duration

	// BatchSize caps concurrent day recomputations in one pass (default: 10)
	BatchSize int

	// LookbackDays is how many calendar days, today included, each pass
	// recomputes (default: 2)
	LookbackDays int

	// LockTTL bounds how long one recomputation holds its lock (default: 30s)
	LockTTL time.Duration
}

// DefaultRollupProcessorConfig returns sensible defaults
func DefaultRollupProcessorConfig() RollupProcessorConfig {
	return RollupProcessorConfig{
		PollInterval: 5 * time.Minute,
		BatchSize:    10,
		LookbackDays: 2,
		LockTTL:      30 * time.Second,
	}
}

// RollupProcessor maintains the per-business daily summaries and pushes them
// to the export sink.
type RollupProcessor struct {
	repo     ports.Repository
	exporter ports.SummaryExporter
	locker   cache.Locker
	clock    clock.Clock
	config   RollupProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRollupProcessor creates a new rollup processor. exporter may be nil.
func NewRollupProcessor(
	repo ports.Repository,
	exporter ports.SummaryExporter,
	locker cache.Locker,
	clk clock.Clock,
	config RollupProcessorConfig,
) *RollupProcessor {
	if locker == nil {
		locker = cache.NoopLocker{}
	}
	if clk == nil {
		clk = clock.NewReal(nil)
	}
	return &RollupProcessor{
		repo:     repo,
		exporter: exporter,
		locker:   locker,
		clock:    clk,
		config:   config,
	}
}

// Location is the calendar summaries are bucketed on.
func (p *RollupProcessor) Location() *time.Location {
	return p.clock.Now().Location()
}

// RecomputeDay rebuilds the summary of businessID for day's calendar day.
func (p *RollupProcessor) RecomputeDay(ctx context.Context, orgID, businessID string, day time.Time) (core.DailySummary, error) {
	day = day.In(p.Location())
	key := fmt.Sprintf("rollup:%s:%s", businessID, day.Format(core.DayLayout))

	unlock, err := p.locker.Lock(ctx, key, p.config.LockTTL)
	if err != nil {
		return core.DailySummary{}, fmt.Errorf("lock %s: %w", key, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "Failed to release rollup lock", "key", key, "error", err)
		}
	}()

	sales, err := p.repo.ListSalesBetween(ctx, orgID, businessID, core.StartOfDay(day), core.EndOfDay(day))
	if err != nil {
		return core.DailySummary{}, fmt.Errorf("list sales: %w", err)
	}

	summary := core.SummarizeDay(sales, orgID, businessID, day)
	summary.UpdatedAt = p.clock.Now()
	if err := p.repo.UpsertDailySummary(ctx, summary); err != nil {
		return core.DailySummary{}, fmt.Errorf("upsert daily summary: %w", err)
	}

	slog.DebugContext(ctx, "Daily summary recomputed",
		"org_id", orgID,
		"business_id", businessID,
		"day", summary.Day,
		"transactions", summary.Transactions,
		"total_sales", summary.TotalSales.StringFixed(2))

	if p.exporter != nil {
		if err := p.exporter.ExportDailySummary(ctx, summary); err != nil {
			slog.WarnContext(ctx, "Failed to export daily summary",
				"business_id", businessID,
				"day", summary.Day,
				"error", err)
		}
	}
	return summary, nil
}

// RecomputeRecent runs the lookback pass over every business of every
// tenant and returns how many summaries were written.
func (p *RollupProcessor) RecomputeRecent(ctx context.Context) (int, error) {
	tenants, err := p.repo.ListTenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	lookback := p.config.LookbackDays
	if lookback < 1 {
		lookback = 1
	}
	limit := p.config.BatchSize
	if limit < 1 {
		limit = 1
	}

	today := core.StartOfDay(p.clock.Now())
	var (
		mu      sync.Mutex
		written int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, tenant := range tenants {
		businesses, err := p.repo.ListBusinesses(ctx, tenant.ID)
		if err != nil {
			return written, fmt.Errorf("list businesses for %s: %w", tenant.ID, err)
		}
		for _, b := range businesses {
			for i := 0; i < lookback; i++ {
				orgID, businessID, day := tenant.ID, b.ID, today.AddDate(0, 0, -i)
				g.Go(func() error {
					_, err := p.RecomputeDay(gctx, orgID, businessID, day)
					if errors.Is(err, cache.ErrLocked) {
						return nil
					}
					if err != nil {
						return err
					}
					mu.Lock()
					written++
					mu.Unlock()
					return nil
				})
			}
		}
	}

	err = g.Wait()
	return written, err
}

// Start begins the lookback loop. Returns an error if already running.
func (p *RollupProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("rollup processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Rollup processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"lookback_days", p.config.LookbackDays)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *RollupProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Rollup processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Rollup processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *RollupProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RollupProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.runPass(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runPass(ctx)
		}
	}
}

func (p *RollupProcessor) runPass(ctx context.Context) {
	n, err := p.RecomputeRecent(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Rollup pass failed", "written", n, "error", err)
		return
	}
	slog.DebugContext(ctx, "Rollup pass complete", "written", n)
}
