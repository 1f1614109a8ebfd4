// Package worker runs the periodic SKU backfill.
package worker

import (
	"context"
	"fmt"
	"time"

	appctx "skuforge/internal/core/context"
	"skuforge/internal/domain/assignment"
	"skuforge/internal/infrastructure/selector"
	"skuforge/pkg/logger"
)

// Assigner assigns SKUs to a batch of items.
type Assigner interface {
	AssignBatch(ctx context.Context, ids []string, overwrite bool) *assignment.BatchReport
}

// Cleaner removes expired idempotency keys.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Config tunes the backfill loop.
type Config struct {
	Interval        time.Duration
	BatchSize       int
	Overwrite       bool
	Filter          *selector.Filter // nil selects every listed item
	CleanupInterval time.Duration
}

// Summary describes one backfill pass.
type Summary struct {
	Listed   int
	Selected int
	Updated  int
	Failed   int
}

// Backfill assigns SKUs to catalog items that lack them.
type Backfill struct {
	lister   assignment.ItemLister
	assigner Assigner
	cleaner  Cleaner // optional
	cfg      Config
	log      *logger.Logger
}

// NewBackfill creates a backfill worker. cleaner may be nil.
func NewBackfill(lister assignment.ItemLister, assigner Assigner, cleaner Cleaner, cfg Config, log *logger.Logger) *Backfill {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if log == nil {
		log = logger.Default()
	}
	return &Backfill{
		lister:   lister,
		assigner: assigner,
		cleaner:  cleaner,
		cfg:      cfg,
		log:      log.WithComponent("backfill"),
	}
}

// Run processes batches until ctx is cancelled.
func (b *Backfill) Run(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(b.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	b.log.Infow("backfill started",
		"interval", b.cfg.Interval, "batch_size", b.cfg.BatchSize, "filter", b.cfg.Filter.String())

	b.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			b.log.Info("backfill stopped")
			return
		case <-ticker.C:
			b.tick(ctx)
		case <-cleanupTicker.C:
			b.cleanup(ctx)
		}
	}
}

func (b *Backfill) tick(ctx context.Context) {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())
	if _, err := b.RunOnce(ctx); err != nil {
		b.log.WithContext(ctx).Errorw("backfill pass failed", "error", err)
	}
}

// RunOnce lists one batch of items missing identifiers, filters it and
// assigns SKUs.
func (b *Backfill) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary

	items, err := b.lister.ListItemsMissingIdentifiers(ctx, b.cfg.BatchSize)
	if err != nil {
		return sum, fmt.Errorf("list items: %w", err)
	}
	sum.Listed = len(items)

	selected, err := b.cfg.Filter.Select(items)
	if err != nil {
		return sum, err
	}
	sum.Selected = len(selected)
	if len(selected) == 0 {
		return sum, nil
	}

	ids := make([]string, len(selected))
	for i := range selected {
		ids[i] = selected[i].ID
	}

	report := b.assigner.AssignBatch(ctx, ids, b.cfg.Overwrite)
	sum.Updated = report.Updated
	for _, r := range report.Records {
		if r.Failed() {
			sum.Failed++
		}
	}

	log := b.log.WithContext(ctx)
	log.Infow("backfill pass",
		"listed", sum.Listed, "selected", sum.Selected, "updated", sum.Updated, "failed", sum.Failed)
	if err := report.Err(); err != nil {
		log.Warnw("backfill records failed", "error", err)
	}
	return sum, nil
}

func (b *Backfill) cleanup(ctx context.Context) {
	if b.cleaner == nil {
		return
	}
	n, err := b.cleaner.CleanupExpired(ctx)
	if err != nil {
		b.log.Warnw("cleanup idempotency keys failed", "error", err)
		return
	}
	if n > 0 {
		b.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
