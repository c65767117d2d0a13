// Package harvest runs one extraction pass against the source.
package harvest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/relay"
)

// Harvester requests the next unscraped page, stores the resulting
// snapshot and advances the page cursor.
type Harvester struct {
	extractor relay.Extractor
	snapshots relay.SnapshotStore
	cursor    relay.PageCursor
	clock     relay.Clock
	logger    *zap.Logger
}

// New constructs a Harvester.
func New(
	extractor relay.Extractor,
	snapshots relay.SnapshotStore,
	cursor relay.PageCursor,
	clock relay.Clock,
	logger *zap.Logger,
) *Harvester {
	return &Harvester{
		extractor: extractor,
		snapshots: snapshots,
		cursor:    cursor,
		clock:     clock,
		logger:    logger,
	}
}

// Run performs one harvest. An empty or failed extraction leaves the page
// cursor untouched so the same page is retried on the next trigger.
func (h *Harvester) Run(ctx context.Context) error {
	last, err := h.cursor.LastPage(ctx)
	if err != nil {
		return fmt.Errorf("read page cursor: %w", err)
	}
	next := last + 1

	snap, err := h.extractor.Extract(ctx, next)
	if err != nil {
		metrics.ObserveHarvest("failed")
		return fmt.Errorf("extract page %d: %w", next, err)
	}
	if snap == nil || snap.Empty() {
		metrics.ObserveHarvest("empty")
		h.logger.Warn("page returned no items, cursor not advanced", zap.Int("page", next))
		return nil
	}

	snap.CreatedAt = h.clock.Now()
	if err := h.snapshots.Insert(ctx, *snap); err != nil {
		metrics.ObserveHarvest("failed")
		return fmt.Errorf("store snapshot: %w", err)
	}
	if err := h.cursor.SetLastPage(ctx, next); err != nil {
		metrics.ObserveHarvest("failed")
		return fmt.Errorf("advance page cursor: %w", err)
	}

	metrics.ObserveHarvest("stored")
	h.logger.Info("harvest stored",
		zap.Int("page", next),
		zap.Int("items", len(snap.Items())),
	)
	return nil
}
