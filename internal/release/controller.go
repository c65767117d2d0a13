// Package release drives one publishing cycle over the current inventory.
package release

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/inventory"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/relay"
)

// All selects every remaining unposted item.
const All = 0

// ItemPublisher executes one publish attempt.
type ItemPublisher interface {
	Publish(ctx context.Context, item relay.Item) relay.PublishOutcome
}

// Status is the operational snapshot reported by the controller.
type Status struct {
	Unposted     int      `json:"unposted"`
	SampleTitles []string `json:"sample_titles"`
	LastFailure  string   `json:"last_failure,omitempty"`
}

// Controller selects items from the inventory and publishes them in order.
// A mutex serializes cycles: scheduled, HTTP-triggered and command-triggered
// releases all mutate the same snapshot.
type Controller struct {
	snapshots relay.SnapshotStore
	ledger    relay.Ledger
	selector  *inventory.Selector
	publisher ItemPublisher
	clock     relay.Clock
	logger    *zap.Logger

	mu          sync.Mutex
	lastFailure string
}

// NewController constructs a Controller.
func NewController(
	snapshots relay.SnapshotStore,
	ledger relay.Ledger,
	selector *inventory.Selector,
	publisher ItemPublisher,
	clock relay.Clock,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		snapshots: snapshots,
		ledger:    ledger,
		selector:  selector,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// Release publishes up to count items from the current inventory, or all
// remaining items when count is All. Running it twice in a row is safe: the
// second run sees a smaller inventory because the ledger already reflects
// the first run's deliveries.
func (c *Controller) Release(ctx context.Context, count int) (relay.ReleaseReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var report relay.ReleaseReport

	snap, err := c.snapshots.Latest(ctx)
	if err != nil {
		return report, fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		c.logger.Info("no snapshot available, nothing to release")
		return report, nil
	}

	items, err := c.selector.Unposted(ctx, snap, count)
	if err != nil {
		return report, fmt.Errorf("select inventory: %w", err)
	}
	if len(items) == 0 {
		c.logger.Info("inventory empty, nothing to release")
		return report, nil
	}
	c.logger.Info("release cycle started",
		zap.Int("selected", len(items)),
		zap.Int("requested", count),
	)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		key := item.NaturalKey()

		// The ledger may have gained the key since selection, e.g. the
		// same content appearing in both snapshot sub-lists.
		published, err := c.ledger.IsPublished(ctx, key)
		if err != nil {
			return report, fmt.Errorf("check ledger: %w", err)
		}
		if published {
			report.Duplicates++
			continue
		}

		report.Attempted++
		outcome := c.publisher.Publish(ctx, item)

		switch outcome.Status {
		case relay.PublishDelivered:
			report.Delivered++
			if err := c.recordAndPrune(ctx, item); err != nil {
				// Reported but not retried inline: the next cycle
				// re-attempts since the inventory computation is
				// idempotent.
				c.setLastFailure(err.Error())
				c.logger.Error("post-delivery bookkeeping failed",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		case relay.PublishRateLimited:
			// Further sends would likely also be rate limited; halt this
			// cycle, the item stays eligible for the next one.
			report.RateLimited = true
			c.setLastFailure(fmt.Sprintf("rate limited, retry after %s", outcome.RetryAfter))
			c.finishReport(ctx, &report)
			return report, nil
		case relay.PublishFailed:
			report.Failed++
			if outcome.Err != nil {
				report.LastError = outcome.Err.Error()
				c.setLastFailure(outcome.Err.Error())
			}
		}
	}

	c.finishReport(ctx, &report)
	c.logger.Info("release cycle finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("delivered", report.Delivered),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (c *Controller) recordAndPrune(ctx context.Context, item relay.Item) error {
	if err := c.ledger.RecordPublished(ctx, item, c.clock.Now()); err != nil {
		return fmt.Errorf("record published: %w", err)
	}
	if err := c.snapshots.RemoveItem(ctx, item); err != nil {
		return fmt.Errorf("prune snapshot: %w", err)
	}
	return nil
}

func (c *Controller) finishReport(ctx context.Context, report *relay.ReleaseReport) {
	if c.lastFailure != "" && report.LastError == "" {
		report.LastError = c.lastFailure
	}
	snap, err := c.snapshots.Latest(ctx)
	if err != nil || snap == nil {
		return
	}
	if remaining, err := c.selector.Unposted(ctx, snap, All); err == nil {
		metrics.SetInventorySize(len(remaining))
	}
}

func (c *Controller) setLastFailure(reason string) {
	c.lastFailure = reason
}

// Status reports current inventory size, a sample of titles and the most
// recent failure reason.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	c.mu.Lock()
	lastFailure := c.lastFailure
	c.mu.Unlock()

	st := Status{LastFailure: lastFailure}
	snap, err := c.snapshots.Latest(ctx)
	if err != nil {
		return st, fmt.Errorf("load snapshot: %w", err)
	}
	items, err := c.selector.Unposted(ctx, snap, All)
	if err != nil {
		return st, err
	}
	st.Unposted = len(items)
	for i, item := range items {
		if i == 10 {
			break
		}
		st.SampleTitles = append(st.SampleTitles, item.Title)
	}
	return st, nil
}
