// Package inventory computes the pool of harvested-but-unpublished items.
package inventory

import (
	"context"
	"fmt"

	"github.com/reelcast/reelcast/internal/relay"
)

// Selector filters snapshot items through the ledger.
type Selector struct {
	ledger relay.Ledger
}

// New constructs a Selector.
func New(ledger relay.Ledger) *Selector {
	return &Selector{ledger: ledger}
}

// Unposted returns the snapshot's items whose natural key is absent from
// the ledger, preserving harvest order, truncated to limit when limit > 0.
// The result is recomputed fresh on every call; the ledger may have changed
// since the last one.
func (s *Selector) Unposted(ctx context.Context, snap *relay.Snapshot, limit int) ([]relay.Item, error) {
	if snap == nil {
		return nil, nil
	}
	var out []relay.Item
	for _, item := range snap.Items() {
		published, err := s.ledger.IsPublished(ctx, item.NaturalKey())
		if err != nil {
			return nil, fmt.Errorf("check ledger: %w", err)
		}
		if published {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
