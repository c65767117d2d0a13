package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reelcast/reelcast/internal/relay"
)

type fakeLedger struct {
	published map[string]bool
	err       error
}

func (f *fakeLedger) IsPublished(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.published[key], nil
}

func (f *fakeLedger) RecordPublished(context.Context, relay.Item, time.Time) error {
	return nil
}

func snapshotABC() *relay.Snapshot {
	return &relay.Snapshot{
		Latest: []relay.Item{
			{Title: "A", Link: "https://example.com/a"},
			{Title: "B", Link: "https://example.com/b"},
			{Title: "C", Link: "https://example.com/c"},
		},
	}
}

func TestSelector_Unposted_SkipsLedgeredItemsInOrder(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{published: map[string]bool{"https://example.com/b": true}}
	sel := New(ledger)

	items, err := sel.Unposted(context.Background(), snapshotABC(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "A", items[0].Title)
	require.Equal(t, "C", items[1].Title)
}

func TestSelector_Unposted_NoLimitReturnsAll(t *testing.T) {
	t.Parallel()

	sel := New(&fakeLedger{published: map[string]bool{}})
	items, err := sel.Unposted(context.Background(), snapshotABC(), 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestSelector_Unposted_NilSnapshot(t *testing.T) {
	t.Parallel()

	sel := New(&fakeLedger{})
	items, err := sel.Unposted(context.Background(), nil, 2)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSelector_Unposted_LedgerError(t *testing.T) {
	t.Parallel()

	sel := New(&fakeLedger{err: errors.New("store down")})
	_, err := sel.Unposted(context.Background(), snapshotABC(), 0)
	require.Error(t, err)
}
