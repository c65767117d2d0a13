package release

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/inventory"
	"github.com/reelcast/reelcast/internal/relay"
	"github.com/reelcast/reelcast/internal/store/memory"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

// scriptedPublisher returns the scripted outcomes in order, then delivers.
type scriptedPublisher struct {
	outcomes  []relay.PublishOutcome
	published []string
}

func (p *scriptedPublisher) Publish(_ context.Context, item relay.Item) relay.PublishOutcome {
	p.published = append(p.published, item.NaturalKey())
	if len(p.outcomes) == 0 {
		return relay.PublishOutcome{Status: relay.PublishDelivered}
	}
	out := p.outcomes[0]
	p.outcomes = p.outcomes[1:]
	return out
}

type fixture struct {
	ledger    *memory.Ledger
	snapshots *memory.SnapshotStore
	publisher *scriptedPublisher
	ctrl      *Controller
}

func newFixture(t *testing.T, snap relay.Snapshot, outcomes ...relay.PublishOutcome) *fixture {
	t.Helper()
	ledger := memory.NewLedger()
	snapshots := memory.NewSnapshotStore()
	require.NoError(t, snapshots.Insert(context.Background(), snap))
	pub := &scriptedPublisher{outcomes: outcomes}
	ctrl := NewController(
		snapshots,
		ledger,
		inventory.New(ledger),
		pub,
		&fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		zap.NewNop(),
	)
	return &fixture{ledger: ledger, snapshots: snapshots, publisher: pub, ctrl: ctrl}
}

func item(title, link string) relay.Item {
	return relay.Item{Title: title, Link: link, ThumbURL: "https://cdn/" + title + ".jpg"}
}

func TestController_Release_DeliversRecordsAndPrunes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relay.Snapshot{Latest: []relay.Item{
		item("A", "https://example.com/a"),
		item("B", "https://example.com/b"),
	}})

	report, err := f.ctrl.Release(context.Background(), All)
	require.NoError(t, err)
	require.Equal(t, 2, report.Attempted)
	require.Equal(t, 2, report.Delivered)
	require.Zero(t, report.Failed)

	published, err := f.ledger.IsPublished(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	require.True(t, published)

	snap, err := f.snapshots.Latest(context.Background())
	require.NoError(t, err)
	require.Empty(t, snap.Items())
}

func TestController_Release_SecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relay.Snapshot{Latest: []relay.Item{
		item("A", "https://example.com/a"),
	}})

	first, err := f.ctrl.Release(context.Background(), All)
	require.NoError(t, err)
	require.Equal(t, 1, first.Delivered)

	second, err := f.ctrl.Release(context.Background(), All)
	require.NoError(t, err)
	require.Zero(t, second.Attempted)
	require.Zero(t, second.Delivered)

	require.Equal(t, 1, f.ledger.Len())
}

func TestController_Release_RateLimitHaltsCycleAndRetriesNext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relay.Snapshot{Latest: []relay.Item{
		item("A", "https://example.com/a"),
		item("B", "https://example.com/b"),
	}}, relay.PublishOutcome{Status: relay.PublishRateLimited, RetryAfter: 5 * time.Second})

	first, err := f.ctrl.Release(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, first.RateLimited)
	require.Zero(t, first.Delivered)

	// Nothing recorded or pruned, so the next cycle retries the same item.
	require.Zero(t, f.ledger.Len())

	second, err := f.ctrl.Release(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, second.Delivered)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/a"}, f.publisher.published)
	require.Equal(t, 1, f.ledger.Len())
}

func TestController_Release_PlainFailureContinuesToNextItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relay.Snapshot{Latest: []relay.Item{
		item("A", "https://example.com/a"),
		item("B", "https://example.com/b"),
	}}, relay.PublishOutcome{Status: relay.PublishFailed, Err: errors.New("boom")})

	report, err := f.ctrl.Release(context.Background(), All)
	require.NoError(t, err)
	require.Equal(t, 2, report.Attempted)
	require.Equal(t, 1, report.Delivered)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, "boom", report.LastError)

	// The failed item stays in the snapshot for the next cycle.
	snap, err := f.snapshots.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items(), 1)
	require.Equal(t, "A", snap.Items()[0].Title)
}

func TestController_Release_PrunesByKeyNotTitle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relay.Snapshot{Latest: []relay.Item{
		{Title: "Same Title", Link: "https://example.com/one"},
		{Title: "Same Title", Link: "https://example.com/two"},
	}})

	report, err := f.ctrl.Release(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, report.Delivered)

	snap, err := f.snapshots.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items(), 1)
	require.Equal(t, "https://example.com/two", snap.Items()[0].Link)
}

func TestController_Release_DuplicateAcrossSubListsSkipped(t *testing.T) {
	t.Parallel()

	dup := item("A", "https://example.com/a")
	f := newFixture(t, relay.Snapshot{
		Latest: []relay.Item{dup},
		Random: []relay.Item{dup},
	})

	report, err := f.ctrl.Release(context.Background(), All)
	require.NoError(t, err)
	require.Equal(t, 1, report.Delivered)
	require.Equal(t, 1, report.Duplicates)
	require.Equal(t, 1, f.ledger.Len())
}

func TestController_Release_NoSnapshot(t *testing.T) {
	t.Parallel()

	ledger := memory.NewLedger()
	ctrl := NewController(
		memory.NewSnapshotStore(),
		ledger,
		inventory.New(ledger),
		&scriptedPublisher{},
		&fakeClock{},
		zap.NewNop(),
	)
	report, err := ctrl.Release(context.Background(), All)
	require.NoError(t, err)
	require.Zero(t, report.Attempted)
}

func TestController_Status(t *testing.T) {
	t.Parallel()

	f := newFixture(t, relay.Snapshot{Latest: []relay.Item{
		item("A", "https://example.com/a"),
		item("B", "https://example.com/b"),
	}})

	st, err := f.ctrl.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, st.Unposted)
	require.Equal(t, []string{"A", "B"}, st.SampleTitles)
	require.Empty(t, st.LastFailure)
}
