package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/relay"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type recordingReleaser struct {
	counts []int
}

func (r *recordingReleaser) Release(_ context.Context, count int) (relay.ReleaseReport, error) {
	r.counts = append(r.counts, count)
	return relay.ReleaseReport{}, nil
}

type recordingHarvester struct {
	runs int
}

func (h *recordingHarvester) Run(context.Context) error {
	h.runs++
	return nil
}

func newTestScheduler(entries []relay.ScheduleEntry, now time.Time) (*Scheduler, *recordingReleaser, *recordingHarvester) {
	releaser := &recordingReleaser{}
	harvester := &recordingHarvester{}
	s := New(entries, time.UTC, &fakeClock{now: now}, releaser, harvester, zap.NewNop())
	return s, releaser, harvester
}

func TestScheduler_NextFire_PicksEarliestUpcoming(t *testing.T) {
	t.Parallel()

	entries := []relay.ScheduleEntry{
		{Hour: 12, Minute: 0, Action: relay.ActionReleaseN, Count: 4},
		{Hour: 15, Minute: 0, Action: relay.ActionReleaseN, Count: 4},
	}
	now := time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC)
	s, _, _ := newTestScheduler(entries, now)

	fireAt, due := s.nextFire(now)
	require.Equal(t, time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC), fireAt)
	require.Len(t, due, 1)
	require.Equal(t, 15, due[0].Hour)
}

func TestScheduler_NextFire_RollsOverToNextDay(t *testing.T) {
	t.Parallel()

	entries := []relay.ScheduleEntry{
		{Hour: 12, Minute: 0, Action: relay.ActionReleaseN, Count: 4},
	}
	now := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	s, _, _ := newTestScheduler(entries, now)

	fireAt, _ := s.nextFire(now)
	require.Equal(t, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), fireAt)
}

func TestScheduler_NextFire_ExactMinuteSchedulesTomorrow(t *testing.T) {
	t.Parallel()

	entries := []relay.ScheduleEntry{
		{Hour: 12, Minute: 0, Action: relay.ActionReleaseN, Count: 4},
	}
	// Exactly at the trigger instant: the slot counts as consumed.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, _, _ := newTestScheduler(entries, now)

	fireAt, _ := s.nextFire(now)
	require.Equal(t, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), fireAt)
}

func TestScheduler_NextFire_GroupsSimultaneousEntries(t *testing.T) {
	t.Parallel()

	entries := []relay.ScheduleEntry{
		{Hour: 11, Minute: 30, Action: relay.ActionHarvest},
		{Hour: 11, Minute: 30, Action: relay.ActionReleaseN, Count: 4},
		{Hour: 15, Minute: 0, Action: relay.ActionReleaseN, Count: 4},
	}
	now := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	s, _, _ := newTestScheduler(entries, now)

	fireAt, due := s.nextFire(now)
	require.Equal(t, time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC), fireAt)
	require.Len(t, due, 2)
}

func TestScheduler_Fire_DispatchesActions(t *testing.T) {
	t.Parallel()

	s, releaser, harvester := newTestScheduler(nil, time.Now())
	ctx := context.Background()

	s.fire(ctx, relay.ScheduleEntry{Action: relay.ActionHarvest})
	s.fire(ctx, relay.ScheduleEntry{Action: relay.ActionReleaseN, Count: 4})
	s.fire(ctx, relay.ScheduleEntry{Action: relay.ActionReleaseAll})

	require.Equal(t, 1, harvester.runs)
	require.Equal(t, []int{4, 0}, releaser.counts)
}

func TestScheduler_Run_StopsOnCancel(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	entries := []relay.ScheduleEntry{
		{Hour: 12, Minute: 0, Action: relay.ActionReleaseN, Count: 4},
	}
	s, releaser, harvester := newTestScheduler(entries, now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	require.Zero(t, harvester.runs)
	require.Empty(t, releaser.counts)
}
