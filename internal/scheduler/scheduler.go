// Package scheduler fires the release controller and the harvester at
// fixed local times of day.
package scheduler

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/relay"
)

// Releaser runs one release cycle.
type Releaser interface {
	Release(ctx context.Context, count int) (relay.ReleaseReport, error)
}

// Harvester runs one harvest pass.
type Harvester interface {
	Run(ctx context.Context) error
}

// Scheduler owns the single active timeline. It computes the exact delay
// to the next due entry and suspends until then; there is no wall-clock
// polling, so a trigger never fires twice within its minute slot.
type Scheduler struct {
	entries   []relay.ScheduleEntry
	loc       *time.Location
	clock     relay.Clock
	releaser  Releaser
	harvester Harvester
	logger    *zap.Logger
}

// New constructs a Scheduler over a static entry table.
func New(
	entries []relay.ScheduleEntry,
	loc *time.Location,
	clock relay.Clock,
	releaser Releaser,
	harvester Harvester,
	logger *zap.Logger,
) *Scheduler {
	sorted := append([]relay.ScheduleEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Hour != sorted[j].Hour {
			return sorted[i].Hour < sorted[j].Hour
		}
		return sorted[i].Minute < sorted[j].Minute
	})
	return &Scheduler{
		entries:   sorted,
		loc:       loc,
		clock:     clock,
		releaser:  releaser,
		harvester: harvester,
		logger:    logger,
	}
}

// Run blocks, firing entries until the context finishes. Entries that
// become due together execute sequentially, never concurrently: harvest
// and release mutate the same snapshot store.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.entries) == 0 {
		s.logger.Warn("no schedule entries configured")
		<-ctx.Done()
		return
	}
	for {
		now := s.clock.Now().In(s.loc)
		fireAt, due := s.nextFire(now)
		wait := fireAt.Sub(now)
		s.logger.Info("next trigger scheduled",
			zap.Time("at", fireAt),
			zap.Duration("in", wait),
			zap.Int("entries", len(due)),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		for _, entry := range due {
			if ctx.Err() != nil {
				return
			}
			s.fire(ctx, entry)
		}
	}
}

// nextFire returns the earliest upcoming fire time strictly after now,
// together with every entry due at that instant.
func (s *Scheduler) nextFire(now time.Time) (time.Time, []relay.ScheduleEntry) {
	var (
		best time.Time
		due  []relay.ScheduleEntry
	)
	for _, entry := range s.entries {
		occ := time.Date(now.Year(), now.Month(), now.Day(), entry.Hour, entry.Minute, 0, 0, s.loc)
		if !occ.After(now) {
			occ = occ.AddDate(0, 0, 1)
		}
		switch {
		case best.IsZero() || occ.Before(best):
			best = occ
			due = []relay.ScheduleEntry{entry}
		case occ.Equal(best):
			due = append(due, entry)
		}
	}
	return best, due
}

func (s *Scheduler) fire(ctx context.Context, entry relay.ScheduleEntry) {
	switch entry.Action {
	case relay.ActionHarvest:
		if err := s.harvester.Run(ctx); err != nil {
			// Transient by taxonomy: the next trigger retries the page.
			s.logger.Error("harvest trigger failed", zap.Error(err))
		}
	case relay.ActionReleaseN:
		metrics.ObserveReleaseCycle("scheduled")
		if _, err := s.releaser.Release(ctx, entry.Count); err != nil {
			s.logger.Error("release trigger failed", zap.Error(err))
		}
	case relay.ActionReleaseAll:
		metrics.ObserveReleaseCycle("scheduled")
		if _, err := s.releaser.Release(ctx, 0); err != nil {
			s.logger.Error("release-all trigger failed", zap.Error(err))
		}
	default:
		s.logger.Error("unknown schedule action", zap.String("action", string(entry.Action)))
	}
}
