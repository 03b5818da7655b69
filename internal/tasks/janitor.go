package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cron "github.com/netresearch/go-cron"
)

// janitorSchedule prunes once a minute.
const janitorSchedule = "* * * * *"

// Janitor prunes expired terminal tasks on a cron schedule and refreshes
// the status snapshot after each sweep.
type Janitor struct {
	reg      *Registry
	snapshot *SnapshotWriter // optional
	schedule cron.Schedule
}

// NewJanitor creates a janitor for the registry. snapshot may be nil.
func NewJanitor(reg *Registry, snapshot *SnapshotWriter) (*Janitor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(janitorSchedule)
	if err != nil {
		return nil, fmt.Errorf("parse janitor schedule: %w", err)
	}
	return &Janitor{reg: reg, snapshot: snapshot, schedule: schedule}, nil
}

// Run blocks until ctx is cancelled, sweeping at each schedule activation.
func (j *Janitor) Run(ctx context.Context) {
	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	removed := j.reg.Prune()
	if removed > 0 {
		slog.Debug("pruned expired tasks", "count", removed)
	}
	if j.snapshot != nil {
		if err := j.snapshot.Write(); err != nil {
			slog.Warn("snapshot write failed", "error", err)
		}
	}
}
