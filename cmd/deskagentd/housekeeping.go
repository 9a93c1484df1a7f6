package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// startHousekeeping runs the stale-lock sweep and checkpoint-pruning pass on
// a robfig/cron schedule, the same library the teacher depends on for its
// own scheduled-task runner (internal/tasks/scheduler.go), here driving
// cron.New()+AddFunc directly instead of the teacher's ticker-polled queue
// since this daemon only ever runs these two fixed jobs.
func (d *daemon) startHousekeeping() (*cron.Cron, error) {
	c := cron.New()

	staleLockMaxAge := d.cfg.TaskTimeout()
	if _, err := c.AddFunc("@every 1m", func() {
		if n := d.conc.CleanupStaleLocks(staleLockMaxAge); n > 0 {
			slog.Warn("housekeeping: released stale window locks", "count", n)
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc("@every 10m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		n, err := d.store.PruneCheckpoints(ctx, 24*time.Hour)
		if err != nil {
			slog.Warn("housekeeping: checkpoint prune failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("housekeeping: pruned stale checkpoints", "count", n)
		}
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
