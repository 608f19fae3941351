package cron

import (
	"context"
	"log/slog"
)

// Sweeper is the subset of the snapshot cache needed by the sweep job.
// Defined here to avoid a dependency on the cache package.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// CacheSweepJob removes cached topics that fell out of the retention
// window.
type CacheSweepJob struct {
	Cache        Sweeper
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*CacheSweepJob)(nil)

// Name implements Job.
func (j *CacheSweepJob) Name() string {
	return "cache_sweep"
}

// Schedule implements Job.
func (j *CacheSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run sweeps the cache.
func (j *CacheSweepJob) Run(ctx context.Context) error {
	removed, err := j.Cache.Sweep(ctx)
	if err != nil {
		return err
	}
	if removed > 0 && j.Logger != nil {
		j.Logger.Info("cron: swept stale cached topics", "count", removed)
	}
	return nil
}
