package core

// scheduler.go runs background maintenance.
//
// Usage counts from old periods already read as zero, so quota correctness
// never depends on this job. It only keeps the usage table from growing
// without bound. A failed run is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// PurgeConfig holds settings for the usage purge job.
type PurgeConfig struct {
	Interval      time.Duration // how often to run (default: 24h)
	RetainPeriods int           // past monthly periods to keep (default: 3)
}

// StartPurgeScheduler purges stale usage records immediately and then
// every Interval. It blocks until ctx is cancelled.
func (s *Service) StartPurgeScheduler(ctx context.Context, cfg PurgeConfig) error {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RetainPeriods <= 0 {
		cfg.RetainPeriods = 3
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	if _, err := scheduler.Every(cfg.Interval).Do(s.runPurgeJob, ctx, cfg.RetainPeriods); err != nil {
		return err
	}

	slog.Info("purge scheduler started",
		"interval", cfg.Interval,
		"retain_periods", cfg.RetainPeriods,
	)
	scheduler.StartAsync()

	<-ctx.Done()
	scheduler.Stop()
	slog.Info("purge scheduler stopped")
	return nil
}

// runPurgeJob performs one purge.
func (s *Service) runPurgeJob(ctx context.Context, retain int) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()

	purged, err := s.gate.Purge(ctx, retain)
	if err != nil {
		slog.Error("usage purge failed", "error", err)
		return
	}

	slog.Info("purged stale usage records",
		"records_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
