// Package scheduler runs periodic maintenance jobs on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// StatusRefresher moves campaigns between scheduled, active and approved as
// the clock crosses their windows.
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context) (int, error)
}

// Scheduler owns a cron instance in the operational time zone.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a scheduler whose specs are read in loc. Overlapping runs of
// the same job are skipped.
func New(loc *time.Location, timeout time.Duration, logger *slog.Logger) *Scheduler {
	logger = logger.With(slog.String("component", "scheduler"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  logger,
		timeout: timeout,
	}
}

// AddStatusRefresh runs r on spec, e.g. "@every 1m" or "*/5 * * * *".
func (s *Scheduler) AddStatusRefresh(spec string, r StatusRefresher) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.runRefresh(ctx, r)
	})
	if err != nil {
		return fmt.Errorf("schedule status refresh %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) runRefresh(ctx context.Context, r StatusRefresher) {
	start := time.Now()
	n, err := r.RefreshStatuses(ctx)
	if err != nil {
		s.logger.Error("status refresh failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.logger.Info("campaign statuses refreshed", slog.Int("changed", n), slog.Duration("took", time.Since(start)))
	}
}

// Run starts the cron and blocks until ctx is done, then waits for running
// jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
