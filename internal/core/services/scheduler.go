package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vncsmyrnk/pollvoter/internal/clock"
	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

// Scheduler runs cycles back to back with a fixed pause between them. A
// cycle never overlaps the next one.
type Scheduler struct {
	sync     ports.SyncService
	interval time.Duration
	sleeper  ports.Sleeper
	logger   *slog.Logger
}

func NewScheduler(sync ports.SyncService, interval time.Duration, sleeper ports.Sleeper, logger *slog.Logger) *Scheduler {
	if sleeper == nil {
		sleeper = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{sync: sync, interval: interval, sleeper: sleeper, logger: logger}
}

// Run loops until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.RunOnce(ctx)

		s.logger.Info("sleeping until next cycle", "interval", s.interval.String())
		if err := s.sleeper.Sleep(ctx, s.interval); err != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}
	}
}

// RunOnce runs a single cycle. Errors and panics are logged, never
// propagated, so the caller can keep scheduling.
func (s *Scheduler) RunOnce(ctx context.Context) (summary *domain.CycleSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			s.logger.Error("cycle aborted", "error", err)
		}
	}()

	summary, err = s.sync.RunCycle(ctx)
	if err != nil {
		s.logger.Error("cycle aborted", "error", err)
	}
	return summary, err
}
