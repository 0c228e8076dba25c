package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps cron-based jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		logger: logger,
	}
}

// Schedule registers job under spec (standard five-field or "@every 5m").
// Each run gets ctx, so cancelling it aborts in-flight work.
func (s *Scheduler) Schedule(ctx context.Context, name, spec string, timeout time.Duration, job func(ctx context.Context) error) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		if err := job(runCtx); err != nil {
			s.logger.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Debug("Scheduled job finished",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
		)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %s: %w", name, err)
	}
	return id, nil
}

// Run starts the cron loop and blocks until ctx is cancelled and running
// jobs have finished.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
