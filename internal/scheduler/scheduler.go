// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Service wraps a cron runner with logging.
type Service struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates a stopped Service. Specs use the standard five-field syntax
// plus descriptors such as "@hourly" and "@every 10m".
func New(logger *zap.Logger) *Service {
	return &Service{
		cron:   cron.New(),
		logger: logger.Named("scheduler"),
	}
}

// Add registers a named job. Panics inside the job are logged and swallowed.
func (s *Service) Add(name, spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Panic in scheduled job", zap.String("job", name), zap.Any("panic", r))
			}
			s.logger.Debug("Scheduled job finished",
				zap.String("job", name),
				zap.Duration("duration", time.Since(start)))
		}()

		job()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	s.logger.Info("Scheduled job", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start runs the scheduler in the background.
func (s *Service) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Service) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop interrupted", zap.Error(ctx.Err()))
	}
}
