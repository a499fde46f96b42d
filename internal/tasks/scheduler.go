// Package tasks runs the periodic jobs.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
)

// DailyNotifier the daily reminder job
type DailyNotifier interface {
	RunDaily(ctx context.Context, now time.Time) (*dto.RunSummary, error)
}

// Scheduler cron jobs in the schedule timezone
type Scheduler struct {
	cron     *cron.Cron
	notifier DailyNotifier
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler registers the daily notification job on push.cron
// (standard five-field spec, evaluated in schedule.timezone).
func NewScheduler(cfg *config.Config, notifier DailyNotifier, logger *zap.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger.Named("cron")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Schedule.Location()),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		notifier: notifier,
		timeout:  10 * time.Minute,
		logger:   logger,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.Push.Cron, s.runDaily); err != nil {
		return nil, fmt.Errorf("invalid push.cron %q: %w", cfg.Push.Cron, err)
	}
	return s, nil
}

// Start runs the jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("cron job scheduled", zap.Int("entry", int(e.ID)), zap.Time("next", e.Next))
	}
}

// Stop stops scheduling and waits for a running job, up to ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := s.now()
	sum, err := s.notifier.RunDaily(ctx, start)
	if err != nil {
		s.logger.Error("daily notification run failed", zap.Error(err))
		return
	}
	s.logger.Info("daily notification run finished",
		zap.String("run_id", sum.RunID),
		zap.Bool("skipped", sum.Skipped),
		zap.Duration("took", time.Since(start)),
	)
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
