// Package scheduler discovers schedule-triggered configurations due in
// the current (day, hour) window and runs them sequentially, with an
// atomic per-hour marker so racing scheduler invocations cannot double
// process a window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// RunFunc executes one transfer run for a configuration. Injected so the
// scheduler stays decoupled from project-client construction.
type RunFunc func(ctx context.Context, cfg *core.TransferConfig, trigger core.TriggerKind) (*core.TransferRun, error)

// Scheduler runs due configurations once per hour window.
type Scheduler struct {
	store  core.Store
	run    RunFunc
	logger *slog.Logger
	sched  *cron.Cron
}

// New creates a scheduler. If logger is nil, a discard logger is used.
func New(store core.Store, run RunFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{store: store, run: run, logger: logger}
}

// Pass processes all jobs due in now's (date, hour) window. Before
// running anything it test-and-sets the window's marker; when another
// invocation has already claimed the window, Pass returns immediately.
// Jobs execute sequentially, in discovery order; one job's failure does
// not stop the others.
func (s *Scheduler) Pass(ctx context.Context, now time.Time) error {
	date := now.Format("2006-01-02")
	day := int(now.Weekday())
	hour := now.Hour()

	claimed, err := s.store.ClaimScheduleSlot(date, hour)
	if err != nil {
		return fmt.Errorf("failed to claim schedule window: %w", err)
	}
	if !claimed {
		s.logger.Debug("schedule window already processed", "date", date, "hour", hour)
		return nil
	}

	configs, err := s.store.ListEnabledByTrigger(core.TriggerSchedule)
	if err != nil {
		return fmt.Errorf("failed to list scheduled configurations: %w", err)
	}

	s.logger.Info("scheduler pass", "date", date, "hour", hour, "candidates", len(configs))

	var errs []error
	for _, cfg := range configs {
		if !cfg.Schedule.Allows(day, hour) {
			continue
		}

		if cfg.Schedule.MaxRunsPerDay > 0 {
			count, err := s.store.IncrementRunCount(cfg.ID, date)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", cfg.Name, err))
				continue
			}
			if count > cfg.Schedule.MaxRunsPerDay {
				limitErr := &core.ScheduleLimitError{Config: cfg.Name, Limit: cfg.Schedule.MaxRunsPerDay}
				s.logger.Warn("job skipped", "config", cfg.Name, "reason", limitErr.Error())
				errs = append(errs, limitErr)
				continue
			}
		}

		if _, err := s.run(ctx, cfg, core.TriggerSchedule); err != nil {
			s.logger.Error("scheduled run failed", "config", cfg.Name, "error", err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", cfg.Name, err))
		}
	}

	return errors.Join(errs...)
}

// Start runs Pass at the top of every hour until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.sched != nil {
		return fmt.Errorf("scheduler already started")
	}

	s.sched = cron.New()
	_, err := s.sched.AddFunc("0 * * * *", func() {
		if err := s.Pass(ctx, time.Now()); err != nil {
			s.logger.Error("scheduler pass finished with errors", "error", err.Error())
		}
	})
	if err != nil {
		s.sched = nil
		return fmt.Errorf("failed to register schedule: %w", err)
	}

	s.sched.Start()
	s.logger.Info("scheduler started")
	return nil
}

// Stop halts the hourly schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.sched == nil {
		return
	}
	<-s.sched.Stop().Done()
	s.sched = nil
	s.logger.Info("scheduler stopped")
}
