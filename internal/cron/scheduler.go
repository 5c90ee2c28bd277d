// Package cron resets completed recurring quests on cron schedules so they
// can be completed again in the next period.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Store is the part of the domain store the scheduler needs. Last run times
// live in the key/value table so a restart catches up on missed resets.
type Store interface {
	ResetRecurringQuests(ctx context.Context, periodType string) (int64, error)
	KVLookup(ctx context.Context, key string) (string, bool, error)
	KVSet(ctx context.Context, key, value string) error
}

// Reset binds a quest period to a cron expression.
type Reset struct {
	PeriodType string
	Cron       string
}

// Config holds the dependencies for the cron scheduler.
type Config struct {
	Store    Store
	Logger   *slog.Logger
	Resets   []Reset
	Interval time.Duration // tick interval; defaults to 1 minute if zero
	Location *time.Location
	Now      func() time.Time
}

type job struct {
	period   string
	expr     string
	schedule cronlib.Schedule
}

// Scheduler periodically checks each reset schedule and resets the quests of
// every period that came due since its last run.
type Scheduler struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	jobs     []job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler validates every cron expression and builds a Scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Scheduler{
		store:    cfg.Store,
		logger:   logger.With("component", "cron"),
		interval: interval,
		loc:      loc,
		now:      now,
	}
	for _, r := range cfg.Resets {
		sched, err := cronParser.Parse(r.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse %s reset schedule %q: %w", r.PeriodType, r.Cron, err)
		}
		s.jobs = append(s.jobs, job{period: r.PeriodType, expr: r.Cron, schedule: sched})
	}
	return s, nil
}

// Start begins the scheduler loop. It runs in a background goroutine
// and respects the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("cron scheduler started", "interval", s.interval, "schedules", len(s.jobs))
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Catch up on startup, then on each tick.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every schedule that is due and returns how many quests were
// reset in total.
func (s *Scheduler) Tick(ctx context.Context) int64 {
	now := s.now().In(s.loc)
	var total int64
	for _, j := range s.jobs {
		n, err := s.runIfDue(ctx, j, now)
		if err != nil {
			s.logger.Error("cron: reset failed", "period_type", j.period, "cron_expr", j.expr, "error", err)
			continue
		}
		total += n
	}
	return total
}

func lastRunKey(period string) string {
	return "cron.reset." + period + ".last_run"
}

func (s *Scheduler) runIfDue(ctx context.Context, j job, now time.Time) (int64, error) {
	key := lastRunKey(j.period)
	raw, ok, err := s.store.KVLookup(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read last run: %w", err)
	}
	if !ok {
		// First start: begin counting from now instead of resetting at once.
		return 0, s.store.KVSet(ctx, key, now.UTC().Format(time.RFC3339))
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.logger.Warn("cron: unreadable last run, starting over", "period_type", j.period, "value", raw)
		return 0, s.store.KVSet(ctx, key, now.UTC().Format(time.RFC3339))
	}

	due := j.schedule.Next(last.In(s.loc))
	if now.Before(due) {
		return 0, nil
	}
	n, err := s.store.ResetRecurringQuests(ctx, j.period)
	if err != nil {
		return 0, err
	}
	if err := s.store.KVSet(ctx, key, now.UTC().Format(time.RFC3339)); err != nil {
		return n, fmt.Errorf("record last run: %w", err)
	}
	s.logger.Info("cron: recurring quests reset",
		"period_type", j.period,
		"reset", n,
		"due_at", due,
		"next_run_at", j.schedule.Next(now),
	)
	return n, nil
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
