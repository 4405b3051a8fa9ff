// Package scheduler polls the wall clock and starts the weekly batch at its
// scheduled instant, with a catch-up fire on the following day when the
// scheduled run was missed.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
	"github.com/tphakala/shiftledger/internal/period"
)

// Defaults for the polling loop.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultCooldown     = 65 * time.Second
)

// Store answers whether a period already has a run record.
type Store interface {
	HasRunForPeriod(ctx context.Context, runType, periodKey string) (bool, error)
}

// BatchFunc runs one batch to completion for periodKey.
type BatchFunc func(ctx context.Context, trigger, periodKey string) error

// Outcome is the result of one clock check.
type Outcome int

const (
	Armed          Outcome = iota // nothing to do
	FiredSchedule                 // batch started at the scheduled instant
	FiredCatchup                  // batch started on the day after a missed instant
	AlreadyHandled                // the period already has a run record
)

func (o Outcome) String() string {
	switch o {
	case FiredSchedule:
		return "fired-schedule"
	case FiredCatchup:
		return "fired-catchup"
	case AlreadyHandled:
		return "already-handled"
	}
	return "armed"
}

// Fired reports whether the batch was invoked.
func (o Outcome) Fired() bool {
	return o == FiredSchedule || o == FiredCatchup
}

// Config controls the trigger.
type Config struct {
	Cron         string // standard 5-field expression in Location
	Location     *time.Location
	PollInterval time.Duration
	Cooldown     time.Duration
	Catchup      bool
}

// ConfigFrom builds a Config from settings.
func ConfigFrom(s *conf.Settings) Config {
	return Config{
		Cron:         s.Schedule.Cron,
		Location:     s.Location(),
		PollInterval: s.Schedule.PollInterval,
		Cooldown:     s.Schedule.Cooldown,
		Catchup:      s.Schedule.Catchup,
	}
}

// Trigger is the polling state machine. It is not safe for concurrent use;
// Run owns it for the lifetime of the loop.
type Trigger struct {
	cfg   Config
	sched cron.Schedule
	store Store
	batch BatchFunc
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   logger.Logger

	lastSeen      string    // period last fired or found handled by catch-up
	handledMinute time.Time // scheduled minute already fired or found handled
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Trigger) { t.now = now }
}

// WithSleeper replaces the wait between polls.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Trigger) { t.sleep = sleep }
}

// New parses the schedule and creates a trigger.
func New(cfg Config, store Store, batch BatchFunc, log logger.Logger, opts ...Option) (*Trigger, error) {
	sched, err := cron.ParseStandard(cfg.Cron)
	if err != nil {
		return nil, errors.New(err).
			Component("scheduler").
			Category(errors.CategoryConfiguration).
			Context("cron", cfg.Cron).
			Build()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if log == nil {
		log = logger.Global().Module("scheduler")
	}

	t := &Trigger{
		cfg:   cfg,
		sched: sched,
		store: store,
		batch: batch,
		now:   time.Now,
		sleep: sleepContext,
		log:   log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Run polls until ctx is cancelled. Batches run synchronously, so two never overlap.
func (t *Trigger) Run(ctx context.Context) error {
	t.log.Info("schedule trigger started",
		logger.String("cron", t.cfg.Cron),
		logger.String("timezone", t.cfg.Location.String()),
		logger.Duration("poll_interval", t.cfg.PollInterval),
		logger.Bool("catchup", t.cfg.Catchup))

	for {
		wait := t.cfg.PollInterval
		if t.Check(ctx).Fired() {
			// Step past the scheduled minute before polling again.
			wait = t.cfg.Cooldown
		}
		if err := t.sleep(ctx, wait); err != nil {
			t.log.Info("schedule trigger stopped")
			return nil
		}
	}
}

// Check evaluates the clock once and fires the batch when due.
func (t *Trigger) Check(ctx context.Context) Outcome {
	now := t.now().In(t.cfg.Location)
	minute := now.Truncate(time.Minute)

	if t.isScheduled(minute) {
		if minute.Equal(t.handledMinute) {
			return AlreadyHandled
		}
		key := period.KeyFor(minute, t.cfg.Location)
		if t.hasRun(ctx, key) {
			t.log.Info("period already has a run, not firing", logger.String("period", key))
			t.handledMinute = minute
			return AlreadyHandled
		}
		// A batch that failed to leave a run record must not fire again this minute.
		t.handledMinute = minute
		t.fire(ctx, datastore.TriggerSchedule, key)
		return FiredSchedule
	}

	if !t.cfg.Catchup {
		return Armed
	}
	missed, ok := t.missedYesterday(now)
	if !ok {
		return Armed
	}
	key := period.KeyFor(missed, t.cfg.Location)
	if key == t.lastSeen {
		return Armed
	}
	if t.hasRun(ctx, key) {
		t.log.Info("missed schedule already has a run, no catch-up", logger.String("period", key))
		t.lastSeen = key
		return AlreadyHandled
	}
	t.log.Warn("scheduled run was missed, catching up",
		logger.String("period", key),
		logger.Time("scheduled_at", missed))
	t.fire(ctx, datastore.TriggerCatchup, key)
	return FiredCatchup
}

// isScheduled reports whether minute is one of the schedule's instants.
func (t *Trigger) isScheduled(minute time.Time) bool {
	return t.sched.Next(minute.Add(-time.Second)).Equal(minute)
}

// missedYesterday returns the last scheduled instant of the previous calendar
// day when one exists.
func (t *Trigger) missedYesterday(now time.Time) (time.Time, bool) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, t.cfg.Location)
	yesterday := today.AddDate(0, 0, -1)

	var last time.Time
	for next := t.sched.Next(yesterday.Add(-time.Second)); !next.IsZero() && next.Before(today); next = t.sched.Next(next) {
		last = next
	}
	return last, !last.IsZero()
}

// hasRun treats a store failure as "not run", preferring an extra batch to a
// missed one.
func (t *Trigger) hasRun(ctx context.Context, key string) bool {
	done, err := t.store.HasRunForPeriod(ctx, datastore.RunTypePipeline, key)
	if err != nil {
		t.log.Warn("run lookup failed, assuming period not run",
			logger.String("period", key),
			logger.Error(err))
		return false
	}
	return done
}

func (t *Trigger) fire(ctx context.Context, trigger, key string) {
	t.lastSeen = key
	t.log.Info("starting batch", logger.String("trigger", trigger), logger.String("period", key))

	start := t.now()
	if err := t.batch(ctx, trigger, key); err != nil {
		t.log.Error("batch failed", logger.String("period", key), logger.Error(err))
		return
	}
	t.log.Info("batch completed",
		logger.String("period", key),
		logger.Duration("duration", t.now().Sub(start)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
