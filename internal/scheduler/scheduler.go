package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SleepSlice bounds how long a sleep goes without observing cancellation.
const SleepSlice = time.Second

// TaskFunc is one scheduled run. Runs never overlap.
type TaskFunc func(ctx context.Context) error

// Scheduler runs a task now and then at every activation of its schedule.
// The next activation is computed after the previous run returns, so a run
// that outlasts the interval delays the following one instead of stacking.
type Scheduler struct {
	name string
	task TaskFunc
	log  *zerolog.Logger

	mu       sync.Mutex
	expr     string
	schedule cron.Schedule
	changed  chan struct{}

	wg  sync.WaitGroup
	now func() time.Time
}

// NewScheduler parses expr (see ParseSchedule) and returns an idle scheduler.
func NewScheduler(name, expr string, task TaskFunc, log *zerolog.Logger) (*Scheduler, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}
	return &Scheduler{
		name:     name,
		task:     task,
		log:      log,
		expr:     expr,
		schedule: schedule,
		changed:  make(chan struct{}, 1),
		now:      time.Now,
	}, nil
}

// Start runs the scheduler loop in the background until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Stop waits for the loop started by Start to return, or for ctx to expire.
// Cancel the context given to Start first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until ctx is cancelled. Task errors are logged and do not stop
// the loop.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().
		Str("task", s.name).
		Str("schedule", s.Expr()).
		Msg("Starting scheduler")

	for {
		if ctx.Err() != nil {
			s.log.Info().Str("task", s.name).Msg("Scheduler received cancellation signal. Exiting...")
			return
		}

		s.log.Debug().Str("task", s.name).Msg("Scheduler triggering task execution")
		if err := s.task(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn().Str("task", s.name).Err(err).Msg("Error occurred while executing task")
		}

		if err := s.waitNext(ctx); err != nil {
			s.log.Info().Str("task", s.name).Msg("Scheduler received cancellation signal. Exiting...")
			return
		}
	}
}

// waitNext sleeps until the next activation. A schedule change during the
// sleep recomputes the activation from the new schedule.
func (s *Scheduler) waitNext(ctx context.Context) error {
	for {
		s.mu.Lock()
		schedule := s.schedule
		s.mu.Unlock()

		now := s.now()
		wait := schedule.Next(now).Sub(now)
		s.log.Debug().Str("task", s.name).Dur("wait", wait).Msg("Waiting for next run")

		sleepCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-s.changed:
				cancel()
			case <-sleepCtx.Done():
			}
		}()
		err := SleepContext(sleepCtx, wait)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// ResetSchedule replaces the schedule. A pending sleep is re-evaluated
// against the new schedule.
func (s *Scheduler) ResetSchedule(expr string) error {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return fmt.Errorf("failed to parse schedule: %w", err)
	}

	s.mu.Lock()
	s.expr = expr
	s.schedule = schedule
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}

	s.log.Info().Str("task", s.name).Str("schedule", expr).Msg("Scheduler schedule reset")
	return nil
}

// Expr returns the current schedule expression.
func (s *Scheduler) Expr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expr
}

// Name returns the name of the scheduled task.
func (s *Scheduler) Name() string {
	return s.name
}

// ParseSchedule accepts standard five-field cron expressions and descriptors
// such as "@hourly" or "@every 5m".
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression provided")
	}
	return cron.ParseStandard(expr)
}

// EveryExpr converts an interval in seconds to an "@every" expression.
func EveryExpr(seconds int) string {
	return "@every " + strconv.Itoa(seconds) + "s"
}

// ParseEveryExpr returns the interval of an "@every" expression.
func ParseEveryExpr(expr string) (time.Duration, error) {
	const prefix = "@every "
	if expr == "" {
		return 0, fmt.Errorf("empty expression provided")
	}
	if !strings.HasPrefix(expr, prefix) {
		return 0, fmt.Errorf("unsupported format: must start with %q", prefix)
	}
	return time.ParseDuration(strings.TrimPrefix(expr, prefix))
}

// SleepContext sleeps for d in slices of at most SleepSlice and returns
// ctx.Err() as soon as ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	for d > 0 {
		step := min(d, SleepSlice)
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		d -= step
	}
	return ctx.Err()
}
