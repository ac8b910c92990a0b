// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/robfig/cron/v3"

	"github.com/Ramsey-B/fern/pkg/runlock"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

	ErrInvalidSchedule = errors.New("invalid cron schedule")
)

// DefaultSchedule runs the pipeline daily at 06:00 UTC.
const DefaultSchedule = "0 6 * * *"

// RunFunc runs the pipeline once.
type RunFunc func(ctx context.Context) error

// Scheduler calls a RunFunc on every tick of a standard cron expression,
// evaluated in UTC. A tick that fires while the previous run is still in
// flight is skipped.
type Scheduler struct {
	spec   string
	run    RunFunc
	logger ectologger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewScheduler(spec string, run RunFunc, logger ectologger.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, spec, err)
	}
	return &Scheduler{spec: spec, run: run, logger: logger}, nil
}

// Start registers the job and starts the cron loop. Runs use ctx, so
// cancelling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrSchedulerAlreadyRunning
	}

	logger := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	entryID, err := c.AddFunc(s.spec, func() { s.Trigger(ctx) })
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	c.Start()

	s.cron = c
	s.entryID = entryID
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"schedule": s.spec,
		"next_run": c.Entry(entryID).Next,
	}).Info("Scheduler started")
	return nil
}

// Stop stops the cron loop and waits for an in-flight run, up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	s.logger.WithContext(ctx).Info("Stopping scheduler...")
	select {
	case <-c.Stop().Done():
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Next returns the next scheduled run, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Trigger runs the pipeline once. A run lock held by another instance is
// logged and skipped.
func (s *Scheduler) Trigger(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Scheduler.Trigger")
	defer span.End()

	err := s.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, runlock.ErrLockNotAcquired):
		s.logger.WithContext(ctx).Info("Skipping scheduled run: another run holds the lock")
	default:
		tracing.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).Error("Scheduled pipeline run failed")
	}
}

// cronLogger adapts ectologger to cron.Logger.
type cronLogger struct {
	logger ectologger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error("cron: " + msg)
}

func fields(keysAndValues []any) map[string]any {
	out := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out[key] = keysAndValues[i+1]
	}
	return out
}
