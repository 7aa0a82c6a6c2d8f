package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs cycles on a cron schedule, once at startup and on demand.
type Scheduler struct {
	runner   CycleRunner
	schedule string
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewScheduler(runner CycleRunner, schedule string) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	logger := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		runner:   runner,
		schedule: schedule,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.runCycle("schedule") }); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule cycle: %w", err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started", "schedule", s.schedule)

	s.Trigger("startup")
}

func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

// Trigger starts a cycle in the background. It reports false when a cycle
// is already in progress.
func (s *Scheduler) Trigger(reason string) bool {
	if s.runner.Running() || s.ctx.Err() != nil {
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycle(reason)
	}()
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.runner.Running()
}

func (s *Scheduler) runCycle(reason string) {
	if s.ctx.Err() != nil {
		return
	}

	slog.Debug("Running cycle", "reason", reason)
	if err := s.runner.Run(s.ctx); err != nil && !errors.Is(err, ErrCycleLocked) {
		slog.Debug("Cycle returned error", "reason", reason, "error", err)
	}
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error(msg, append(keysAndValues, "error", err)...)
}
