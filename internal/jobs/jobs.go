// Package jobs runs periodic maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler wraps a cron runner whose tasks share a cancelable context.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(cron.Recover(cronLogger{log}))),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// Add registers a named task. spec accepts standard five-field cron
// expressions and descriptors such as @daily or @every 1h.
func (s *Scheduler) Add(name, spec string, task Task) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := task(s.ctx); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("job finished")
	})
	if err != nil {
		return fmt.Errorf("scheduling %s with %q: %w", name, spec, err)
	}
	s.log.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running tasks and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("jobs still running at shutdown")
	}
}

// cronLogger routes cron's own messages through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
