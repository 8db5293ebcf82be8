// Package scheduler runs the periodic maintenance jobs of a long-lived process.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron specs. A job never overlaps with itself;
// a tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Scheduler. timeout bounds each job run; zero means unbounded.
func New(timeout time.Duration, logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		running: make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under name. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" {
		s.logger.Info().Str("job", name).Msg("Job disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Run(name, job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info().Str("job", name).Str("spec", spec).Msg("Job scheduled")
	return nil
}

// Run executes job immediately, unless a run of the same name is in progress.
// It reports whether the job ran.
func (s *Scheduler) Run(name string, job Job) bool {
	s.mu.Lock()
	if s.running[name] || s.ctx.Err() != nil {
		s.mu.Unlock()
		s.logger.Debug().Str("job", name).Msg("Skipping tick")
		return false
	}
	s.running[name] = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
		s.wg.Done()
	}()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("took", time.Since(started)).Msg("Job failed")
		return true
	}
	s.logger.Info().Str("job", name).Dur("took", time.Since(started)).Msg("Job finished")
	return true
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule, cancels running jobs and waits for them to return
// or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
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

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }
