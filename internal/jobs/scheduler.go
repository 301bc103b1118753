// Package jobs runs the periodic background work of cmd/workers on a cron
// schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Func is one run of a job. The context is cancelled when the scheduler stops.
type Func func(ctx context.Context) error

type entry struct {
	name    string
	spec    string
	id      cron.EntryID
	timeout time.Duration
}

// Scheduler owns a seconds-resolution cron and the named jobs on it.
// A run that is still going when its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	entries []entry
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job. An empty spec leaves the job disabled.
func (s *Scheduler) Register(name, spec string, timeout time.Duration, fn Func) error {
	if spec == "" {
		s.logger.Info("Job disabled", zap.String("job", name))
		return nil
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name, timeout, fn) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.entries = append(s.entries, entry{name: name, spec: spec, id: id, timeout: timeout})
	return nil
}

// RunNow executes a job once, outside any schedule.
func (s *Scheduler) RunNow(name string, timeout time.Duration, fn Func) {
	s.run(name, timeout, fn)
}

func (s *Scheduler) run(name string, timeout time.Duration, fn Func) {
	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Job panicked", zap.String("job", name), zap.Any("panic", r))
		}
	}()

	if err := fn(ctx); err != nil {
		s.logger.Error("Job failed", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Info("Job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.cron.Start()

	for _, e := range s.entries {
		s.logger.Info("Job scheduled",
			zap.String("job", e.name),
			zap.String("spec", e.spec),
			zap.Time("next", s.cron.Entry(e.id).Next))
	}
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
}
