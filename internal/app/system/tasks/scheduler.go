// internal/app/system/tasks/scheduler.go
// Package tasks runs periodic maintenance jobs on their own tickers.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named function run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each registered job in its own goroutine. Each run gets a
// context bounded by timeout.
type Scheduler struct {
	log     *zap.Logger
	timeout time.Duration
	jobs    []Job
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	return &Scheduler{
		log:     logger,
		timeout: timeout,
		stopCh:  make(chan struct{}),
	}
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(j Job) {
	s.jobs = append(s.jobs, j)
}

func (s *Scheduler) Start() {
	for _, j := range s.jobs {
		if j.Interval <= 0 || j.Run == nil {
			s.log.Warn("skipping invalid job", zap.String("job", j.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(j)
	}
	s.log.Info("task scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop signals every job loop and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.log.Info("task scheduler stopped")
}

func (s *Scheduler) loop(j Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(j)
		}
	}
}

func (s *Scheduler) runOnce(j Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", zap.String("job", j.Name), zap.Any("panic", r))
		}
	}()

	if err := j.Run(ctx); err != nil {
		s.log.Error("job failed", zap.String("job", j.Name), zap.Error(err))
	}
}
