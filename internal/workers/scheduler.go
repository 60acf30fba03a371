package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"geminilab/internal/metrics"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// DefaultStopTimeout bounds how long Stop waits for in-flight runs
const DefaultStopTimeout = 30 * time.Second

// Scheduler manages and coordinates multiple workers
type Scheduler struct {
	workers     []WorkerWithHealth
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	log         *logger.Logger
	started     bool
	stopTimeout time.Duration
}

// NewScheduler creates a new worker scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		workers:     make([]WorkerWithHealth, 0),
		log:         logger.Get().Named("scheduler"),
		stopTimeout: DefaultStopTimeout,
	}
}

// RegisterWorker adds a worker to the scheduler
func (s *Scheduler) RegisterWorker(w WorkerWithHealth) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("Cannot register worker after scheduler has started", "worker", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval(), "enabled", w.Enabled())
}

// Start begins running all enabled workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrAlreadyRunning, "scheduler")
	}

	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	workers := append([]WorkerWithHealth(nil), s.workers...)
	s.mu.Unlock()

	s.log.Infow("Starting worker scheduler", "workers", len(workers))

	for _, worker := range workers {
		if !worker.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", worker.Name())
			continue
		}

		s.wg.Add(1)
		go s.runWorker(worker)
	}

	return nil
}

// Stop cancels all workers and waits for in-flight runs to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	timeout := s.stopTimeout
	s.mu.Unlock()

	s.log.Info("Stopping worker scheduler...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Info("All workers stopped gracefully")
	case <-time.After(timeout):
		s.log.Warnw("Worker shutdown timed out", "timeout", timeout)
		shutdownErr = errors.Wrapf(errors.ErrTimeout, "worker shutdown after %s", timeout)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return shutdownErr
}

// runWorker executes a single worker in a loop
func (s *Scheduler) runWorker(worker WorkerWithHealth) {
	defer s.wg.Done()

	ticker := time.NewTicker(worker.Interval())
	defer ticker.Stop()

	// Run immediately on start
	s.executeWorker(worker)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Debugw("Worker stopping", "worker", worker.Name())
			return
		case <-ticker.C:
			if worker.Enabled() {
				s.executeWorker(worker)
			}
		}
	}
}

// executeWorker runs one iteration, converting panics into errors
func (s *Scheduler) executeWorker(worker WorkerWithHealth) {
	start := time.Now()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Wrap(errors.ErrInternal, fmt.Sprintf("worker panicked: %v", r))
			}
		}()
		err = worker.Run(s.ctx)
	}()

	duration := time.Since(start)
	metrics.RecordWorkerExecution(worker.Name(), duration, err)

	if err != nil {
		worker.RecordError(err, duration)
		s.log.Errorw("Worker execution failed", "worker", worker.Name(), "error", err, "duration", duration)
		return
	}
	worker.RecordRun(duration)
	s.log.Debugw("Worker execution completed", "worker", worker.Name(), "duration", duration)
}

// GetWorkers returns the registered workers
func (s *Scheduler) GetWorkers() []WorkerWithHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := make([]WorkerWithHealth, len(s.workers))
	copy(workers, s.workers)
	return workers
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Unhealthy lists enabled workers that are stale for maxAge or failing
func (s *Scheduler) Unhealthy(maxAge time.Duration) []string {
	var unhealthy []string
	now := time.Now()

	for _, w := range s.GetWorkers() {
		h := w.Health()
		if !h.Enabled {
			continue
		}
		if h.Stale(now, maxAge) || h.Failing() {
			unhealthy = append(unhealthy, w.Name())
		}
	}
	return unhealthy
}

// HealthCheck adapts Unhealthy to the health endpoint
func (s *Scheduler) HealthCheck(maxAge time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if names := s.Unhealthy(maxAge); len(names) > 0 {
			return errors.Newf("unhealthy workers: %v", names)
		}
		return nil
	}
}
