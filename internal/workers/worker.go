package workers

import (
	"context"
	"sync"
	"time"

	"geminilab/pkg/logger"
)

// Worker is a periodic maintenance job. The scheduler calls Run once at
// start and then every Interval while Enabled.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
	Interval() time.Duration
	Enabled() bool
}

// WorkerWithHealth is a Worker the scheduler can report on
type WorkerWithHealth interface {
	Worker
	Health() WorkerHealth
	RecordRun(duration time.Duration)
	RecordError(err error, duration time.Duration)
}

const (
	// failingMinRuns is how many runs are needed before the error rate counts
	failingMinRuns = 10
	// failingErrorRate marks a worker failing once exceeded
	failingErrorRate = 0.5
	// failingStreak marks a worker failing after this many errors in a row
	failingStreak = 5
)

// WorkerHealth is a snapshot of a worker's run history
type WorkerHealth struct {
	Enabled           bool
	LastRun           time.Time
	LastDuration      time.Duration
	LastError         error
	RunCount          int64
	ErrorCount        int64
	ConsecutiveErrors int64
	AvgDuration       time.Duration
}

// ErrorRate is ErrorCount / RunCount, zero before the first run
func (h WorkerHealth) ErrorRate() float64 {
	if h.RunCount == 0 {
		return 0
	}
	return float64(h.ErrorCount) / float64(h.RunCount)
}

// Stale reports whether the worker has not run within maxAge of now
func (h WorkerHealth) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(h.LastRun) > maxAge
}

// Failing reports a long error streak, or a high error rate over enough runs
func (h WorkerHealth) Failing() bool {
	if h.ConsecutiveErrors >= failingStreak {
		return true
	}
	return h.RunCount > failingMinRuns && h.ErrorRate() > failingErrorRate
}

// BaseWorker carries the name, schedule and run history; concrete workers
// embed it and add Run
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu      sync.RWMutex
	enabled bool
	health  WorkerHealth
	total   time.Duration
}

// NewBaseWorker creates a base worker. A non-positive interval disables it.
func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled && interval > 0,
		log:      logger.Get().Named("worker").With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Log() *logger.Logger     { return w.log }

func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

// SetEnabled switches the worker on or off; a worker without an interval stays off
func (w *BaseWorker) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled && w.interval > 0
	w.mu.Unlock()
	w.log.Infow("Worker enabled state changed", "enabled", enabled)
}

// Health returns a copy of the run history
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	h := w.health
	h.Enabled = w.enabled
	if h.RunCount > 0 {
		h.AvgDuration = w.total / time.Duration(h.RunCount)
	}
	return h
}

func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.record(nil, duration)
}

func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.record(err, duration)
}

func (w *BaseWorker) record(err error, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.health.LastRun = time.Now()
	w.health.LastDuration = duration
	w.health.LastError = err
	w.health.RunCount++
	w.total += duration

	if err != nil {
		w.health.ErrorCount++
		w.health.ConsecutiveErrors++
	} else {
		w.health.ConsecutiveErrors = 0
	}
}
