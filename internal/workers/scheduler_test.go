package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geminilab/pkg/errors"
)

// countingWorker counts runs and delegates to fn when set
type countingWorker struct {
	*BaseWorker
	runs atomic.Int32
	fn   func(ctx context.Context) error
}

func newCountingWorker(name string, interval time.Duration, enabled bool) *countingWorker {
	return &countingWorker{BaseWorker: NewBaseWorker(name, interval, enabled)}
}

func (w *countingWorker) Run(ctx context.Context) error {
	w.runs.Add(1)
	if w.fn != nil {
		return w.fn(ctx)
	}
	return nil
}

func (w *countingWorker) Runs() int { return int(w.runs.Load()) }

func startScheduler(t *testing.T, ws ...*countingWorker) *Scheduler {
	t.Helper()
	s := NewScheduler()
	for _, w := range ws {
		s.RegisterWorker(w)
	}
	require.NoError(t, s.Start(context.Background()))
	return s
}

func TestScheduler_RunsImmediatelyThenOnInterval(t *testing.T) {
	w := newCountingWorker("ticker", 20*time.Millisecond, true)
	s := startScheduler(t, w)
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return w.Runs() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestScheduler_SkipsDisabledWorkers(t *testing.T) {
	on := newCountingWorker("on", 20*time.Millisecond, true)
	off := newCountingWorker("off", 20*time.Millisecond, false)
	noInterval := newCountingWorker("no-interval", 0, true)
	s := startScheduler(t, on, off, noInterval)

	require.Eventually(t, func() bool { return on.Runs() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, off.Runs())
	assert.Zero(t, noInterval.Runs())
}

func TestScheduler_StopWaitsForInflightRun(t *testing.T) {
	var finished atomic.Bool
	w := newCountingWorker("slow", time.Hour, true)
	w.fn = func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	}
	s := startScheduler(t, w)

	require.Eventually(t, func() bool { return w.Runs() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Stop())
	assert.True(t, finished.Load())
}

func TestScheduler_StopTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	w := newCountingWorker("stuck", time.Hour, true)
	w.fn = func(ctx context.Context) error {
		<-release
		return nil
	}
	s := NewScheduler()
	s.stopTimeout = 20 * time.Millisecond
	s.RegisterWorker(w)
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return w.Runs() == 1 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, s.Stop(), errors.ErrTimeout)
}

func TestScheduler_ParentContextCancellation(t *testing.T) {
	w := newCountingWorker("ctx", 10*time.Millisecond, true)
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler()
	s.RegisterWorker(w)
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return w.Runs() >= 1 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, s.Stop())
	runs := w.Runs()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, runs, w.Runs())
}

func TestScheduler_StartStopErrors(t *testing.T) {
	s := NewScheduler()
	assert.ErrorIs(t, s.Stop(), errors.ErrInternal)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), errors.ErrAlreadyRunning)
	require.NoError(t, s.Stop())
}

func TestScheduler_RegisterAfterStartIsIgnored(t *testing.T) {
	s := startScheduler(t, newCountingWorker("first", time.Hour, true))
	s.RegisterWorker(newCountingWorker("late", time.Hour, true))
	require.NoError(t, s.Stop())

	workers := s.GetWorkers()
	require.Len(t, workers, 1)
	assert.Equal(t, "first", workers[0].Name())
}

func TestScheduler_RecordsHealthAndRecoversPanics(t *testing.T) {
	ok := newCountingWorker("ok", time.Hour, true)
	failing := newCountingWorker("failing", time.Hour, true)
	failing.fn = func(ctx context.Context) error { return errors.New("boom") }
	panicking := newCountingWorker("panicking", time.Hour, true)
	panicking.fn = func(ctx context.Context) error { panic("bad state") }

	s := startScheduler(t, ok, failing, panicking)
	require.Eventually(t, func() bool {
		return ok.Health().RunCount == 1 && failing.Health().RunCount == 1 && panicking.Health().RunCount == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.NoError(t, ok.Health().LastError)
	assert.Equal(t, int64(1), failing.Health().ErrorCount)
	assert.ErrorContains(t, panicking.Health().LastError, "bad state")
	assert.ErrorIs(t, panicking.Health().LastError, errors.ErrInternal)
}

func TestScheduler_Unhealthy(t *testing.T) {
	fresh := newCountingWorker("fresh", time.Minute, true)
	fresh.RecordRun(time.Millisecond)

	stale := newCountingWorker("stale", time.Minute, true)

	flaky := newCountingWorker("flaky", time.Minute, true)
	for i := 0; i < 12; i++ {
		if i%4 == 0 {
			flaky.RecordRun(time.Millisecond)
			continue
		}
		flaky.RecordError(errors.New("x"), time.Millisecond)
	}

	disabled := newCountingWorker("disabled", time.Minute, false)

	s := NewScheduler()
	for _, w := range []*countingWorker{fresh, stale, flaky, disabled} {
		s.RegisterWorker(w)
	}

	assert.ElementsMatch(t, []string{"stale", "flaky"}, s.Unhealthy(time.Hour))
	assert.ErrorContains(t, s.HealthCheck(time.Hour)(context.Background()), "stale")
}

func TestWorkerHealth_Failing(t *testing.T) {
	tests := []struct {
		name   string
		health WorkerHealth
		want   bool
	}{
		{"no runs", WorkerHealth{}, false},
		{"few runs all failing", WorkerHealth{RunCount: 4, ErrorCount: 4, ConsecutiveErrors: 4}, false},
		{"error streak", WorkerHealth{RunCount: 5, ErrorCount: 5, ConsecutiveErrors: 5}, true},
		{"high rate over enough runs", WorkerHealth{RunCount: 11, ErrorCount: 6}, true},
		{"recovered", WorkerHealth{RunCount: 20, ErrorCount: 4, ConsecutiveErrors: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.health.Failing())
		})
	}
}

func TestBaseWorker_History(t *testing.T) {
	w := NewBaseWorker("history", time.Second, true)
	w.RecordError(errors.New("first"), 10*time.Millisecond)
	w.RecordError(errors.New("second"), 20*time.Millisecond)

	h := w.Health()
	assert.Equal(t, int64(2), h.ConsecutiveErrors)
	assert.Equal(t, 15*time.Millisecond, h.AvgDuration)
	assert.InDelta(t, 1.0, h.ErrorRate(), 1e-9)

	w.RecordRun(30 * time.Millisecond)
	h = w.Health()
	assert.Zero(t, h.ConsecutiveErrors)
	assert.NoError(t, h.LastError)
	assert.Equal(t, 30*time.Millisecond, h.LastDuration)
	assert.True(t, h.Stale(h.LastRun.Add(2*time.Second), time.Second))
}

func TestBaseWorker_ZeroIntervalStaysDisabled(t *testing.T) {
	w := NewBaseWorker("never", 0, true)
	assert.False(t, w.Enabled())
	w.SetEnabled(true)
	assert.False(t, w.Enabled())

	assert.True(t, NewBaseWorker("often", time.Second, true).Enabled())
}
