package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geminilab/internal/adapters/config"
	errnoop "geminilab/internal/adapters/errors/noop"
	"geminilab/internal/api"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

type fakeComponent struct {
	name string
	rec  *recorder
	err  error
}

func (f *fakeComponent) Shutdown(ctx context.Context) error { f.rec.add(f.name); return f.err }
func (f *fakeComponent) Stop() error                        { f.rec.add(f.name); return f.err }
func (f *fakeComponent) CloseAll(ctx context.Context) error { f.rec.add(f.name); return f.err }
func (f *fakeComponent) Close() error                       { f.rec.add(f.name); return f.err }

func newTestLifecycle() *Lifecycle {
	l := NewLifecycle()
	l.syncLogs = func() error { return nil }
	return l
}

func TestShutdownOrder(t *testing.T) {
	rec := &recorder{}
	steps, err := newTestLifecycle().Shutdown(Components{
		WG:           &sync.WaitGroup{},
		HTTPServer:   &fakeComponent{name: "http", rec: rec},
		Scheduler:    &fakeComponent{name: "workers", rec: rec, err: errors.New("timeout")},
		Sessions:     &fakeComponent{name: "sessions", rec: rec},
		Tracer:       &fakeComponent{name: "tracer", rec: rec},
		ErrorTracker: errnoop.New(),
		Redis:        &fakeComponent{name: "redis", rec: rec},
	}, logger.Nop())

	assert.Equal(t, []string{"http", "workers", "sessions", "tracer", "redis"}, rec.calls)
	assert.Equal(t, []string{"http_server", "workers", "live_sessions", "tracer", "error_tracker", "logs", "redis"}, steps)
	assert.EqualError(t, err, "workers: timeout")
}

func TestShutdownCollectsEveryFailure(t *testing.T) {
	rec := &recorder{}
	_, err := newTestLifecycle().Shutdown(Components{
		HTTPServer: &fakeComponent{name: "http", rec: rec, err: errors.ErrTimeout},
		Redis:      &fakeComponent{name: "redis", rec: rec, err: errors.ErrUnavailable},
	}, logger.Nop())

	assert.Equal(t, []string{"http", "redis"}, rec.calls)
	var multi *errors.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 2)
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestShutdownSkipsMissingComponents(t *testing.T) {
	var server *api.Server
	steps, err := newTestLifecycle().Shutdown(Components{HTTPServer: server}, logger.Nop())
	assert.NoError(t, err)
	assert.Equal(t, []string{"logs"}, steps)
}

func TestWaitForGoroutinesTimesOut(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	defer wg.Done()

	start := time.Now()
	newTestLifecycle().waitForGoroutines(&wg, 20*time.Millisecond, logger.Nop())
	assert.Less(t, time.Since(start), time.Second)
}

func TestMaxInterval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, maxInterval(config.WorkerConfig{
		TokenPrewarmInterval:  time.Minute,
		SessionReaperInterval: 30 * time.Second,
		UsageReportInterval:   5 * time.Minute,
	}))
}

func TestProvideWorkers(t *testing.T) {
	s := provideWorkers(config.WorkerConfig{
		TokenPrewarmInterval:  time.Minute,
		SessionReaperInterval: 0,
		UsageReportInterval:   time.Minute,
	}, config.LiveConfig{MaxSessionDuration: 15 * time.Minute}, nil, nil, nil, nil)

	names := map[string]bool{}
	for _, w := range s.GetWorkers() {
		names[w.Name()] = w.Enabled()
	}
	assert.Equal(t, map[string]bool{"token_prewarmer": false, "session_reaper": false, "usage_reporter": false}, names)
}
