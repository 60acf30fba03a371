package bootstrap

import (
	"context"
	"reflect"
	"sync"
	"time"

	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// HTTPServer is the slice of api.Server the lifecycle stops
type HTTPServer interface {
	Shutdown(ctx context.Context) error
}

// Stopper is a background component stopped without a context
type Stopper interface {
	Stop() error
}

// SessionCloser closes every live relay session
type SessionCloser interface {
	CloseAll(ctx context.Context) error
}

// Flusher exports buffered data before exit
type Flusher interface {
	Shutdown(ctx context.Context) error
}

// Closer releases a connection
type Closer interface {
	Close() error
}

// Components lists what Shutdown stops. Nil fields are skipped.
type Components struct {
	WG           *sync.WaitGroup
	HTTPServer   HTTPServer
	Scheduler    Stopper
	Sessions     SessionCloser
	Tracer       Flusher
	ErrorTracker errors.Tracker
	Redis        Closer
}

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
	syncLogs        func() error
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
		syncLogs:        logger.Sync,
	}
}

// Shutdown stops components in order:
// 1. HTTP server so no new sessions are accepted
// 2. background workers
// 3. live relay sessions
// 4. tracer flush, which must follow the sessions that end spans
// 5. error tracker flush
// 6. log sync
// 7. redis, last because workers and sessions may still use it
//
// A failed step does not stop the rest; the returned error collects every
// failure.
func (l *Lifecycle) Shutdown(c Components, log *logger.Logger) ([]string, error) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	var (
		steps  []string
		failed errors.MultiError
	)
	step := func(name string, fn func() error) {
		steps = append(steps, name)
		log.Infow("Shutdown step", "step", len(steps), "component", name)
		if err := fn(); err != nil {
			log.Errorw("Shutdown step failed", "component", name, "error", err)
			failed.Add(errors.Wrap(err, name))
			return
		}
		log.Infow("✓ Stopped", "component", name)
	}

	if !isNil(c.HTTPServer) {
		step("http_server", func() error {
			ctx, cancel := context.WithTimeout(shutdownCtx, 5*time.Second)
			defer cancel()
			return c.HTTPServer.Shutdown(ctx)
		})
	}

	if !isNil(c.Scheduler) {
		step("workers", c.Scheduler.Stop)
	}

	if !isNil(c.Sessions) {
		step("live_sessions", func() error {
			ctx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
			defer cancel()
			return c.Sessions.CloseAll(ctx)
		})
	}

	if c.WG != nil {
		l.waitForGoroutines(c.WG, 5*time.Second, log)
	}

	if !isNil(c.Tracer) {
		step("tracer", func() error {
			ctx, cancel := context.WithTimeout(shutdownCtx, 5*time.Second)
			defer cancel()
			return c.Tracer.Shutdown(ctx)
		})
	}

	if !isNil(c.ErrorTracker) {
		step("error_tracker", func() error {
			ctx, cancel := context.WithTimeout(shutdownCtx, 3*time.Second)
			defer cancel()
			return c.ErrorTracker.Flush(ctx)
		})
	}

	step("logs", func() error {
		// stderr/stdout sync returns EINVAL on most terminals
		_ = l.syncLogs()
		return nil
	})

	if !isNil(c.Redis) {
		step("redis", c.Redis.Close)
	}

	if failed.HasErrors() {
		log.Warnw("Shutdown finished with errors", "failed", len(failed.Errors))
		return steps, failed.ToError()
	}
	log.Info("✅ Graceful shutdown complete")
	return steps, nil
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// isNil treats typed nil pointers held in an interface as absent
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
