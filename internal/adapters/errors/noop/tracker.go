package noop

import (
	"context"
	"sync/atomic"

	"geminilab/pkg/errors"
)

// Tracker discards events. It keeps a count of dropped errors so CLIs can
// report how many failures went untracked when Sentry is not configured.
type Tracker struct {
	dropped atomic.Int64
}

// New creates a new no-op tracker
func New() *Tracker {
	return &Tracker{}
}

// CaptureError drops the error
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	if err != nil {
		t.dropped.Add(1)
	}
	return nil
}

// CaptureMessage does nothing
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	return nil
}

// SetUser does nothing
func (t *Tracker) SetUser(ctx context.Context, userID string, email string, username string) {}

// AddBreadcrumb does nothing
func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
}

// Flush does nothing
func (t *Tracker) Flush(ctx context.Context) error {
	return nil
}

// Dropped returns how many errors were discarded
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}
