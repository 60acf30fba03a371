package observability

import (
	"context"

	"geminilab/pkg/errors"
)

// WithSessionID associates spans, tracked errors and log records started
// under ctx with a session.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return errors.WithSessionID(ctx, sessionID)
}

// SessionIDFromContext returns the session set by WithSessionID
func SessionIDFromContext(ctx context.Context) (string, bool) {
	return errors.SessionIDFromContext(ctx)
}
