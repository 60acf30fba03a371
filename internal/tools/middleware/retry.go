package middleware

import (
	"context"
	"time"

	"geminilab/internal/tools"
	"geminilab/pkg/errors"
)

// RetryMiddleware retries tool execution on error with optional backoff.
type RetryMiddleware struct {
	Attempts int
	Backoff  time.Duration
}

// Wrap adds retry semantics to a tool. The final error from the last attempt is returned.
// Validation errors are not retried.
func (m RetryMiddleware) Wrap(t tools.Tool) tools.Tool {
	attempts := m.Attempts
	if attempts <= 1 {
		return t
	}

	backoff := m.Backoff

	return tools.New(t.Name(), t.Description(), t.Parameters(), func(ctx context.Context, args map[string]any) (any, error) {
		var result any
		var err error

		for i := 0; i < attempts; i++ {
			result, err = t.Execute(ctx, args)
			if err == nil {
				return result, nil
			}
			if errors.Is(err, errors.ErrInvalidInput) {
				return nil, err
			}

			if i < attempts-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff * time.Duration(i+1)):
				}
			}
		}

		return result, err
	})
}
