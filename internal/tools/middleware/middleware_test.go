package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geminilab/internal/tools"
	"geminilab/pkg/errors"
)

func flakyHandler(failures int, calls *int) tools.HandlerFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		*calls++
		if *calls <= failures {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}
}

func TestRetryMiddleware(t *testing.T) {
	calls := 0
	tool := RetryMiddleware{Attempts: 3, Backoff: time.Millisecond}.
		Wrap(tools.New("flaky", "", nil, flakyHandler(2, &calls)))

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestRetryMiddleware_GivesUp(t *testing.T) {
	calls := 0
	tool := RetryMiddleware{Attempts: 2}.Wrap(tools.New("flaky", "", nil, flakyHandler(5, &calls)))

	_, err := tool.Execute(context.Background(), nil)
	assert.EqualError(t, err, "transient")
	assert.Equal(t, 2, calls)
}

func TestRetryMiddleware_SkipsValidationErrors(t *testing.T) {
	calls := 0
	tool := RetryMiddleware{Attempts: 3}.Wrap(tools.New("strict", "", nil, func(ctx context.Context, args map[string]any) (any, error) {
		calls++
		return nil, errors.NewValidationError("city", "required", nil)
	}))

	_, err := tool.Execute(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryMiddleware_ContextCancelled(t *testing.T) {
	calls := 0
	tool := RetryMiddleware{Attempts: 5, Backoff: time.Hour}.Wrap(tools.New("flaky", "", nil, flakyHandler(5, &calls)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tool.Execute(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestStatsMiddleware(t *testing.T) {
	stats := NewUsageStats()
	calls := 0
	tool := NewStatsMiddleware(stats).Wrap(tools.New("flaky", "desc", nil, flakyHandler(1, &calls)))

	ctx := tools.WithInvocationMetadata(context.Background(), tools.InvocationMetadata{SessionID: "s1", Source: "t2t"})
	_, err := tool.Execute(ctx, nil)
	assert.Error(t, err)
	_, err = tool.Execute(ctx, nil)
	assert.NoError(t, err)

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "flaky", snap[0].Name)
	assert.Equal(t, int64(2), snap[0].Calls)
	assert.Equal(t, int64(1), snap[0].Failures)
	assert.False(t, snap[0].LastUsed.IsZero())
	assert.Equal(t, "desc", tool.Description())
}

func TestFactoryBuild(t *testing.T) {
	stats := NewUsageStats()
	calls := 0
	tool := NewFactory("flaky", "flaky tool", nil, flakyHandler(1, &calls)).
		WithRetry(2, time.Millisecond).
		WithStats(stats).
		Build()

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "flaky", tool.Name())

	// stats sits outside retry, so both attempts count as one call
	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(1), snap[0].Calls)
	assert.Equal(t, int64(0), snap[0].Failures)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return Func(func(next tools.Tool) tools.Tool {
			return tools.New(next.Name(), "", nil, func(ctx context.Context, args map[string]any) (any, error) {
				order = append(order, name)
				return next.Execute(ctx, args)
			})
		})
	}

	base := tools.New("base", "", nil, func(ctx context.Context, args map[string]any) (any, error) { return nil, nil })
	_, err := Chain(base, mark("inner"), nil, mark("outer")).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}
