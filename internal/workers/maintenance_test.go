package workers

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geminilab/internal/adapters/ai"
	"geminilab/internal/adapters/gemini"
	"geminilab/internal/tools/middleware"
	"geminilab/pkg/errors"
)

type fakeRefresher struct {
	margins []time.Duration
	issued  bool
	err     error
}

func (f *fakeRefresher) Refresh(ctx context.Context, margin time.Duration) (bool, error) {
	f.margins = append(f.margins, margin)
	return f.issued, f.err
}

type fakeReaper struct {
	maxAges []time.Duration
	reaped  int
}

func (f *fakeReaper) ReapExpired(maxAge time.Duration) int {
	f.maxAges = append(f.maxAges, maxAge)
	return f.reaped
}

type fakeToolStats []middleware.ToolStats

func (f fakeToolStats) Snapshot() []middleware.ToolStats { return f }

func TestTokenPrewarmer(t *testing.T) {
	issuer := &fakeRefresher{issued: true}
	w := NewTokenPrewarmer(issuer, time.Minute)

	assert.Equal(t, "token_prewarmer", w.Name())
	assert.True(t, w.Enabled())
	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []time.Duration{2 * time.Minute}, issuer.margins)

	issuer.err = errors.Wrap(errors.ErrUnavailable, "create token")
	assert.ErrorIs(t, w.Run(context.Background()), errors.ErrUnavailable)

	assert.False(t, NewTokenPrewarmer(nil, time.Minute).Enabled())
}

func TestSessionReaper(t *testing.T) {
	proxy := &fakeReaper{reaped: 2}
	w := NewSessionReaper(proxy, 30*time.Second, 15*time.Minute)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []time.Duration{15 * time.Minute}, proxy.maxAges)

	assert.False(t, NewSessionReaper(proxy, 30*time.Second, 0).Enabled())
}

func TestUsageReporter(t *testing.T) {
	tracker := ai.NewUsageTracker(nil)
	tools := fakeToolStats{{Name: "get_weather", Calls: 3, Failures: 1, TotalDuration: 300 * time.Millisecond, LastUsed: time.Now()}}
	w := NewUsageReporter(tracker, tools, time.Minute)

	// nothing recorded yet
	require.NoError(t, w.Run(context.Background()))

	cost := tracker.Record("gemini-2.5-flash", gemini.Usage{PromptTokens: 1200, OutputTokens: 300, TotalTokens: 1500})
	assert.True(t, cost.GreaterThanOrEqual(decimal.Zero))
	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, int64(1), tracker.Snapshot().Requests)

	assert.False(t, NewUsageReporter(nil, nil, time.Minute).Enabled())
}
