package middleware

import (
	"context"
	"sort"
	"sync"
	"time"

	"geminilab/internal/tools"
)

// ToolUsageEvent is one finished tool invocation
type ToolUsageEvent struct {
	ToolName  string
	SessionID string
	Source    string
	Timestamp time.Time
	Duration  time.Duration
	Success   bool
}

// Recorder stores tool usage events
type Recorder interface {
	RecordToolUsage(ctx context.Context, event ToolUsageEvent)
}

// StatsMiddleware records tool usage into a Recorder.
type StatsMiddleware struct {
	recorder Recorder
}

// NewStatsMiddleware constructs a middleware with the provided recorder.
func NewStatsMiddleware(recorder Recorder) *StatsMiddleware {
	return &StatsMiddleware{recorder: recorder}
}

// Wrap adds stats tracking around a tool.
func (m *StatsMiddleware) Wrap(t tools.Tool) tools.Tool {
	if m == nil || m.recorder == nil {
		return t
	}

	return tools.New(t.Name(), t.Description(), t.Parameters(), func(ctx context.Context, args map[string]any) (any, error) {
		start := time.Now()
		result, err := t.Execute(ctx, args)

		event := ToolUsageEvent{
			ToolName:  t.Name(),
			Timestamp: time.Now(),
			Duration:  time.Since(start),
			Success:   err == nil,
		}
		if meta, ok := tools.MetadataFromContext(ctx); ok {
			event.SessionID = meta.SessionID
			event.Source = meta.Source
		}
		m.recorder.RecordToolUsage(ctx, event)

		return result, err
	})
}

// ToolStats aggregates usage for one tool
type ToolStats struct {
	Name          string
	Calls         int64
	Failures      int64
	TotalDuration time.Duration
	LastUsed      time.Time
}

// AvgDuration is the mean call duration
func (s ToolStats) AvgDuration() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Calls)
}

// UsageStats is an in-memory Recorder aggregated per tool
type UsageStats struct {
	mu    sync.Mutex
	tools map[string]*ToolStats
}

func NewUsageStats() *UsageStats {
	return &UsageStats{tools: make(map[string]*ToolStats)}
}

// RecordToolUsage implements Recorder
func (u *UsageStats) RecordToolUsage(_ context.Context, event ToolUsageEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	s, ok := u.tools[event.ToolName]
	if !ok {
		s = &ToolStats{Name: event.ToolName}
		u.tools[event.ToolName] = s
	}
	s.Calls++
	if !event.Success {
		s.Failures++
	}
	s.TotalDuration += event.Duration
	s.LastUsed = event.Timestamp
}

// Snapshot returns per-tool stats sorted by name
func (u *UsageStats) Snapshot() []ToolStats {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]ToolStats, 0, len(u.tools))
	for _, s := range u.tools {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
