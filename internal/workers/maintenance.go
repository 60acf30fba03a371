package workers

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"geminilab/internal/adapters/ai"
	"geminilab/internal/tools/middleware"
)

// TokenRefresher issues a new ephemeral token when the cached one is about
// to stop accepting new sessions
type TokenRefresher interface {
	Refresh(ctx context.Context, margin time.Duration) (bool, error)
}

// TokenPrewarmer keeps a usable ephemeral token in the cache so browsers
// never wait on token creation
type TokenPrewarmer struct {
	*BaseWorker
	issuer TokenRefresher
	margin time.Duration
}

// NewTokenPrewarmer refreshes the token when its new-session window closes
// within two intervals
func NewTokenPrewarmer(issuer TokenRefresher, interval time.Duration) *TokenPrewarmer {
	return &TokenPrewarmer{
		BaseWorker: NewBaseWorker("token_prewarmer", interval, issuer != nil),
		issuer:     issuer,
		margin:     2 * interval,
	}
}

func (w *TokenPrewarmer) Run(ctx context.Context) error {
	issued, err := w.issuer.Refresh(ctx, w.margin)
	if err != nil {
		return err
	}
	if issued {
		w.Log().Infow("Ephemeral token refreshed", "margin", w.margin)
	}
	return nil
}

// Reaper closes relay sessions older than maxAge
type Reaper interface {
	ReapExpired(maxAge time.Duration) int
}

// SessionReaper enforces the maximum relay session duration
type SessionReaper struct {
	*BaseWorker
	proxy  Reaper
	maxAge time.Duration
}

// NewSessionReaper is disabled when maxAge is not positive
func NewSessionReaper(proxy Reaper, interval, maxAge time.Duration) *SessionReaper {
	return &SessionReaper{
		BaseWorker: NewBaseWorker("session_reaper", interval, proxy != nil && maxAge > 0),
		proxy:      proxy,
		maxAge:     maxAge,
	}
}

func (w *SessionReaper) Run(ctx context.Context) error {
	if n := w.proxy.ReapExpired(w.maxAge); n > 0 {
		w.Log().Infow("Expired sessions closed", "count", n, "max_age", w.maxAge)
	}
	return nil
}

// UsageSource exposes accumulated token usage
type UsageSource interface {
	Snapshot() ai.UsageSnapshot
}

// ToolStatsSource exposes per-tool call counts
type ToolStatsSource interface {
	Snapshot() []middleware.ToolStats
}

// UsageReporter periodically logs token, cost and tool usage
type UsageReporter struct {
	*BaseWorker
	usage UsageSource
	tools ToolStatsSource
}

// NewUsageReporter creates the reporter; tools may be nil
func NewUsageReporter(usage UsageSource, tools ToolStatsSource, interval time.Duration) *UsageReporter {
	return &UsageReporter{
		BaseWorker: NewBaseWorker("usage_reporter", interval, usage != nil),
		usage:      usage,
		tools:      tools,
	}
}

func (w *UsageReporter) Run(ctx context.Context) error {
	snap := w.usage.Snapshot()
	if snap.Requests == 0 {
		return nil
	}

	w.Log().Infow("Generation usage",
		"since", humanize.Time(snap.Since),
		"requests", humanize.Comma(snap.Requests),
		"tokens", humanize.Comma(snap.Tokens),
		"cost_usd", snap.TotalCost.StringFixed(4),
	)
	for _, m := range snap.Models {
		w.Log().Infow("Model usage",
			"model", m.Model,
			"requests", humanize.Comma(m.Requests),
			"prompt_tokens", humanize.Comma(m.PromptTokens),
			"output_tokens", humanize.Comma(m.OutputTokens),
			"thoughts_tokens", humanize.Comma(m.ThoughtsTokens),
			"cost_usd", m.CostUSD.StringFixed(4),
		)
	}

	if w.tools == nil {
		return nil
	}
	for _, t := range w.tools.Snapshot() {
		w.Log().Infow("Tool usage",
			"tool", t.Name,
			"calls", humanize.Comma(t.Calls),
			"failures", humanize.Comma(t.Failures),
			"avg_duration", t.AvgDuration().Round(time.Millisecond),
			"last_used", humanize.Time(t.LastUsed),
		)
	}
	return nil
}
