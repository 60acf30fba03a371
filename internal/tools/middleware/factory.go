package middleware

import (
	"time"

	"google.golang.org/genai"

	"geminilab/internal/tools"
)

// Factory provides fluent API for creating tools with middleware
type Factory struct {
	name        string
	description string
	parameters  *genai.Schema
	fn          tools.HandlerFunc

	// Middleware options
	withRetry   bool
	retryConfig RetryMiddleware

	recorder Recorder
}

// NewFactory creates a new factory for a tool
func NewFactory(name, description string, parameters *genai.Schema, fn tools.HandlerFunc) *Factory {
	return &Factory{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		// Default configs
		retryConfig: RetryMiddleware{Attempts: 3, Backoff: 500 * time.Millisecond},
	}
}

// WithRetry enables retry middleware
func (b *Factory) WithRetry(attempts int, backoff time.Duration) *Factory {
	b.withRetry = true
	b.retryConfig = RetryMiddleware{
		Attempts: attempts,
		Backoff:  backoff,
	}
	return b
}

// WithStats enables usage tracking; a nil recorder disables it
func (b *Factory) WithStats(recorder Recorder) *Factory {
	b.recorder = recorder
	return b
}

// Build creates the tool with configured middleware applied. Deadlines are
// left to tools.Executor, which bounds every call it dispatches.
func (b *Factory) Build() tools.Tool {
	t := tools.New(b.name, b.description, b.parameters, b.fn)

	// Inner layers first: retry -> stats
	var chain []Middleware
	if b.withRetry {
		chain = append(chain, b.retryConfig)
	}
	if b.recorder != nil {
		chain = append(chain, NewStatsMiddleware(b.recorder))
	}

	return Chain(t, chain...)
}
