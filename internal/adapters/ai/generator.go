package ai

import (
	"context"
	"iter"
	"time"

	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/internal/metrics"
)

// LimitedGenerator wraps a ContentGenerator with a rate limiter and usage accounting.
type LimitedGenerator struct {
	next    gemini.ContentGenerator
	limiter RateLimiter
	usage   *UsageTracker
}

// NewLimitedGenerator creates a generator. A nil limiter never blocks; a nil
// tracker skips cost accounting.
func NewLimitedGenerator(next gemini.ContentGenerator, limiter RateLimiter, usage *UsageTracker) *LimitedGenerator {
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	return &LimitedGenerator{next: next, limiter: limiter, usage: usage}
}

// GenerateContent implements gemini.ContentGenerator
func (g *LimitedGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		metrics.RecordRateLimited(model, "unary")
		return nil, err
	}

	start := time.Now()
	resp, err := g.next.GenerateContent(ctx, model, contents, config)
	metrics.RecordGeneration(model, "unary", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	g.record(model, gemini.UsageOf(resp))
	return resp, nil
}

// GenerateContentStream implements gemini.ContentGenerator. Usage is recorded
// from the last chunk carrying usage metadata once the stream ends.
func (g *LimitedGenerator) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		if err := g.limiter.Wait(ctx); err != nil {
			metrics.RecordRateLimited(model, "stream")
			yield(nil, err)
			return
		}

		start := time.Now()
		var (
			usage     gemini.Usage
			streamErr error
		)
		defer func() {
			metrics.RecordGeneration(model, "stream", time.Since(start), streamErr)
			if streamErr == nil {
				g.record(model, usage)
			}
		}()

		for resp, err := range g.next.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				streamErr = err
			} else if resp != nil && resp.UsageMetadata != nil {
				usage = gemini.UsageOf(resp)
			}
			if !yield(resp, err) {
				return
			}
		}
	}
}

func (g *LimitedGenerator) record(model string, usage gemini.Usage) {
	if g.usage == nil || usage == (gemini.Usage{}) {
		return
	}
	cost := g.usage.Record(model, usage)
	costUSD, _ := cost.Float64()
	metrics.RecordTokens(model, usage.PromptTokens, usage.OutputTokens, usage.ThoughtsTokens, costUSD)
}
