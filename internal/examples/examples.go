// Package examples holds the thinking and text-generation walkthroughs.
// Each example is a single traced generation that prints its result.
package examples

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"geminilab/internal/adapters/gemini"
	"geminilab/internal/observability"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// DefaultModel is used when Options.Model is empty
const DefaultModel = "gemini-2.5-flash"

type example struct {
	description string
	run         func(r *Runner, ctx context.Context) error
}

var registry = map[string]example{
	"basic-thinking":     {"Occam's Razor with default thinking", (*Runner).BasicThinking},
	"thinking-budget":    {"Three physicists with a 1024 token thinking budget", (*Runner).ThinkingBudget},
	"thought-summaries":  {"Logic puzzle with streamed thought summaries", (*Runner).ThoughtSummaries},
	"generate":           {"Plain text generation", (*Runner).Generate},
	"system-instruction": {"Math teacher system instruction at temperature 0.1", (*Runner).SystemInstruction},
	"multi-turn":         {"Two-turn chat with history", (*Runner).MultiTurn},
	"streaming":          {"Streaming with dynamic thinking", (*Runner).Streaming},
	"thinking":           {"Generation with thinking disabled", (*Runner).Thinking},
	"multimodal":         {"Image plus prompt", (*Runner).Multimodal},
}

// Names lists the runnable examples in a stable order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe returns the one-line description of an example
func Describe(name string) string {
	return registry[name].description
}

// Options configure a Runner
type Options struct {
	Model string
	// ImagePath is the picture sent by the multimodal example
	ImagePath string
	// Out receives the printed results; defaults to stdout
	Out io.Writer
	// Records receives REQUEST/RESPONSE JSON records; nil disables them
	Records *logger.Logger
}

// Runner executes examples against a ContentGenerator
type Runner struct {
	generator gemini.ContentGenerator
	tracer    *observability.Tracer
	opts      Options
	records   *logger.Logger
	now       func() time.Time
}

// NewRunner creates a runner
func NewRunner(generator gemini.ContentGenerator, tracer *observability.Tracer, opts Options) *Runner {
	if tracer == nil {
		tracer = observability.Disabled()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.ImagePath == "" {
		opts.ImagePath = "image.png"
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	records := opts.Records
	if records == nil {
		records = logger.Nop()
	}
	return &Runner{
		generator: generator,
		tracer:    tracer,
		opts:      opts,
		records:   records,
		now:       time.Now,
	}
}

// Run executes the named example inside a generation span
func (r *Runner) Run(ctx context.Context, name string) error {
	ex, ok := registry[name]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "example %q", name)
	}

	ctx, span := r.tracer.TraceGeneration(ctx, name, map[string]any{"model": r.opts.Model})
	defer span.End()

	if err := ex.run(r, ctx); err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "example %s", name)
	}
	return nil
}

func (r *Runner) record(event string, kv ...any) {
	r.records.Infow(event, append([]any{"event", event, "model", r.opts.Model}, kv...)...)
}

func latencyMs(d time.Duration) float64 {
	return float64(d.Microseconds()/10) / 100
}
