// Package bot implements the text-to-text chat bot: a streaming conversation
// with thinking detection and an explicit function-calling loop.
package bot

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/internal/observability"
	"geminilab/internal/tools"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

const (
	// DefaultThinkingBudget is used by /think and by prompts that ask for reasoning
	DefaultThinkingBudget int32 = 1024

	// MaxToolRounds bounds the function-calling loop of one Generate call
	MaxToolRounds = 10
)

// SystemInstruction is sent with every request
const SystemInstruction = `You are a helpful and versatile AI assistant.
You have access to tools (like weather fetching), but you are NOT limited to them.
You can answer general knowledge questions, write code, analyze text, and engage in creative writing.
Use tools only when the user specifically asks for information that requires them (like current weather).
Otherwise, respond directly using your internal knowledge.`

var thinkingKeywords = []string{"think", "reason", "explain"}

var errStopped = errors.New("consumer stopped reading")

// Options tune one Generate call
type Options struct {
	// ThinkingBudget forces thinking when non-zero; -1 is dynamic
	ThinkingBudget int32
	// Context is prepended to the prompt
	Context string
}

// Bot is one conversation with the model
type Bot struct {
	id        string
	model     string
	generator gemini.ContentGenerator
	executor  *tools.Executor
	tracer    *observability.Tracer
	log       *logger.Logger

	// genMu serializes Generate calls
	genMu sync.Mutex

	histMu  sync.RWMutex
	history []*genai.Content
}

// New creates a bot with a fresh session ID
func New(generator gemini.ContentGenerator, executor *tools.Executor, tracer *observability.Tracer, model string) *Bot {
	if tracer == nil {
		tracer = observability.Disabled()
	}
	if executor == nil {
		executor = tools.NewExecutor(tools.NewRegistry(), tracer, 0)
	}
	id := uuid.NewString()
	return &Bot{
		id:        id,
		model:     model,
		generator: generator,
		executor:  executor,
		tracer:    tracer,
		log:       logger.Get().Named("bot").With("session_id", id),
	}
}

// SessionID identifies this conversation in traces
func (b *Bot) SessionID() string {
	return b.id
}

// History returns a copy of the conversation so far
func (b *Bot) History() []*genai.Content {
	b.histMu.RLock()
	defer b.histMu.RUnlock()
	return append([]*genai.Content(nil), b.history...)
}

func (b *Bot) appendHistory(c ...*genai.Content) {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	b.history = append(b.history, c...)
}

// appendTurn adds the user turn and returns a func that drops it, and
// everything recorded after it, again
func (b *Bot) appendTurn(c *genai.Content) (rollback func()) {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	mark := len(b.history)
	b.history = append(b.history, c)
	return func() {
		b.histMu.Lock()
		defer b.histMu.Unlock()
		clear(b.history[mark:])
		b.history = b.history[:mark]
	}
}

// ThinkingBudget resolves the thinking budget for prompt. ok is false when no
// thinking config should be sent.
func ThinkingBudget(prompt string, explicit int32) (budget int32, ok bool) {
	if explicit != 0 {
		return explicit, true
	}
	lower := strings.ToLower(prompt)
	for _, kw := range thinkingKeywords {
		if strings.Contains(lower, kw) {
			return DefaultThinkingBudget, true
		}
	}
	return 0, false
}

// WithContext builds the long-context prompt
func WithContext(prompt, context string) string {
	if context == "" {
		return prompt
	}
	return "Context:\n" + context + "\n\nQuestion: " + prompt
}

func (b *Bot) config(prompt string, opts Options) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		Tools:             b.executor.Registry().Tools(false),
	}
	if budget, ok := ThinkingBudget(prompt, opts.ThinkingBudget); ok {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(budget)}
	}
	return cfg
}

// Generate streams the reply to prompt. Failures end the stream with a final
// "Error: <err>" chunk carrying the error. A turn that fails or is abandoned
// by the consumer leaves the history as it was.
func (b *Bot) Generate(ctx context.Context, prompt string, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		b.genMu.Lock()
		defer b.genMu.Unlock()

		prompt := WithContext(prompt, opts.Context)
		cfg := b.config(prompt, opts)

		input := map[string]any{"prompt": prompt}
		if cfg.ThinkingConfig != nil {
			input["thinking_budget"] = *cfg.ThinkingConfig.ThinkingBudget
		}
		ctx := observability.WithSessionID(ctx, b.id)
		ctx = tools.WithInvocationMetadata(ctx, tools.InvocationMetadata{SessionID: b.id, Source: "bot"})
		ctx, span := b.tracer.TraceGeneration(ctx, "generate_response", input)
		defer span.End()

		rollback := b.appendTurn(genai.NewContentFromText(prompt, genai.RoleUser))

		var answer strings.Builder
		err := b.run(ctx, cfg, func(chunk string) bool {
			answer.WriteString(chunk)
			return yield(chunk, nil)
		})
		span.SetOutput(answer.String())
		if err != nil {
			rollback()
		}

		switch {
		case err == nil, errors.Is(err, errStopped):
		default:
			span.RecordError(err)
			b.log.Errorw("Error generating response", "error", err)
			yield("Error: "+err.Error(), err)
		}
	}
}

// run streams rounds until the model answers without function calls
func (b *Bot) run(ctx context.Context, cfg *genai.GenerateContentConfig, emit func(string) bool) error {
	for round := 0; round < MaxToolRounds; round++ {
		var (
			parts []*genai.Part
			calls []*genai.FunctionCall
			usage gemini.Usage
		)

		for resp, err := range b.generator.GenerateContentStream(ctx, b.model, b.History(), cfg) {
			if err != nil {
				return errors.Wrap(err, "generate content")
			}
			if u := gemini.UsageOf(resp); u.TotalTokens > 0 {
				usage = u
			}
			if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
				parts = append(parts, resp.Candidates[0].Content.Parts...)
			}
			calls = append(calls, gemini.FunctionCalls(resp)...)

			if text := gemini.TextOf(resp); text != "" {
				if !emit(text) {
					return errStopped
				}
			}
		}

		b.tracer.TrackTokenUsage(ctx, int(usage.PromptTokens), int(usage.OutputTokens))
		if len(parts) > 0 {
			b.appendHistory(genai.NewContentFromParts(parts, genai.RoleModel))
		}
		if len(calls) == 0 {
			return nil
		}

		b.log.Debugw("Executing function calls", "round", round+1, "count", len(calls))
		responses := b.executor.ExecuteAll(ctx, calls)
		replies := make([]*genai.Part, 0, len(responses))
		for _, r := range responses {
			replies = append(replies, &genai.Part{FunctionResponse: r})
		}
		b.appendHistory(genai.NewContentFromParts(replies, genai.RoleUser))
	}

	return errors.Newf("no final answer after %d function-calling rounds", MaxToolRounds)
}
