package examples

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/pkg/errors"
)

const (
	occamPrompt      = "Explain the concept of Occam's Razor and provide a simple, everyday example."
	physicistsPrompt = "Provide a list of 3 famous physicists and their key contributions"
	housesPrompt     = `Alice, Bob, and Carol each live in a different house on the same street: red, green, and blue.
The person who lives in the red house owns a cat.
Bob does not live in the green house.
Carol owns a dog.
The green house is to the left of the red house.
Alice does not own a cat.
Who lives in each house, and what pet do they own?`
)

// BasicThinking asks a reasoning question with the model's default thinking
func (r *Runner) BasicThinking(ctx context.Context) error {
	resp, err := r.generator.GenerateContent(ctx, r.opts.Model, genai.Text(occamPrompt), nil)
	if err != nil {
		return err
	}
	r.tracer.SetOutput(ctx, gemini.TextOf(resp))
	fmt.Fprintln(r.opts.Out, gemini.TextOf(resp))
	return nil
}

// ThinkingBudget caps reasoning at 1024 tokens
func (r *Runner) ThinkingBudget(ctx context.Context) error {
	resp, err := r.generator.GenerateContent(ctx, r.opts.Model, genai.Text(physicistsPrompt), &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](1024)},
	})
	if err != nil {
		return err
	}
	r.tracer.SetOutput(ctx, gemini.TextOf(resp))
	fmt.Fprintln(r.opts.Out, gemini.TextOf(resp))
	return nil
}

// ThoughtSummaries streams the puzzle answer and prints thought summaries
// separately from the final answer
func (r *Runner) ThoughtSummaries(ctx context.Context) error {
	var thoughts, answer strings.Builder

	cfg := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{IncludeThoughts: true},
	}
	for resp, err := range r.generator.GenerateContentStream(ctx, r.opts.Model, genai.Text(housesPrompt), cfg) {
		if err != nil {
			return errors.Wrap(err, "stream")
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}

		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			if part.Thought {
				if thoughts.Len() == 0 {
					fmt.Fprintln(r.opts.Out, "Thoughts summary:")
				}
				thoughts.WriteString(part.Text)
			} else {
				if answer.Len() == 0 {
					fmt.Fprintln(r.opts.Out, "Answer:")
				}
				answer.WriteString(part.Text)
			}
			fmt.Fprintln(r.opts.Out, part.Text)
		}
	}

	r.tracer.SetOutput(ctx, map[string]string{"thoughts": thoughts.String(), "answer": answer.String()})
	return nil
}
