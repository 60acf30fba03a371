package examples

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/pkg/errors"
)

// Generate is a single prompt without config
func (r *Runner) Generate(ctx context.Context) error {
	const prompt = "Tell me places to visit in chennai."
	r.record("REQUEST", "prompt", prompt)

	start := r.now()
	resp, err := r.generator.GenerateContent(ctx, r.opts.Model, genai.Text(prompt), nil)
	if err != nil {
		return err
	}

	text := gemini.TextOf(resp)
	r.record("RESPONSE", "prompt", prompt, "response_text", text, "latency_ms", latencyMs(r.now().Sub(start)))
	r.tracer.SetOutput(ctx, text)
	fmt.Fprintln(r.opts.Out, text)
	return nil
}

// SystemInstruction steers the model with a persona and low temperature
func (r *Runner) SystemInstruction(ctx context.Context) error {
	const (
		prompt      = "0/0=?"
		instruction = "You are a Math Teacher. Help me solve problems"
	)
	var temperature float32 = 0.1

	r.record("REQUEST", "prompt", prompt, "config", map[string]any{
		"system_instruction": instruction,
		"temperature":        temperature,
	})

	start := r.now()
	resp, err := r.generator.GenerateContent(ctx, r.opts.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr(temperature),
	})
	if err != nil {
		return err
	}

	text := gemini.TextOf(resp)
	r.record("RESPONSE", "prompt", prompt, "response_text", text, "latency_ms", latencyMs(r.now().Sub(start)))
	r.tracer.SetOutput(ctx, text)
	fmt.Fprintf(r.opts.Out, "\nFINAL ANSWER:\n%s\n", text)
	return nil
}

// MultiTurn keeps the conversation history across two messages
func (r *Runner) MultiTurn(ctx context.Context) error {
	var history []*genai.Content

	for _, msg := range []string{"I have 2 dogs in my house.", "How many paws are in my house?"} {
		fmt.Fprintf(r.opts.Out, "USER: %s\n", msg)
		r.record("REQUEST", "type", "CHAT_MESSAGE", "input_message", msg)

		history = append(history, genai.NewContentFromText(msg, genai.RoleUser))
		start := r.now()
		resp, err := r.generator.GenerateContent(ctx, r.opts.Model, history, nil)
		if err != nil {
			return err
		}

		text := gemini.TextOf(resp)
		history = append(history, genai.NewContentFromText(text, genai.RoleModel))
		r.record("RESPONSE", "type", "CHAT_MESSAGE", "input_message", msg, "response_text", text,
			"latency_ms", latencyMs(r.now().Sub(start)))
		fmt.Fprintf(r.opts.Out, "\nMODEL: %s\n\n", text)
	}

	fmt.Fprintln(r.opts.Out, "--- CHAT HISTORY ---")
	for _, c := range history {
		text := ""
		if len(c.Parts) > 0 {
			text = c.Parts[0].Text
		}
		r.record("CHAT_HISTORY", "role", c.Role, "message", text)
		fmt.Fprintf(r.opts.Out, "%s: %s\n", c.Role, text)
	}

	r.tracer.SetOutput(ctx, history[len(history)-1].Parts[0].Text)
	return nil
}

// Streaming prints chunks as they arrive with dynamic thinking
func (r *Runner) Streaming(ctx context.Context) error {
	const prompt = "Explain how agentic AI works"
	r.record("REQUEST", "prompt", prompt, "config", map[string]any{"thinking_budget": -1})

	start := r.now()
	var full strings.Builder
	cfg := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](-1)},
	}

	fmt.Fprintln(r.opts.Out, "--- STREAM OUTPUT ---")
	for resp, err := range r.generator.GenerateContentStream(ctx, r.opts.Model, genai.Text(prompt), cfg) {
		if err != nil {
			return errors.Wrap(err, "stream")
		}
		text := gemini.TextOf(resp)
		full.WriteString(text)
		r.record("STREAM_CHUNK", "chunk_text", text)
		fmt.Fprint(r.opts.Out, text)
	}

	r.record("FINAL_RESPONSE", "prompt", prompt, "response_text", full.String(),
		"latency_ms", latencyMs(r.now().Sub(start)))
	r.tracer.SetOutput(ctx, full.String())
	fmt.Fprintf(r.opts.Out, "\n\nFINAL ANSWER:\n%s\n", full.String())
	return nil
}

// Thinking disables reasoning with a zero budget
func (r *Runner) Thinking(ctx context.Context) error {
	const prompt = "How does AI work?"
	r.record("REQUEST", "prompt", prompt, "config", map[string]any{"thinking_budget": 0})

	start := r.now()
	resp, err := r.generator.GenerateContent(ctx, r.opts.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	})
	if err != nil {
		return err
	}

	text := gemini.TextOf(resp)
	r.record("RESPONSE", "prompt", prompt, "response_text", text, "latency_ms", latencyMs(r.now().Sub(start)))
	r.tracer.SetOutput(ctx, text)
	fmt.Fprintf(r.opts.Out, "\nFINAL ANSWER:\n%s\n", text)
	return nil
}

// Multimodal sends an image with the prompt
func (r *Runner) Multimodal(ctx context.Context) error {
	const (
		prompt      = "Tell me about this instrument"
		instruction = "You are expert in describing images."
	)

	data, err := os.ReadFile(r.opts.ImagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrNotFound, "image %s", r.opts.ImagePath)
		}
		return errors.Wrapf(err, "read image %s", r.opts.ImagePath)
	}
	mimeType := mimetype.Detect(data)
	if !strings.HasPrefix(mimeType.String(), "image/") {
		return errors.NewValidationError("image_path", "not an image", mimeType.String())
	}

	r.record("REQUEST", "prompt", prompt, "image_path", r.opts.ImagePath, "config", map[string]any{
		"system_instruction": instruction,
		"thinking_budget":    -1,
	})

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeType.String()),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)}

	start := r.now()
	resp, err := r.generator.GenerateContent(ctx, r.opts.Model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		ThinkingConfig:    &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](-1)},
	})
	if err != nil {
		return err
	}

	text := gemini.TextOf(resp)
	r.record("RESPONSE", "prompt", prompt, "image_path", r.opts.ImagePath, "response_text", text,
		"latency_ms", latencyMs(r.now().Sub(start)))
	r.tracer.SetOutput(ctx, text)
	fmt.Fprintf(r.opts.Out, "\nFINAL ANSWER:\n%s\n", text)
	return nil
}
