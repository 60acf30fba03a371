package testsupport

import (
	"context"
	"iter"
	"sync"

	"google.golang.org/genai"
)

// GenerateCall is one request seen by FakeGenerator
type GenerateCall struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// FakeGenerator is a scripted gemini.ContentGenerator.
// GenerateContent returns Responses in order and repeats the last one.
// Each GenerateContentStream call consumes the next entry of Streams.
type FakeGenerator struct {
	Responses []*genai.GenerateContentResponse
	Streams   [][]*genai.GenerateContentResponse
	Err       error

	mu      sync.Mutex
	calls   []GenerateCall
	streamN int
}

func (f *FakeGenerator) record(model string, contents []*genai.Content, config *genai.GenerateContentConfig) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, GenerateCall{
		Model:    model,
		Contents: append([]*genai.Content(nil), contents...),
		Config:   config,
	})
	return len(f.calls) - 1
}

func (f *FakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	n := f.record(model, contents, config)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Responses) == 0 {
		return &genai.GenerateContentResponse{}, nil
	}
	if n >= len(f.Responses) {
		n = len(f.Responses) - 1
	}
	return f.Responses[n], nil
}

func (f *FakeGenerator) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.record(model, contents, config)

	f.mu.Lock()
	var chunks []*genai.GenerateContentResponse
	if f.streamN < len(f.Streams) {
		chunks = f.Streams[f.streamN]
	}
	f.streamN++
	f.mu.Unlock()

	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.Err != nil {
			yield(nil, f.Err)
		}
	}
}

// Calls returns every request so far
func (f *FakeGenerator) Calls() []GenerateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GenerateCall(nil), f.calls...)
}

// TextResponse builds a single-candidate model response
func TextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

// PartsResponse builds a model response from raw parts
func PartsResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromParts(parts, genai.RoleModel)}},
	}
}

// FunctionCallResponse builds a model response requesting calls
func FunctionCallResponse(calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, &genai.Part{FunctionCall: c})
	}
	return PartsResponse(parts...)
}
