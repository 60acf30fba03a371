package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"geminilab/internal/adapters/config"
	"geminilab/pkg/errors"
)

func response(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}
}

func TestTextOfSkipsThoughts(t *testing.T) {
	resp := response(
		&genai.Part{Text: "pondering", Thought: true},
		&genai.Part{Text: "Hello, "},
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: "calculator"}},
		&genai.Part{Text: "world"},
	)

	assert.Equal(t, "Hello, world", TextOf(resp))
	assert.Equal(t, "", TextOf(nil))
	assert.Equal(t, "", TextOf(&genai.GenerateContentResponse{}))
}

func TestThoughtsAndAnswer(t *testing.T) {
	thoughts, answer := ThoughtsAndAnswer(response(
		&genai.Part{Text: "Step 1. ", Thought: true},
		&genai.Part{Text: "Step 2.", Thought: true},
		&genai.Part{Text: "The cat lives in the red house."},
	))

	assert.Equal(t, "Step 1. Step 2.", thoughts)
	assert.Equal(t, "The cat lives in the red house.", answer)
}

func TestFunctionCalls(t *testing.T) {
	resp := response(
		&genai.Part{Text: "let me check"},
		&genai.Part{FunctionCall: &genai.FunctionCall{ID: "1", Name: "get_weather"}},
		&genai.Part{FunctionCall: &genai.FunctionCall{ID: "2", Name: "calculator"}},
	)

	calls := FunctionCalls(resp)
	require.Len(t, calls, 2)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.Equal(t, "2", calls[1].ID)
	assert.Nil(t, FunctionCalls(response(&genai.Part{Text: "no calls"})))
}

func TestInlineAudio(t *testing.T) {
	msg := &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		ModelTurn: &genai.Content{Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: []byte{1, 2}, MIMEType: "audio/pcm"}},
			{Text: "hi"},
			{InlineData: &genai.Blob{Data: []byte{3}, MIMEType: "audio/pcm"}},
		}},
	}}

	assert.Equal(t, []byte{1, 2, 3}, InlineAudio(msg))
	assert.Equal(t, []string{"hi"}, LiveText(msg))
	assert.Nil(t, InlineAudio(&genai.LiveServerMessage{}))
}

func TestInlineData(t *testing.T) {
	resp := response(
		&genai.Part{Text: "audio follows"},
		&genai.Part{InlineData: &genai.Blob{Data: []byte{9, 9}, MIMEType: "audio/L16;rate=24000"}},
	)

	blob := InlineData(resp)
	require.NotNil(t, blob)
	assert.Equal(t, []byte{9, 9}, blob.Data)
	assert.Nil(t, InlineData(response(&genai.Part{Text: "none"})))
}

func TestUsageOf(t *testing.T) {
	resp := response(&genai.Part{Text: "x"})
	resp.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     12,
		CandidatesTokenCount: 30,
		ThoughtsTokenCount:   100,
		TotalTokenCount:      142,
	}

	assert.Equal(t, Usage{PromptTokens: 12, OutputTokens: 30, ThoughtsTokens: 100, TotalTokens: 142}, UsageOf(resp))
	assert.Equal(t, Usage{}, UsageOf(response()))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), config.GeminiConfig{APIVersion: "v1alpha"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestNewClientWithKey(t *testing.T) {
	client, err := NewClient(context.Background(), config.GeminiConfig{APIKey: "test-key", APIVersion: "v1alpha"})
	require.NoError(t, err)
	assert.NotNil(t, client.Models)
	assert.NotNil(t, NewLive(client))
	assert.NotNil(t, NewFiles(client))
	assert.NotNil(t, NewTokens(client))

	var _ ContentGenerator = client.Models
}
