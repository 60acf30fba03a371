package gemini

import (
	"context"
	"iter"
	"time"

	"google.golang.org/genai"
)

// ContentGenerator is the slice of *genai.Models the bot, research agent and
// examples depend on. *genai.Models satisfies it directly.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// FileService uploads media for multimodal prompts.
type FileService interface {
	Upload(ctx context.Context, path string, mimeType string) (*genai.File, error)
	Get(ctx context.Context, name string) (*genai.File, error)
	Delete(ctx context.Context, name string) error
}

// TokenRequest describes an ephemeral Live API token.
type TokenRequest struct {
	Uses                 int32
	ExpireTime           time.Time
	NewSessionExpireTime time.Time
	Model                string
	Config               *genai.LiveConnectConfig
}

// TokenService issues ephemeral tokens for browser clients.
type TokenService interface {
	CreateToken(ctx context.Context, req TokenRequest) (string, error)
}

// LiveStream is one bidirectional Live API session.
// Receive blocks until the next server message; Close unblocks it.
type LiveStream interface {
	SendText(text string) error
	SendAudio(data []byte, mimeType string) error
	SendToolResponse(responses []*genai.FunctionResponse) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

// LiveConnector opens Live API sessions.
type LiveConnector interface {
	Connect(ctx context.Context, model string, config *genai.LiveConnectConfig) (LiveStream, error)
}
