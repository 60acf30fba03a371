package gemini

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"geminilab/pkg/errors"
)

// Live adapts client.Live to LiveConnector
type Live struct {
	live *genai.Live
}

// NewLive creates a LiveConnector backed by the SDK client
func NewLive(client *genai.Client) *Live {
	return &Live{live: client.Live}
}

// Connect opens a Live API session
func (l *Live) Connect(ctx context.Context, model string, config *genai.LiveConnectConfig) (LiveStream, error) {
	session, err := l.live.Connect(ctx, model, config)
	if err != nil {
		return nil, errors.Wrapf(err, "live connect %s", model)
	}
	return &liveStream{session: session}, nil
}

// liveStream serializes writes: the SDK session holds a single websocket
// connection which does not support concurrent writers.
type liveStream struct {
	session *genai.Session
	mu      sync.Mutex
}

func (s *liveStream) SendText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
	})
}

func (s *liveStream) SendAudio(data []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: data, MIMEType: mimeType},
	})
}

func (s *liveStream) SendToolResponse(responses []*genai.FunctionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: responses,
	})
}

func (s *liveStream) Receive() (*genai.LiveServerMessage, error) {
	return s.session.Receive()
}

func (s *liveStream) Close() error {
	return s.session.Close()
}
