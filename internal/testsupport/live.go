package testsupport

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/pkg/errors"
)

// ErrStreamClosed is returned by FakeLiveStream.Receive after Close
var ErrStreamClosed = errors.New("fake live stream closed")

// FakeLiveStream is a scripted gemini.LiveStream. Messages pushed with Push
// are returned by Receive in order; the On* hooks can push replies.
type FakeLiveStream struct {
	incoming  chan *genai.LiveServerMessage
	closed    chan struct{}
	closeOnce sync.Once

	mu            sync.Mutex
	texts         []string
	audio         [][]byte
	toolResponses [][]*genai.FunctionResponse

	OnText         func(text string) []*genai.LiveServerMessage
	OnAudio        func(data []byte) []*genai.LiveServerMessage
	OnToolResponse func(responses []*genai.FunctionResponse) []*genai.LiveServerMessage
}

func NewFakeLiveStream() *FakeLiveStream {
	return &FakeLiveStream{
		incoming: make(chan *genai.LiveServerMessage, 256),
		closed:   make(chan struct{}),
	}
}

// Push queues messages for Receive
func (s *FakeLiveStream) Push(msgs ...*genai.LiveServerMessage) {
	for _, m := range msgs {
		s.incoming <- m
	}
}

func (s *FakeLiveStream) SendText(text string) error {
	if s.IsClosed() {
		return ErrStreamClosed
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	hook := s.OnText
	s.mu.Unlock()
	if hook != nil {
		s.Push(hook(text)...)
	}
	return nil
}

func (s *FakeLiveStream) SendAudio(data []byte, mimeType string) error {
	if s.IsClosed() {
		return ErrStreamClosed
	}
	s.mu.Lock()
	s.audio = append(s.audio, data)
	hook := s.OnAudio
	s.mu.Unlock()
	if hook != nil {
		s.Push(hook(data)...)
	}
	return nil
}

func (s *FakeLiveStream) SendToolResponse(responses []*genai.FunctionResponse) error {
	if s.IsClosed() {
		return ErrStreamClosed
	}
	s.mu.Lock()
	s.toolResponses = append(s.toolResponses, responses)
	hook := s.OnToolResponse
	s.mu.Unlock()
	if hook != nil {
		s.Push(hook(responses)...)
	}
	return nil
}

func (s *FakeLiveStream) Receive() (*genai.LiveServerMessage, error) {
	select {
	case m := <-s.incoming:
		return m, nil
	case <-s.closed:
		return nil, ErrStreamClosed
	}
}

func (s *FakeLiveStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// IsClosed reports whether Close was called
func (s *FakeLiveStream) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Texts returns the text turns sent so far
func (s *FakeLiveStream) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// Audio returns the audio chunks sent so far
func (s *FakeLiveStream) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.audio...)
}

// ToolResponses returns the tool response batches sent so far
func (s *FakeLiveStream) ToolResponses() [][]*genai.FunctionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]*genai.FunctionResponse(nil), s.toolResponses...)
}

// FakeLiveConnector hands out FakeLiveStreams and records connect configs
type FakeLiveConnector struct {
	// NewStream customizes each stream; nil means NewFakeLiveStream
	NewStream func() *FakeLiveStream
	Err       error

	mu      sync.Mutex
	streams []*FakeLiveStream
	configs []*genai.LiveConnectConfig
	models  []string
}

func (c *FakeLiveConnector) Connect(ctx context.Context, model string, config *genai.LiveConnectConfig) (gemini.LiveStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.configs = append(c.configs, config)
	c.models = append(c.models, model)
	if c.Err != nil {
		return nil, c.Err
	}

	var s *FakeLiveStream
	if c.NewStream != nil {
		s = c.NewStream()
	} else {
		s = NewFakeLiveStream()
	}
	c.streams = append(c.streams, s)
	return s, nil
}

// Streams returns every stream created so far
func (c *FakeLiveConnector) Streams() []*FakeLiveStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeLiveStream(nil), c.streams...)
}

// Last returns the newest stream, or nil
func (c *FakeLiveConnector) Last() *FakeLiveStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streams) == 0 {
		return nil
	}
	return c.streams[len(c.streams)-1]
}

// Configs returns the config passed to each Connect
func (c *FakeLiveConnector) Configs() []*genai.LiveConnectConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*genai.LiveConnectConfig(nil), c.configs...)
}

// TextMessage is a model turn carrying text
func TextMessage(text string) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		ModelTurn: genai.NewContentFromText(text, genai.RoleModel),
	}}
}

// AudioMessage is a model turn carrying inline PCM
func AudioMessage(pcm []byte) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		ModelTurn: genai.NewContentFromBytes(pcm, "audio/pcm;rate=24000", genai.RoleModel),
	}}
}

// TurnComplete ends a turn
func TurnComplete() *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{TurnComplete: true}}
}

// Interrupted reports a barge-in
func Interrupted() *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{Interrupted: true}}
}

// ToolCall asks for function calls
func ToolCall(calls ...*genai.FunctionCall) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ToolCall: &genai.LiveServerToolCall{FunctionCalls: calls}}
}

// ResumptionUpdate carries a new session handle
func ResumptionUpdate(handle string) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{SessionResumptionUpdate: &genai.LiveServerSessionResumptionUpdate{NewHandle: handle, Resumable: true}}
}
