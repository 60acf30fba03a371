// Package live manages Gemini Live API sessions: connection state,
// interruptions, resumption handles and conversation history.
package live

import (
	"context"
	"iter"
	"sync"

	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// State is the lifecycle state of a session
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateInterrupted  State = "interrupted"
	StateClosing      State = "closing"
	StateClosed       State = "closed"
	StateError        State = "error"
)

// HistoryEntry is one message sent by this side of the conversation
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// SessionManager owns one Live API connection. Sends may run concurrently
// with Receive; state changes are reported through OnStateChange.
type SessionManager struct {
	connector gemini.LiveConnector
	model     string
	config    *genai.LiveConnectConfig
	log       *logger.Logger

	mu               sync.Mutex
	state            State
	stream           gemini.LiveStream
	resumptionHandle string
	history          []HistoryEntry
	onStateChange    func(State)
}

// NewSessionManager creates a disconnected session manager. config may be nil.
func NewSessionManager(connector gemini.LiveConnector, model string, config *genai.LiveConnectConfig) *SessionManager {
	return &SessionManager{
		connector: connector,
		model:     model,
		config:    config,
		state:     StateDisconnected,
		log:       logger.Get().Named("live"),
	}
}

// OnStateChange registers fn; it is called outside the manager's lock and
// only when the state actually changes
func (m *SessionManager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// State returns the current state
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether sends are accepted
func (m *SessionManager) IsConnected() bool {
	return m.State() == StateConnected
}

// ResumptionHandle returns the latest handle from the server, if any
func (m *SessionManager) ResumptionHandle() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumptionHandle
}

// History returns a copy of the messages sent in this session
func (m *SessionManager) History() []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

func (m *SessionManager) setState(s State) {
	m.mu.Lock()
	fn := m.transitionLocked(s)
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// transitionLocked updates the state and returns the callback to fire, if any
func (m *SessionManager) transitionLocked(s State) func(State) {
	if m.state == s {
		return nil
	}
	m.state = s
	return m.onStateChange
}

// connectConfig merges the defaults with the caller's config; the caller's
// fields win, and a known resumption handle is always passed on
func (m *SessionManager) connectConfig(handle string) *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{}
	if m.config != nil {
		c := *m.config
		cfg = &c
	}
	if len(cfg.ResponseModalities) == 0 {
		cfg.ResponseModalities = []genai.Modality{genai.ModalityAudio}
	}

	resumption := &genai.SessionResumptionConfig{}
	if cfg.SessionResumption != nil {
		r := *cfg.SessionResumption
		resumption = &r
	}
	if handle != "" {
		resumption.Handle = handle
	}
	cfg.SessionResumption = resumption
	return cfg
}

// Connect opens the Live API connection
func (m *SessionManager) Connect(ctx context.Context) error {
	m.setState(StateConnecting)

	cfg := m.connectConfig(m.ResumptionHandle())
	stream, err := m.connector.Connect(ctx, m.model, cfg)
	if err != nil {
		m.setState(StateError)
		m.log.Errorw("Live connection failed", "model", m.model, "error", err)
		return errors.Wrap(err, "connect live session")
	}

	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()

	m.setState(StateConnected)
	m.log.Infow("Live session connected", "model", m.model, "resumed", cfg.SessionResumption.Handle != "")
	return nil
}

// Disconnect closes the connection. It is a no-op without one.
func (m *SessionManager) Disconnect() error {
	m.mu.Lock()
	stream := m.stream
	m.mu.Unlock()
	if stream == nil {
		return nil
	}

	m.setState(StateClosing)
	err := stream.Close()
	if err != nil {
		m.log.Warnw("Error during disconnect", "error", err)
	}

	m.mu.Lock()
	m.stream = nil
	m.mu.Unlock()
	m.setState(StateClosed)
	return err
}

// connected returns the stream when sends are allowed
func (m *SessionManager) connected() (gemini.LiveStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.stream == nil {
		return nil, errors.ErrNotConnected
	}
	return m.stream, nil
}

// SendText sends a complete user turn and records it in history
func (m *SessionManager) SendText(text string) error {
	stream, err := m.connected()
	if err != nil {
		return err
	}
	if err := stream.SendText(text); err != nil {
		return errors.Wrap(err, "send text")
	}

	m.mu.Lock()
	m.history = append(m.history, HistoryEntry{Role: "user", Content: text, Type: "text"})
	m.mu.Unlock()
	return nil
}

// SendAudio streams a chunk of realtime audio
func (m *SessionManager) SendAudio(data []byte, mimeType string) error {
	stream, err := m.connected()
	if err != nil {
		return err
	}
	if mimeType == "" {
		mimeType = "audio/pcm"
	}
	return errors.Wrap(stream.SendAudio(data, mimeType), "send audio")
}

// SendToolResponse returns tool results to the model
func (m *SessionManager) SendToolResponse(responses []*genai.FunctionResponse) error {
	stream, err := m.connected()
	if err != nil {
		return err
	}
	return errors.Wrap(stream.SendToolResponse(responses), "send tool response")
}

// Receive yields server messages until the current turn completes. It works
// in the connected and interrupted states; an interruption moves the session
// to interrupted and resumption updates refresh the stored handle.
// Cancelling ctx stops iteration after the message in flight.
func (m *SessionManager) Receive(ctx context.Context) iter.Seq2[*genai.LiveServerMessage, error] {
	return func(yield func(*genai.LiveServerMessage, error) bool) {
		m.mu.Lock()
		stream, state := m.stream, m.state
		m.mu.Unlock()

		if stream == nil || (state != StateConnected && state != StateInterrupted) {
			yield(nil, errors.ErrNotConnected)
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			msg, err := stream.Receive()
			if err != nil {
				yield(nil, errors.Wrap(err, "receive"))
				return
			}

			if msg.ServerContent != nil && msg.ServerContent.Interrupted {
				m.setState(StateInterrupted)
			}
			if upd := msg.SessionResumptionUpdate; upd != nil && upd.NewHandle != "" {
				m.mu.Lock()
				m.resumptionHandle = upd.NewHandle
				m.mu.Unlock()
			}

			if !yield(msg, nil) {
				return
			}
			if msg.ServerContent != nil && msg.ServerContent.TurnComplete {
				return
			}
		}
	}
}

// Resume returns to connected after an interruption
func (m *SessionManager) Resume() {
	m.mu.Lock()
	if m.state != StateInterrupted {
		m.mu.Unlock()
		return
	}
	fn := m.transitionLocked(StateConnected)
	m.mu.Unlock()
	if fn != nil {
		fn(StateConnected)
	}
}

// Reset closes the session, forgets history and the resumption handle, and
// connects again
func (m *SessionManager) Reset(ctx context.Context) error {
	_ = m.Disconnect()

	m.mu.Lock()
	m.history = nil
	m.resumptionHandle = ""
	m.mu.Unlock()

	return m.Connect(ctx)
}
