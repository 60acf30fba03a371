package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/internal/audio"
	session "geminilab/internal/live"
	"geminilab/internal/metrics"
	"geminilab/internal/observability"
	"geminilab/internal/tools"
	"geminilab/internal/tools/search"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// SessionMetrics is the per-session view served by /api/metrics
type SessionMetrics struct {
	SessionID       string  `json:"session_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	TurnCount       int     `json:"turn_count"`
	ToolCallsCount  int     `json:"tool_calls_count"`
	State           string  `json:"state"`
}

// LiveSession bridges one browser connection to one Live API session
type LiveSession struct {
	id       string
	conn     *clientConn
	manager  *session.SessionManager
	executor *tools.Executor
	tracer   *observability.Tracer
	limiter  *rate.Limiter
	log      *logger.Logger
	start    time.Time

	model string
	usage UsageRecorder

	ctx    context.Context
	cancel context.CancelFunc
	span   *observability.Span

	active    atomic.Bool
	turnCount atomic.Int64
	toolCalls atomic.Int64

	// resetMu orders resets against the receive loop; generation counts resets
	resetMu    sync.Mutex
	generation uint64

	stateMu   sync.Mutex
	lastState session.State

	loopDone chan struct{}
	closed   sync.Once
}

func newLiveSession(ctx context.Context, id string, conn *clientConn, manager *session.SessionManager, executor *tools.Executor, tracer *observability.Tracer, limiter *rate.Limiter, log *logger.Logger) *LiveSession {
	ctx = tools.WithInvocationMetadata(ctx, tools.InvocationMetadata{SessionID: id, Source: "live"})
	ctx = errors.WithSessionID(ctx, id)
	ctx, cancel := context.WithCancel(ctx)
	ctx, span := tracer.TraceSession(ctx, id, map[string]any{"source": "websocket"})

	s := &LiveSession{
		id:        id,
		conn:      conn,
		manager:   manager,
		executor:  executor,
		tracer:    tracer,
		limiter:   limiter,
		log:       log,
		start:     time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		span:      span,
		lastState: session.StateDisconnected,
		loopDone:  make(chan struct{}),
	}
	manager.OnStateChange(s.onStateChange)
	return s
}

// ID returns the session identifier
func (s *LiveSession) ID() string {
	return s.id
}

// Age is the time since the browser connected
func (s *LiveSession) Age() time.Duration {
	return time.Since(s.start)
}

// connect opens the Live API session and starts the receive loop
func (s *LiveSession) connect() error {
	s.log.Infow("Connecting session")
	if err := s.manager.Connect(s.ctx); err != nil {
		s.log.Errorw("Connection error", "error", err)
		s.tracer.TrackError(s.ctx, err, "connect")
		s.conn.Send(errorMessage("Connection failed: ", err))
		close(s.loopDone)
		return err
	}

	s.active.Store(true)
	s.log.Infow("Session connected")
	s.conn.Send(connectedMessage(s.id))

	go s.receiveLoop()
	return nil
}

// disconnect tears the session down once: closes the Live API session,
// waits for the receive loop, tells the browser and closes the socket
func (s *LiveSession) disconnect() {
	s.closed.Do(func() {
		s.active.Store(false)
		s.resetMu.Lock()
		if err := s.manager.Disconnect(); err != nil {
			s.log.Warnw("Error closing Live session", "error", err)
		}
		s.resetMu.Unlock()

		select {
		case <-s.loopDone:
		case <-time.After(5 * time.Second):
			s.log.Warnw("Receive loop did not stop in time")
		}

		s.conn.Send(disconnectedMessage(s.id))
		_ = s.conn.Close()

		s.span.SetAttributes(
			attribute.Int("total_turns", int(s.turnCount.Load())),
			attribute.Int("total_tool_calls", int(s.toolCalls.Load())),
		)
		s.span.End()
		s.cancel()
		s.log.Infow("Client disconnected", "turns", s.turnCount.Load(), "tool_calls", s.toolCalls.Load())
	})
}

// receiveLoop handles one turn per iteration until the session ends. A turn
// cut short by a reset moves on to the next turn of the new session.
func (s *LiveSession) receiveLoop() {
	defer close(s.loopDone)

	for s.active.Load() {
		s.resetMu.Lock()
		gen := s.generation
		s.resetMu.Unlock()

		turn := int(s.turnCount.Add(1))
		err := s.receiveTurn(turn)
		if err == nil {
			continue
		}
		if !s.active.Load() {
			return
		}

		s.resetMu.Lock()
		wasReset := s.generation != gen
		s.resetMu.Unlock()
		if wasReset {
			continue
		}

		s.log.Warnw("Receive loop error", "error", err)
		s.tracer.TrackError(s.ctx, err, "receive loop")
		s.conn.Send(errorMessage("Receive loop error: ", err))
		return
	}
}

func (s *LiveSession) receiveTurn(turn int) error {
	ctx, span := s.tracer.TraceTurn(s.ctx, turn, "")
	defer span.End()

	for msg, err := range s.manager.Receive(ctx) {
		if err != nil {
			span.RecordError(err)
			return err
		}
		s.handleServerMessage(ctx, span, turn, msg)
	}
	return nil
}

func (s *LiveSession) handleServerMessage(ctx context.Context, span *observability.Span, turn int, msg *genai.LiveServerMessage) {
	if pcm := gemini.InlineAudio(msg); len(pcm) > 0 {
		s.conn.Send(audioMessage(pcm))
	}
	for _, text := range gemini.LiveText(msg) {
		s.conn.Send(textMessage(text))
	}

	if msg.ToolCall != nil && len(msg.ToolCall.FunctionCalls) > 0 {
		s.handleToolCalls(ctx, msg.ToolCall.FunctionCalls)
	}

	if results := search.ParseMessage(msg); results.SearchPerformed {
		span.SetAttributes(attribute.Bool("search_performed", true))
		s.log.Debugw("Google Search used", "summary", search.FormatSummary(results))
	}

	if usage := msg.UsageMetadata; usage != nil {
		s.tracer.TrackTokenUsage(ctx, int(usage.PromptTokenCount), int(usage.ResponseTokenCount))
		if s.usage != nil {
			s.usage.Record(s.model, gemini.LiveUsageOf(msg))
		}
	}

	content := msg.ServerContent
	if content == nil {
		return
	}
	if content.Interrupted {
		metrics.LiveInterruptions.Inc()
		s.tracer.TrackInterruption(ctx)
		s.conn.Send(Message{"type": TypeInterrupted})
		s.manager.Resume()
	}
	if content.TurnComplete {
		metrics.LiveTurns.Inc()
		s.conn.Send(turnCompleteMessage(turn))
	}
}

// handleToolCalls runs the calls in order, reporting each result to the
// browser, then returns all responses to the model
func (s *LiveSession) handleToolCalls(ctx context.Context, calls []*genai.FunctionCall) {
	invocations := make([]ToolInvocation, 0, len(calls))
	for _, fc := range calls {
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		invocations = append(invocations, ToolInvocation{Name: fc.Name, Args: args})
	}
	s.conn.Send(toolCallStartMessage(invocations))

	responses := make([]*genai.FunctionResponse, 0, len(calls))
	for _, fc := range calls {
		s.toolCalls.Add(1)
		resp := s.executor.Execute(ctx, fc)
		responses = append(responses, resp)
		s.conn.Send(toolResultMessage(fc.Name, resp.Response))
	}

	if err := s.manager.SendToolResponse(responses); err != nil {
		s.log.Warnw("Failed to send tool responses", "error", err)
		s.tracer.TrackError(ctx, err, "tool response")
		s.conn.Send(errorMessage("Tool execution error: ", err))
	}
}

func (s *LiveSession) onStateChange(state session.State) {
	s.stateMu.Lock()
	prev := s.lastState
	s.lastState = state
	s.stateMu.Unlock()

	s.tracer.TrackStateChange(s.ctx, string(prev), string(state))
	s.conn.Send(stateChangeMessage(string(state)))
}

// handle dispatches one client message
func (s *LiveSession) handle(msg ClientMessage) {
	switch msg.Type {
	case TypeAudio:
		pcm, err := decodeAudio(msg.Data)
		if err != nil {
			s.conn.Send(errorMessage("Invalid message: ", err))
			return
		}
		s.sendAudio(pcm)
	case TypeText:
		s.sendText(msg.Text)
	case TypeReset:
		s.reset()
	case TypePing:
		s.conn.Send(Message{"type": TypePong})
	default:
		s.log.Debugw("Ignoring client message", "type", msg.Type)
	}
}

func (s *LiveSession) sendAudio(pcm []byte) {
	if !s.active.Load() || len(pcm) == 0 {
		return
	}
	if err := s.manager.SendAudio(pcm, audio.InputFormat.MIMEType()); err != nil && !errors.Is(err, errors.ErrNotConnected) {
		s.log.Warnw("Failed to send audio", "error", err)
	}
}

func (s *LiveSession) sendText(text string) {
	if !s.active.Load() || text == "" {
		return
	}
	if err := s.manager.SendText(text); err != nil {
		s.log.Warnw("Failed to send text", "error", err)
		if !errors.Is(err, errors.ErrNotConnected) {
			s.conn.Send(errorMessage("Send failed: ", err))
		}
	}
}

// reset starts a fresh Live API session and zeroes the counters
func (s *LiveSession) reset() {
	s.resetMu.Lock()
	s.generation++
	err := s.manager.Reset(s.ctx)
	s.turnCount.Store(0)
	s.toolCalls.Store(0)
	s.resetMu.Unlock()

	if err != nil {
		s.log.Errorw("Session reset failed", "error", err)
		s.tracer.TrackError(s.ctx, err, "reset")
		s.conn.Send(errorMessage("Reset failed: ", err))
		return
	}
	s.log.Infow("Session reset")
	s.conn.Send(sessionResetMessage(s.id))
}

// Metrics returns the session's counters
func (s *LiveSession) Metrics() SessionMetrics {
	return SessionMetrics{
		SessionID:       s.id,
		DurationSeconds: time.Since(s.start).Seconds(),
		TurnCount:       int(s.turnCount.Load()),
		ToolCallsCount:  int(s.toolCalls.Load()),
		State:           string(s.manager.State()),
	}
}
