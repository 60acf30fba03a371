package live

import (
	"context"
	"strings"
	"sync"

	"geminilab/internal/adapters/gemini"
	"geminilab/internal/audio"
	"geminilab/internal/observability"
	"geminilab/internal/tools"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// Turn is what the model produced for one user turn
type Turn struct {
	Text        string
	Audio       []byte
	ToolCalls   []string
	Interrupted bool
}

// Conversation drives turns over a SessionManager: it answers tool calls
// with the executor and collects text and audio until the turn completes
type Conversation struct {
	session  *SessionManager
	executor *tools.Executor
	tracer   *observability.Tracer
	buffer   *AudioBuffer
	log      *logger.Logger

	mu    sync.Mutex
	turns int
}

// NewConversation wraps a connected or connectable session. A nil executor
// answers every tool call with an unknown-tool error.
func NewConversation(session *SessionManager, executor *tools.Executor, tracer *observability.Tracer) *Conversation {
	if executor == nil {
		executor = tools.NewExecutor(tools.NewRegistry(), tracer, 0)
	}
	if tracer == nil {
		tracer = observability.Disabled()
	}
	return &Conversation{
		session:  session,
		executor: executor,
		tracer:   tracer,
		buffer:   NewAudioBuffer(),
		log:      logger.Get().Named("conversation"),
	}
}

// Session returns the underlying session manager
func (c *Conversation) Session() *SessionManager {
	return c.session
}

// Ask sends a text turn and waits for the reply
func (c *Conversation) Ask(ctx context.Context, text string) (*Turn, error) {
	ctx, span := c.tracer.TraceTurn(ctx, c.nextTurn(), text)
	defer span.End()

	if err := c.session.SendText(text); err != nil {
		span.RecordError(err)
		return nil, err
	}

	turn, err := c.collect(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetOutput(turn.Text)
	return turn, nil
}

// SendAudio streams PCM through the input buffer in chunks of chunkFrames
// and waits for the reply
func (c *Conversation) SendAudio(ctx context.Context, pcm []byte, format audio.Format, chunkFrames int) (*Turn, error) {
	ctx, span := c.tracer.TraceTurn(ctx, c.nextTurn(), "")
	defer span.End()

	if chunkFrames <= 0 {
		chunkFrames = audio.ChunkFrames
	}
	chunks := audio.Chunk(pcm, chunkFrames*format.BytesPerFrame())
	for _, chunk := range chunks {
		c.buffer.PushInput(chunk)
		next, err := c.buffer.NextInput(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.session.SendAudio(next.Data, format.MIMEType()); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	c.tracer.TrackAudio(ctx, float64(format.Duration(pcm).Milliseconds()), len(chunks))

	turn, err := c.collect(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetOutput(turn.Text)
	return turn, nil
}

func (c *Conversation) nextTurn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns++
	return c.turns
}

// collect receives until turn complete. Tool calls are executed and answered
// in the same turn; an interruption drops queued audio and resumes.
func (c *Conversation) collect(ctx context.Context) (*Turn, error) {
	turn := &Turn{}
	var text strings.Builder

	for msg, err := range c.session.Receive(ctx) {
		if err != nil {
			return nil, err
		}

		if msg.ToolCall != nil && len(msg.ToolCall.FunctionCalls) > 0 {
			for _, call := range msg.ToolCall.FunctionCalls {
				turn.ToolCalls = append(turn.ToolCalls, call.Name)
			}
			responses := c.executor.ExecuteAll(ctx, msg.ToolCall.FunctionCalls)
			if err := c.session.SendToolResponse(responses); err != nil {
				return nil, errors.Wrap(err, "answer tool calls")
			}
			continue
		}

		for _, t := range gemini.LiveText(msg) {
			text.WriteString(t)
		}
		if pcm := gemini.InlineAudio(msg); len(pcm) > 0 {
			c.buffer.QueueOutput(pcm)
		}

		if msg.ServerContent != nil && msg.ServerContent.Interrupted {
			turn.Interrupted = true
			dropped := c.buffer.ClearOutput()
			c.tracer.TrackInterruption(ctx)
			c.log.Infow("Turn interrupted", "dropped_chunks", dropped)
			c.session.Resume()
		}
	}

	turn.Text = text.String()
	turn.Audio = c.buffer.DrainOutput()
	return turn, nil
}
