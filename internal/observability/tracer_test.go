package observability

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"geminilab/internal/adapters/config"
	"geminilab/pkg/errors"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return NewWithProvider(provider), recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[string]attribute.Value {
	out := make(map[string]attribute.Value)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestTraceSessionAndTurn(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	ctx, session := tracer.TraceSession(context.Background(), "sess-1", map[string]any{"client": "browser"})
	turnCtx, turn := tracer.TraceTurn(ctx, 1, "hello")
	tracer.TrackTokenUsage(turnCtx, 100, 50)
	turn.End()
	session.SetAttributes(attribute.Int("total_turns", 1))
	session.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	turnSpan, sessionSpan := spans[0], spans[1]
	assert.Equal(t, "conversation_turn", turnSpan.Name())
	assert.Equal(t, sessionSpan.SpanContext().SpanID(), turnSpan.Parent().SpanID())

	ta := attrs(turnSpan)
	assert.Equal(t, "sess-1", ta[AttrSessionID].AsString())
	assert.Equal(t, int64(150), ta["total_tokens"].AsInt64())
	assert.Contains(t, ta, "latency_ms")

	var input map[string]any
	require.NoError(t, json.Unmarshal([]byte(ta[AttrInput].AsString()), &input))
	assert.Equal(t, "hello", input["input_text"])
	assert.Equal(t, float64(1), input["turn_number"])

	sa := attrs(sessionSpan)
	assert.Equal(t, "live_api_session", sessionSpan.Name())
	assert.Equal(t, int64(1), sa["total_turns"].AsInt64())
	assert.Contains(t, sa, "duration_seconds")
	assert.Contains(t, sa[AttrInput].AsString(), `"client":"browser"`)
}

func TestTraceToolCall(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	ctx := WithSessionID(context.Background(), "sess-2")
	ctx, span := tracer.TraceToolCall(ctx, "get_weather", map[string]any{"city": "Paris"})
	tracer.SetOutput(ctx, "Weather in Paris, France: 18°C")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tool_call_get_weather", spans[0].Name())

	a := attrs(spans[0])
	assert.Equal(t, SpanTypeTool, a[AttrSpanType].AsString())
	assert.Equal(t, "Weather in Paris, France: 18°C", a[AttrOutput].AsString())
	assert.Contains(t, a, "execution_time_ms")
	assert.Equal(t, "sess-2", a[AttrSessionID].AsString())
}

func TestTrackErrorAndEvents(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	ctx, span := tracer.TraceGeneration(context.Background(), "t2t_generate", map[string]any{"prompt": "hi"})
	tracer.TrackStateChange(ctx, "connecting", "connected")
	tracer.TrackInterruption(ctx)
	tracer.TrackError(ctx, errors.New("boom"), "receive loop")
	tracer.TrackError(ctx, nil, "ignored")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	s := spans[0]

	a := attrs(s)
	assert.Equal(t, SpanTypeLLM, a[AttrSpanType].AsString())
	assert.True(t, a["error"].AsBool())
	assert.Equal(t, "boom", a["error_message"].AsString())
	assert.Equal(t, "receive loop", a["error_context"].AsString())
	assert.True(t, a["interrupted"].AsBool())
	assert.Equal(t, codes.Error, s.Status().Code)

	var names []string
	for _, e := range s.Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "state_change")
	assert.Contains(t, names, "user_interruption")
}

func TestDisabledTracer(t *testing.T) {
	tracer := Disabled()
	assert.False(t, tracer.Enabled())

	ctx, span := tracer.TraceSession(context.Background(), "s", nil)
	tracer.TrackTokenUsage(ctx, 1, 2)
	tracer.TrackError(ctx, errors.New("x"), "")
	span.SetOutput(map[string]any{"ok": true})
	span.End()

	id, ok := SessionIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s", id)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestInitWithoutKeyIsDisabled(t *testing.T) {
	tracer, err := Init(context.Background(), config.LaminarConfig{Enabled: true, BaseURL: "https://api.lmnr.ai"}, "test")
	require.NoError(t, err)
	assert.False(t, tracer.Enabled())

	tracer, err = Init(context.Background(), config.LaminarConfig{Enabled: false, APIKey: "k"}, "test")
	require.NoError(t, err)
	assert.False(t, tracer.Enabled())
}

func TestInitWithKey(t *testing.T) {
	tracer, err := Init(context.Background(), config.LaminarConfig{
		Enabled: true,
		APIKey:  "project-key",
		BaseURL: "http://127.0.0.1:1/",
	}, "test")
	require.NoError(t, err)
	assert.True(t, tracer.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_ = tracer.Shutdown(ctx)
}
