package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"geminilab/internal/adapters/config"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

const instrumentationName = "geminilab"

// Laminar span attributes
const (
	AttrInput     = "lmnr.span.input"
	AttrOutput    = "lmnr.span.output"
	AttrSpanType  = "lmnr.span.type"
	AttrSessionID = "lmnr.association.properties.session_id"
)

// Laminar span types
const (
	SpanTypeDefault = "DEFAULT"
	SpanTypeLLM     = "LLM"
	SpanTypeTool    = "TOOL"
)

// Tracer exports spans to Laminar over OTLP/HTTP. A disabled Tracer hands out
// non-recording spans so callers never branch on it.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
}

// Init builds the Laminar exporter and installs it as the global provider.
// Without an API key (or with LAMINAR_ENABLED=false) it returns a disabled tracer.
func Init(ctx context.Context, cfg config.LaminarConfig, serviceName string) (*Tracer, error) {
	log := logger.Get().Named("tracing")

	key := cfg.Key()
	if !cfg.Enabled || key == "" {
		log.Warn("LMNR_PROJECT_API_KEY not set, tracing disabled")
		return Disabled(), nil
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/v1/traces"
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
		otlptracehttp.WithHeaders(map[string]string{"Authorization": "Bearer " + key}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create laminar exporter")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(provider)

	log.Infow("Laminar tracing initialized", "endpoint", endpoint, "service", serviceName)
	return NewWithProvider(provider), nil
}

// NewWithProvider wraps an SDK provider (tests pass one with a span recorder)
func NewWithProvider(provider *sdktrace.TracerProvider) *Tracer {
	return &Tracer{
		tracer:   provider.Tracer(instrumentationName),
		provider: provider,
		enabled:  true,
	}
}

// Disabled returns a tracer whose spans record nothing
func Disabled() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}
}

// Enabled reports whether spans are exported
func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled
}

// Shutdown flushes pending spans
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Span is an open span plus the timing attribute written when it ends
type Span struct {
	span        trace.Span
	start       time.Time
	durationKey string
	durationMs  bool
}

// End records the elapsed time and ends the span
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := time.Since(s.start)
	if s.durationKey != "" {
		if s.durationMs {
			s.span.SetAttributes(attribute.Float64(s.durationKey, float64(elapsed.Microseconds())/1000.0))
		} else {
			s.span.SetAttributes(attribute.Float64(s.durationKey, elapsed.Seconds()))
		}
	}
	s.span.End()
}

// SetOutput stores v as the Laminar span output
func (s *Span) SetOutput(v any) {
	s.span.SetAttributes(attribute.String(AttrOutput, encode(v)))
}

// SetAttributes adds attributes to the span
func (s *Span) SetAttributes(kv ...attribute.KeyValue) {
	s.span.SetAttributes(kv...)
}

// RecordError marks the span failed
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SpanContext exposes the OpenTelemetry span context (trace ids for logs)
func (s *Span) SpanContext() trace.SpanContext {
	return s.span.SpanContext()
}

func (t *Tracer) start(ctx context.Context, name, spanType string, input any) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrSpanType, spanType),
	}
	if input != nil {
		attrs = append(attrs, attribute.String(AttrInput, encode(input)))
	}
	if sessionID, ok := SessionIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// TraceSession opens the span covering a whole Live session. Callers set
// total_turns with SetAttributes before End; End adds duration_seconds.
func (t *Tracer) TraceSession(ctx context.Context, sessionID string, meta map[string]any) (context.Context, *Span) {
	ctx = WithSessionID(ctx, sessionID)

	input := map[string]any{"session_id": sessionID}
	for k, v := range meta {
		input[k] = v
	}

	ctx, span := t.start(ctx, "live_api_session", SpanTypeDefault, input)
	return ctx, &Span{span: span, start: time.Now(), durationKey: "duration_seconds"}
}

// TraceTurn opens a conversation turn span; End adds latency_ms
func (t *Tracer) TraceTurn(ctx context.Context, turnNumber int, inputText string) (context.Context, *Span) {
	sessionID, _ := SessionIDFromContext(ctx)
	input := map[string]any{
		"turn_number": turnNumber,
		"session_id":  sessionID,
		"input_text":  inputText,
	}

	ctx, span := t.start(ctx, "conversation_turn", SpanTypeDefault, input)
	span.SetAttributes(attribute.Int("turn_number", turnNumber))
	return ctx, &Span{span: span, start: time.Now(), durationKey: "latency_ms", durationMs: true}
}

// TraceToolCall opens a tool span named tool_call_<name>; End adds execution_time_ms
func (t *Tracer) TraceToolCall(ctx context.Context, toolName string, args map[string]any) (context.Context, *Span) {
	sessionID, _ := SessionIDFromContext(ctx)
	input := map[string]any{
		"tool_name":  toolName,
		"arguments":  args,
		"session_id": sessionID,
	}

	ctx, span := t.start(ctx, "tool_call_"+toolName, SpanTypeTool, input)
	return ctx, &Span{span: span, start: time.Now(), durationKey: "execution_time_ms", durationMs: true}
}

// TraceGeneration opens an LLM span around a model call
func (t *Tracer) TraceGeneration(ctx context.Context, name string, input any) (context.Context, *Span) {
	ctx, span := t.start(ctx, name, SpanTypeLLM, input)
	return ctx, &Span{span: span, start: time.Now(), durationKey: "latency_ms", durationMs: true}
}

// TrackTokenUsage annotates the current span with token counts
func (t *Tracer) TrackTokenUsage(ctx context.Context, inputTokens, outputTokens int) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("input_tokens", inputTokens),
		attribute.Int("output_tokens", outputTokens),
		attribute.Int("total_tokens", inputTokens+outputTokens),
	)
}

// TrackAudio annotates the current span with audio streaming stats
func (t *Tracer) TrackAudio(ctx context.Context, durationMs float64, chunkCount int) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Float64("audio_duration_ms", durationMs),
		attribute.Int("audio_chunk_count", chunkCount),
	)
}

// TrackError marks the current span as failed; where describes the failing step
func (t *Tracer) TrackError(ctx context.Context, err error, where string) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	attrs := []attribute.KeyValue{
		attribute.Bool("error", true),
		attribute.String("error_type", fmt.Sprintf("%T", err)),
		attribute.String("error_message", err.Error()),
	}
	if where != "" {
		attrs = append(attrs, attribute.String("error_context", where))
	}
	span.SetAttributes(attrs...)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TrackStateChange adds a state_change event to the current span
func (t *Tracer) TrackStateChange(ctx context.Context, from, to string) {
	trace.SpanFromContext(ctx).AddEvent("state_change", trace.WithAttributes(
		attribute.String("from_state", from),
		attribute.String("to_state", to),
	))
}

// TrackInterruption records a barge-in on the current span
func (t *Tracer) TrackInterruption(ctx context.Context) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("user_interruption")
	span.SetAttributes(attribute.Bool("interrupted", true))
}

// SetOutput sets the Laminar output of the current span
func (t *Tracer) SetOutput(ctx context.Context, v any) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(AttrOutput, encode(v)))
}

func encode(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
