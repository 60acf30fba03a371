package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"geminilab/internal/metrics"
	"geminilab/internal/observability"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// DefaultTimeout bounds a single tool call
const DefaultTimeout = 30 * time.Second

// Tool execution outcomes used as metric labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeUnknown = "unknown"
)

// Executor turns model function calls into function responses. It never
// returns an error: failures become {"error": msg} responses the model can read.
type Executor struct {
	registry *Registry
	tracer   *observability.Tracer
	timeout  time.Duration
	log      *logger.Logger
}

// NewExecutor creates an executor over registry. A zero timeout means DefaultTimeout.
func NewExecutor(registry *Registry, tracer *observability.Tracer, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if tracer == nil {
		tracer = observability.Disabled()
	}
	return &Executor{
		registry: registry,
		tracer:   tracer,
		timeout:  timeout,
		log:      logger.Get().Named("tools"),
	}
}

// Registry returns the tools this executor dispatches to
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs one function call. The response echoes the call ID and name.
func (e *Executor) Execute(ctx context.Context, call *genai.FunctionCall) *genai.FunctionResponse {
	resp := &genai.FunctionResponse{ID: call.ID, Name: call.Name}

	t, ok := e.registry.Get(call.Name)
	if !ok {
		e.log.Warnw("Unknown function called", "name", call.Name)
		metrics.RecordToolExecution(call.Name, 0, OutcomeUnknown)
		resp.Response = map[string]any{"error": "Unknown function: " + call.Name}
		return resp
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	ctx, span := e.tracer.TraceToolCall(ctx, call.Name, args)
	defer span.End()

	start := time.Now()
	result, err := e.run(ctx, t, args)
	latency := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordToolExecution(call.Name, latency, OutcomeSuccess)
		span.SetOutput(result)
		resp.Response = map[string]any{"result": result}
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordToolExecution(call.Name, latency, OutcomeTimeout)
		msg := fmt.Sprintf("Function execution timed out after %ss", seconds(e.timeout))
		e.tracer.TrackError(ctx, err, "tool timeout")
		e.log.Warnw("Tool timed out", "name", call.Name, "timeout", e.timeout)
		resp.Response = map[string]any{"error": msg}
	default:
		metrics.RecordToolExecution(call.Name, latency, OutcomeError)
		e.tracer.TrackError(ctx, err, "tool execution")
		e.log.Warnw("Tool failed", "name", call.Name, "error", err)
		resp.Response = map[string]any{"error": "Function execution failed: " + err.Error()}
	}

	return resp
}

// seconds renders d as a decimal that always has a fractional part: 30.0, 0.05
func seconds(d time.Duration) string {
	s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ExecuteAll runs calls concurrently and returns responses in call order
func (e *Executor) ExecuteAll(ctx context.Context, calls []*genai.FunctionCall) []*genai.FunctionResponse {
	responses := make([]*genai.FunctionResponse, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			responses[i] = e.Execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

type outcome struct {
	value any
	err   error
}

// run executes t under the executor timeout. A tool that ignores its context
// is abandoned when the deadline passes.
func (e *Executor) run(ctx context.Context, t Tool, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.Newf("panic: %v", r)}
			}
		}()
		v, err := t.Execute(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
