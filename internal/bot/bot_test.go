package bot

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"geminilab/internal/testsupport"
	"geminilab/internal/tools"
	"geminilab/pkg/errors"
)

func addTool() tools.Tool {
	return tools.New("add", "Add two numbers", tools.ObjectSchema(map[string]*genai.Schema{
		"a": tools.NumberProperty("first"),
		"b": tools.NumberProperty("second"),
	}, "a", "b"), func(ctx context.Context, args map[string]any) (any, error) {
		a, err := tools.NumberArg(args, "a")
		if err != nil {
			return nil, err
		}
		b, err := tools.NumberArg(args, "b")
		if err != nil {
			return nil, err
		}
		return a + b, nil
	})
}

func newBot(gen *testsupport.FakeGenerator) *Bot {
	executor := tools.NewExecutor(tools.NewRegistry(addTool()), nil, 0)
	return New(gen, executor, nil, "gemini-2.5-flash")
}

func collect(t *testing.T, b *Bot, prompt string, opts Options) (string, error) {
	t.Helper()
	var (
		sb      strings.Builder
		lastErr error
	)
	for chunk, err := range b.Generate(context.Background(), prompt, opts) {
		sb.WriteString(chunk)
		lastErr = err
	}
	return sb.String(), lastErr
}

func TestThinkingBudget(t *testing.T) {
	cases := []struct {
		prompt   string
		explicit int32
		budget   int32
		ok       bool
	}{
		{"What's the capital of France?", 0, 0, false},
		{"Please THINK about this", 0, 1024, true},
		{"Can you explain gravity?", 0, 1024, true},
		{"reason step by step", 0, 1024, true},
		{"hello", 2048, 2048, true},
		{"hello", -1, -1, true},
	}
	for _, c := range cases {
		budget, ok := ThinkingBudget(c.prompt, c.explicit)
		assert.Equal(t, c.ok, ok, c.prompt)
		assert.Equal(t, c.budget, budget, c.prompt)
	}
}

func TestWithContext(t *testing.T) {
	assert.Equal(t, "hi", WithContext("hi", ""))
	assert.Equal(t, "Context:\nbook\n\nQuestion: hi", WithContext("hi", "book"))
}

func TestGenerateStreamsChunks(t *testing.T) {
	gen := &testsupport.FakeGenerator{Streams: [][]*genai.GenerateContentResponse{{
		testsupport.TextResponse("Hello"),
		testsupport.TextResponse(", world"),
	}}}
	b := newBot(gen)

	out, err := collect(t, b, "hi there", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", out)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gemini-2.5-flash", calls[0].Model)
	assert.Nil(t, calls[0].Config.ThinkingConfig)
	assert.Equal(t, SystemInstruction, calls[0].Config.SystemInstruction.Parts[0].Text)
	require.Len(t, calls[0].Config.Tools, 1)
	assert.Equal(t, "add", calls[0].Config.Tools[0].FunctionDeclarations[0].Name)

	history := b.History()
	require.Len(t, history, 2)
	assert.Equal(t, genai.RoleUser, history[0].Role)
	assert.Equal(t, genai.RoleModel, history[1].Role)
}

func TestGenerateThinkingAndContext(t *testing.T) {
	gen := &testsupport.FakeGenerator{Streams: [][]*genai.GenerateContentResponse{
		{testsupport.TextResponse("a")},
		{testsupport.TextResponse("b")},
	}}
	b := newBot(gen)

	_, err := collect(t, b, "explain tides", Options{})
	require.NoError(t, err)
	_, err = collect(t, b, "summarize", Options{Context: "long text"})
	require.NoError(t, err)

	calls := gen.Calls()
	require.Len(t, calls, 2)
	require.NotNil(t, calls[0].Config.ThinkingConfig)
	assert.Equal(t, int32(1024), *calls[0].Config.ThinkingConfig.ThinkingBudget)

	assert.Nil(t, calls[1].Config.ThinkingConfig)
	last := calls[1].Contents[len(calls[1].Contents)-1]
	assert.Equal(t, "Context:\nlong text\n\nQuestion: summarize", last.Parts[0].Text)
	// the second request carries the first exchange
	assert.Len(t, calls[1].Contents, 3)
}

func TestGenerateFunctionCallingLoop(t *testing.T) {
	gen := &testsupport.FakeGenerator{Streams: [][]*genai.GenerateContentResponse{
		{testsupport.FunctionCallResponse(&genai.FunctionCall{ID: "c1", Name: "add", Args: map[string]any{"a": 2.0, "b": 3.0}})},
		{testsupport.TextResponse("The sum is 5.")},
	}}
	b := newBot(gen)

	out, err := collect(t, b, "add 2 and 3", Options{})
	require.NoError(t, err)
	assert.Equal(t, "The sum is 5.", out)

	calls := gen.Calls()
	require.Len(t, calls, 2)
	second := calls[1].Contents
	require.Len(t, second, 3)
	resp := second[2].Parts[0].FunctionResponse
	require.NotNil(t, resp)
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, map[string]any{"result": 5.0}, resp.Response)

	assert.Len(t, b.History(), 4)
}

func TestGenerateStopsAfterMaxRounds(t *testing.T) {
	streams := make([][]*genai.GenerateContentResponse, MaxToolRounds+1)
	for i := range streams {
		streams[i] = []*genai.GenerateContentResponse{
			testsupport.FunctionCallResponse(&genai.FunctionCall{Name: "add", Args: map[string]any{"a": 1.0, "b": 1.0}}),
		}
	}
	gen := &testsupport.FakeGenerator{Streams: streams}
	b := newBot(gen)

	out, err := collect(t, b, "loop forever", Options{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(out, "Error: "))
	assert.Len(t, gen.Calls(), MaxToolRounds)
}

func TestGenerateErrorChunk(t *testing.T) {
	gen := &testsupport.FakeGenerator{
		Streams: [][]*genai.GenerateContentResponse{{testsupport.TextResponse("partial")}},
		Err:     errors.New("quota exhausted"),
	}
	b := newBot(gen)

	var chunks []string
	for chunk := range b.Generate(context.Background(), "hi", Options{}) {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 2)
	assert.Equal(t, "partial", chunks[0])
	assert.Equal(t, "Error: generate content: quota exhausted", chunks[1])
	assert.Empty(t, b.History())
}

func TestGenerateEarlyBreak(t *testing.T) {
	gen := &testsupport.FakeGenerator{Streams: [][]*genai.GenerateContentResponse{{
		testsupport.TextResponse("one"),
		testsupport.TextResponse("two"),
	}}}
	b := newBot(gen)

	var got []string
	for chunk := range b.Generate(context.Background(), "hi", Options{}) {
		got = append(got, chunk)
		break
	}
	assert.Equal(t, []string{"one"}, got)
	assert.Empty(t, b.History())
}

func TestGenerateFailureKeepsEarlierTurns(t *testing.T) {
	gen := &testsupport.FakeGenerator{Streams: [][]*genai.GenerateContentResponse{{testsupport.TextResponse("hello")}}}
	b := newBot(gen)

	_, err := collect(t, b, "hi", Options{})
	require.NoError(t, err)
	require.Len(t, b.History(), 2)

	gen.Err = errors.New("quota exhausted")
	_, err = collect(t, b, "again", Options{})
	require.Error(t, err)

	history := b.History()
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Parts[0].Text)
	assert.Equal(t, genai.RoleModel, history[1].Role)
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, Command{Kind: CommandThink, Prompt: "why?"}, ParseCommand("/think why?"))
	assert.Equal(t, Command{Kind: CommandTools, Prompt: "weather in Paris"}, ParseCommand("/tools weather in Paris"))
	assert.Equal(t, Command{Kind: CommandLong, Prompt: "summarize"}, ParseCommand("/long summarize"))
	assert.Equal(t, Command{Kind: CommandQuit}, ParseCommand("/QUIT"))
	assert.Equal(t, Command{Kind: CommandStart}, ParseCommand("/start"))
	assert.Equal(t, Command{Kind: CommandChat, Prompt: "/think"}, ParseCommand("/think"))

	assert.Equal(t, Options{ThinkingBudget: 1024}, ParseCommand("/think x").Options("ctx"))
	assert.Equal(t, Options{Context: "ctx"}, ParseCommand("/long x").Options("ctx"))
}

func TestLoadLongContextFallback(t *testing.T) {
	text := LoadLongContext("does-not-exist.txt")
	assert.Equal(t, 5000, strings.Count(text, "This is a long context. "))
}

func TestREPL(t *testing.T) {
	gen := &testsupport.FakeGenerator{Streams: [][]*genai.GenerateContentResponse{
		{testsupport.TextResponse("Paris")},
		{testsupport.TextResponse("Deep thought")},
	}}
	b := newBot(gen)

	in := strings.NewReader("\ncapital of France?\n/think meaning of life\n/quit\nignored\n")
	var out bytes.Buffer
	require.NoError(t, NewREPL(b, in, &out, "ctx").Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Bot initialized with Session ID: "+b.SessionID())
	assert.Contains(t, text, "Bot: Paris")
	assert.Contains(t, text, "Thinking...")
	assert.Contains(t, text, "Bot (Thinking): Deep thought")
	assert.Contains(t, text, "Goodbye!")
	assert.Len(t, gen.Calls(), 2)
}

func TestREPLStopsOnCancelWhileWaitingForInput(t *testing.T) {
	b := newBot(&testsupport.FakeGenerator{})

	in, w := io.Pipe()
	defer w.Close()
	var out safeBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewREPL(b, in, &out, "").Run(ctx) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "You: ") }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, out.String(), "Goodbye!")
}

// safeBuffer is a bytes.Buffer shared between the REPL goroutine and the test
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *safeBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *safeBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
