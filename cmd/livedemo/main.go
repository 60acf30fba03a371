package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/internal/audio"
	"geminilab/internal/bootstrap"
	"geminilab/internal/live"
	"geminilab/internal/observability"
	"geminilab/internal/tools"
	"geminilab/internal/tools/weather"
	"geminilab/pkg/errors"
)

const systemInstruction = "You are a helpful AI assistant. Keep responses concise."

func usage() {
	fmt.Fprintln(os.Stderr, `usage: livedemo <command> [flags]

commands:
  text                          text-only session with weather and search tools
  tools                         weather, forecast and time tools
  session                       multi-turn chat from stdin ("reset", "history", "quit")
  audio -in in.wav -out out.wav send a recording and save the spoken reply`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	c := bootstrap.NewContainer()
	c.MustInitCore("geminilab-livedemo")
	c.MustInitGemini()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)

	var err error
	switch cmd {
	case "text":
		err = runText(ctx, c)
	case "tools":
		err = runTools(ctx, c)
	case "session":
		err = runSession(ctx, c, os.Stdin)
	case "audio":
		err = runAudio(ctx, c, args)
	default:
		usage()
		stop()
		c.Shutdown()
		os.Exit(2)
	}

	stop()
	c.Shutdown()
	if err != nil {
		c.Log.Errorw("Demo failed", "demo", cmd, "error", err)
		os.Exit(1)
	}
}

// demoSession is a connected conversation inside a live_api_session span
type demoSession struct {
	conv *live.Conversation
	span *observability.Span
}

func (d *demoSession) close() {
	_ = d.conv.Session().Disconnect()
	d.span.End()
}

func open(ctx context.Context, c *bootstrap.Container, demo string, cfg *genai.LiveConnectConfig, executor *tools.Executor) (context.Context, *demoSession, error) {
	ctx, span := c.Tracer.TraceSession(ctx, uuid.NewString(), map[string]any{"demo": demo})

	m := live.NewSessionManager(gemini.NewLive(c.Client), c.Config.Gemini.LiveModel, cfg)
	m.OnStateChange(func(s live.State) { fmt.Printf("Session state: %s\n", s) })

	if err := m.Connect(ctx); err != nil {
		span.RecordError(err)
		span.End()
		return ctx, nil, err
	}
	return ctx, &demoSession{conv: live.NewConversation(m, executor, c.Tracer), span: span}, nil
}

func runText(ctx context.Context, c *bootstrap.Container) error {
	registry := tools.NewRegistry(weather.NewWeatherTool(weather.NewClient(c.Config.Tools.WeatherHTTPTimeout), c.ToolDeps()))
	executor := tools.NewExecutor(registry, c.Tracer, c.Config.Live.ToolTimeout)

	ctx, d, err := open(ctx, c, "text_only", &genai.LiveConnectConfig{
		SystemInstruction:  genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseModalities: []genai.Modality{genai.ModalityText},
		Tools:              registry.Tools(true),
	}, executor)
	if err != nil {
		return err
	}
	defer d.close()

	fmt.Println("Connected, sending test messages")
	return askAll(ctx, d.conv, "Hello!", "What's the weather in Paris?")
}

func runTools(ctx context.Context, c *bootstrap.Container) error {
	executor := c.LiveExecutor()
	ctx, d, err := open(ctx, c, "tool_calling", &genai.LiveConnectConfig{
		SystemInstruction:  genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseModalities: []genai.Modality{genai.ModalityText},
		Tools:              executor.Registry().Tools(false),
	}, executor)
	if err != nil {
		return err
	}
	defer d.close()

	fmt.Printf("Tools: %s\n", strings.Join(executor.Registry().List(), ", "))
	return askAll(ctx, d.conv,
		"What's the weather in Tokyo?",
		"Give me a 3 day forecast for London.",
		"What time is it in New York, and how far ahead is Tokyo?",
	)
}

func askAll(ctx context.Context, conv *live.Conversation, prompts ...string) error {
	for _, prompt := range prompts {
		fmt.Printf("\nUser: %s\n", prompt)
		turn, err := conv.Ask(ctx, prompt)
		if err != nil {
			return err
		}
		printTurn(turn)
	}
	return nil
}

func printTurn(turn *live.Turn) {
	for _, name := range turn.ToolCalls {
		fmt.Printf("Tool called: %s\n", name)
	}
	if turn.Interrupted {
		fmt.Println("Interrupted")
	}
	fmt.Printf("Assistant: %s\n", turn.Text)
}

func runSession(ctx context.Context, c *bootstrap.Container, in io.Reader) error {
	executor := c.LiveExecutor()
	ctx, d, err := open(ctx, c, "session_management", &genai.LiveConnectConfig{
		SystemInstruction:  genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseModalities: []genai.Modality{genai.ModalityText},
		Tools:              executor.Registry().Tools(false),
	}, executor)
	if err != nil {
		return err
	}
	defer d.close()

	fmt.Println(`Connected. Commands: "reset" clears context, "history" lists turns, "quit" exits.`)
	turns := 0
	defer func() {
		d.span.SetAttributes(attribute.Int("total_turns", turns))
		fmt.Printf("Total turns: %d\n", turns)
	}()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "reset":
			if err := d.conv.Session().Reset(ctx); err != nil {
				return err
			}
			fmt.Println("Session reset, context cleared")
			continue
		case "history":
			history := d.conv.Session().History()
			fmt.Printf("Conversation has %d turns\n", len(history))
			for _, h := range history {
				fmt.Printf("  %s (%s): %s\n", h.Role, h.Type, h.Content)
			}
			continue
		}

		turns++
		fmt.Printf("--- Turn %d ---\n", turns)
		turn, err := d.conv.Ask(ctx, line)
		if err != nil {
			return err
		}
		printTurn(turn)
	}
}

func runAudio(ctx context.Context, c *bootstrap.Container, args []string) error {
	fs := flag.NewFlagSet("audio", flag.ExitOnError)
	in := fs.String("in", "", "16-bit PCM WAV recording to send")
	out := fs.String("out", "reply.wav", "where to write the spoken reply")
	_ = fs.Parse(args)
	if *in == "" {
		return errors.NewValidationError("in", "a WAV file to send is required", *in)
	}

	pcm, format, err := audio.ReadWAVFile(*in)
	if err != nil {
		return err
	}
	fmt.Printf("Sending %s of audio (%s)\n", format.Duration(pcm), format.MIMEType())

	executor := c.LiveExecutor()
	ctx, d, err := open(ctx, c, "basic_audio", &genai.LiveConnectConfig{
		SystemInstruction:  genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		Tools:              executor.Registry().Tools(false),
	}, executor)
	if err != nil {
		return err
	}
	defer d.close()

	turn, err := d.conv.SendAudio(ctx, pcm, format, 0)
	if err != nil {
		return err
	}
	printTurn(turn)
	if len(turn.Audio) == 0 {
		fmt.Println("No audio in reply")
		return nil
	}
	if err := audio.WriteWAVFile(*out, turn.Audio, audio.OutputFormat); err != nil {
		return err
	}
	fmt.Printf("Reply: %s (%s)\n", *out, audio.OutputFormat.Duration(turn.Audio))
	return nil
}
