package bot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"geminilab/pkg/errors"
)

const banner = `Welcome to the Gemini T2T Bot!
Commands:
  /think <prompt>  - Use thinking mode
  /tools <prompt>  - Use tools (weather, calculator)
  /long <prompt>   - Test long context (uses dummy long text)
  /quit            - Exit
  <prompt>         - Standard chat
------------------------------`

// REPL drives a Bot from line-oriented input
type REPL struct {
	bot         *Bot
	in          io.Reader
	out         io.Writer
	longContext string
}

// NewREPL creates a REPL. longContext backs the /long command.
func NewREPL(bot *Bot, in io.Reader, out io.Writer, longContext string) *REPL {
	return &REPL{bot: bot, in: in, out: out, longContext: longContext}
}

// Run reads commands until /quit, end of input or ctx cancellation
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintf(r.out, "Bot initialized with Session ID: %s\n", r.bot.SessionID())
	fmt.Fprintln(r.out, banner)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, readErr := r.readLines(ctx)

	for {
		fmt.Fprint(r.out, "\nYou: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "\nGoodbye!")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return errors.Wrap(<-readErr, "read input")
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		cmd := ParseCommand(line)
		switch cmd.Kind {
		case CommandQuit:
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		case CommandStart:
			fmt.Fprintln(r.out, banner)
			continue
		}

		r.reply(ctx, cmd)
	}
}

// readLines scans input in the background so Run can stop on ctx while a
// read is pending. The scanner goroutine exits at end of input, or at the
// next line once ctx is done.
func (r *REPL) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	return lines, readErr
}

func (r *REPL) reply(ctx context.Context, cmd Command) {
	if status := cmd.Status(); status != "" {
		fmt.Fprintln(r.out, status)
	}
	fmt.Fprint(r.out, cmd.Label())

	start := time.Now()
	chars := 0
	for chunk := range r.bot.Generate(ctx, cmd.Prompt, cmd.Options(r.longContext)) {
		chars += len(chunk)
		fmt.Fprint(r.out, chunk)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "[session %s | %s chars in %ss]\n",
		r.bot.SessionID(), humanize.Comma(int64(chars)), humanize.FtoaWithDigits(time.Since(start).Seconds(), 2))
}
