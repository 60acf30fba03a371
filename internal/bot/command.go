package bot

import (
	"os"
	"strings"
)

// CommandKind is the kind of one user line
type CommandKind int

const (
	CommandChat CommandKind = iota
	CommandThink
	CommandTools
	CommandLong
	CommandStart
	CommandQuit
)

// Command is a parsed user line
type Command struct {
	Kind   CommandKind
	Prompt string
}

// ParseCommand recognizes /think, /tools, /long, /start and /quit.
// Anything else is a plain prompt.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)

	switch strings.ToLower(line) {
	case "/quit":
		return Command{Kind: CommandQuit}
	case "/start":
		return Command{Kind: CommandStart}
	}

	for prefix, kind := range map[string]CommandKind{
		"/think ": CommandThink,
		"/tools ": CommandTools,
		"/long ":  CommandLong,
	} {
		if strings.HasPrefix(line, prefix) {
			return Command{Kind: kind, Prompt: strings.TrimSpace(line[len(prefix):])}
		}
	}
	return Command{Kind: CommandChat, Prompt: line}
}

// Options maps the command to generation options
func (c Command) Options(longContext string) Options {
	switch c.Kind {
	case CommandThink:
		return Options{ThinkingBudget: DefaultThinkingBudget}
	case CommandLong:
		return Options{Context: longContext}
	default:
		return Options{}
	}
}

// Status is the progress line printed before the reply
func (c Command) Status() string {
	switch c.Kind {
	case CommandThink:
		return "Thinking..."
	case CommandTools:
		return "Processing with tools..."
	case CommandLong:
		return "Processing long context..."
	default:
		return ""
	}
}

// Label prefixes the streamed reply
func (c Command) Label() string {
	switch c.Kind {
	case CommandThink:
		return "Bot (Thinking): "
	case CommandTools:
		return "Bot (Tools): "
	case CommandLong:
		return "Bot (Long Context): "
	default:
		return "Bot: "
	}
}

// LongContextFile is read by /long when present
const LongContextFile = "long_context.txt"

// LoadLongContext reads path, or returns a synthetic long context
func LoadLongContext(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return strings.Repeat("This is a long context. ", 5000)
	}
	return string(data)
}
