package telegram

import (
	"context"
	"slices"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"geminilab/internal/bot"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

const greeting = `Hi! I'm a Gemini-powered assistant.

/think <prompt> - answer with thinking mode
/tools <prompt> - use tools (weather, calculator)
/long <prompt> - answer against a long context
Anything else is a regular chat message.`

// Sender delivers replies to a chat
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}

// HandlerConfig configures the chat frontend
type HandlerConfig struct {
	// AllowedChatIDs restricts the bot; empty allows every chat
	AllowedChatIDs []int64
	LongContext    string
}

// Handler keeps one bot conversation per chat
type Handler struct {
	sender Sender
	newBot func() *bot.Bot
	cfg    HandlerConfig
	log    *logger.Logger

	mu    sync.Mutex
	chats map[int64]*bot.Bot
}

// NewHandler creates a handler; newBot is called once per new chat
func NewHandler(sender Sender, newBot func() *bot.Bot, cfg HandlerConfig, log *logger.Logger) *Handler {
	return &Handler{
		sender: sender,
		newBot: newBot,
		cfg:    cfg,
		log:    log.With("component", "telegram_handler"),
		chats:  make(map[int64]*bot.Bot),
	}
}

// HandleUpdate processes an incoming Telegram update
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	if err := h.HandleMessage(ctx, msg.Chat.ID, msg.Text); err != nil {
		h.log.Errorw("Failed to handle message",
			"chat_id", msg.Chat.ID,
			"message_id", msg.MessageID,
			"error", err,
		)
	}
}

// Allowed reports whether chatID may use the bot
func (h *Handler) Allowed(chatID int64) bool {
	return len(h.cfg.AllowedChatIDs) == 0 || slices.Contains(h.cfg.AllowedChatIDs, chatID)
}

// HandleMessage answers one text message
func (h *Handler) HandleMessage(ctx context.Context, chatID int64, text string) error {
	if !h.Allowed(chatID) {
		h.log.Warnw("Ignoring message from chat not in allow list", "chat_id", chatID)
		return nil
	}

	cmd := bot.ParseCommand(text)
	switch cmd.Kind {
	case bot.CommandStart:
		return h.sender.SendMessage(ctx, chatID, greeting)
	case bot.CommandQuit:
		h.forget(chatID)
		return h.sender.SendMessage(ctx, chatID, "Goodbye! Send any message to start a new conversation.")
	}
	if cmd.Prompt == "" {
		return nil
	}

	b := h.conversation(chatID)
	if err := h.sender.SendTyping(ctx, chatID); err != nil {
		h.log.Debugw("Typing indicator failed", "chat_id", chatID, "error", err)
	}

	var reply strings.Builder
	for chunk := range b.Generate(ctx, cmd.Prompt, cmd.Options(h.cfg.LongContext)) {
		reply.WriteString(chunk)
	}
	if reply.Len() == 0 {
		reply.WriteString("(no response)")
	}

	h.log.Debugw("Replying", "chat_id", chatID, "session_id", b.SessionID(), "length", reply.Len())
	return errors.Wrap(h.sender.SendMessage(ctx, chatID, reply.String()), "send reply")
}

func (h *Handler) conversation(chatID int64) *bot.Bot {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.chats[chatID]
	if !ok {
		b = h.newBot()
		h.chats[chatID] = b
		h.log.Infow("New conversation", "chat_id", chatID, "session_id", b.SessionID())
	}
	return b
}

func (h *Handler) forget(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.chats, chatID)
}

// Conversations returns the number of active chats
func (h *Handler) Conversations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.chats)
}
