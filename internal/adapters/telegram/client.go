package telegram

import (
	"context"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// MaxMessageLength is Telegram's limit for one text message
const MaxMessageLength = 4096

// Client represents a Telegram bot connection
type Client struct {
	api         *tgbotapi.BotAPI
	log         *logger.Logger
	mu          sync.RWMutex
	running     bool
	msgHandler  func(context.Context, tgbotapi.Update)
	rateLimiter *rate.Limiter // Rate limiter for Telegram API calls
	timeout     int
}

// Config contains Telegram bot configuration
type Config struct {
	Token          string
	Debug          bool
	Timeout        int // Update timeout in seconds
	HTTPTimeout    time.Duration
	RateLimitBurst int // Rate limiter burst (default: 30)
	RateLimitRate  int // Rate limiter per second (default: 20)
}

// NewClient authorizes the bot token
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 60
	}
	if cfg.HTTPTimeout == 0 {
		// long polling holds the request open for Timeout seconds
		cfg.HTTPTimeout = time.Duration(cfg.Timeout+10) * time.Second
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 20 // Telegram limit is 30 msg/sec
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}
	api.Debug = cfg.Debug

	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Client{
		api:         api,
		log:         log.With("component", "telegram_bot"),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
		timeout:     cfg.Timeout,
	}, nil
}

// SetMessageHandler registers a handler for incoming updates
func (c *Client) SetMessageHandler(handler func(context.Context, tgbotapi.Update)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgHandler = handler
}

// Start polls for updates until ctx is cancelled
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.ErrAlreadyRunning
	}
	c.running = true
	handler := c.msgHandler
	c.mu.Unlock()

	c.log.Infow("Starting Telegram bot in polling mode...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.timeout
	updates := c.api.GetUpdatesChan(u)

	c.log.Infow("✓ Telegram bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			c.log.Infow("Telegram bot stopping (context cancelled)")
			c.Stop()
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if handler == nil {
				c.log.Debugw("Received update (no handler registered)", "update_id", update.UpdateID)
				continue
			}
			// Handle update in goroutine to avoid blocking
			go handler(ctx, update)
		}
	}
}

// Stop stops receiving updates
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.api.StopReceivingUpdates()
	c.running = false
	c.log.Infow("✓ Telegram bot stopped")
}

// SendMessage sends text as plain messages, split at the Telegram length limit
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, part := range SplitMessage(text, MaxMessageLength) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter wait failed")
		}

		start := time.Now()
		_, err := c.api.Send(tgbotapi.NewMessage(chatID, part))
		if err != nil {
			c.log.Errorw("Failed to send message",
				"chat_id", chatID,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return errors.Wrap(err, "failed to send message")
		}
	}
	return nil
}

// SendTyping shows the typing indicator
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait failed")
	}
	_, err := c.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return errors.Wrap(err, "failed to send chat action")
}

// SplitMessage cuts text into pieces of at most limit bytes without
// breaking UTF-8 sequences, preferring newline boundaries
func SplitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}

	var parts []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		for i := cut - 1; i > limit/2; i-- {
			if text[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
