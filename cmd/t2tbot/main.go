package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"geminilab/internal/adapters/telegram"
	"geminilab/internal/bootstrap"
	"geminilab/internal/bot"
)

func main() {
	useTelegram := flag.Bool("telegram", false, "serve the bot over Telegram instead of the terminal")
	longContextPath := flag.String("long-context", bot.LongContextFile, "file backing the /long command")
	flag.Parse()

	c := bootstrap.NewContainer()
	c.MustInitCore("geminilab-t2tbot")
	c.MustInitGemini()
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor := c.TextExecutor()
	model := c.Config.Gemini.TextModel
	longContext := bot.LoadLongContext(*longContextPath)

	if *useTelegram {
		if err := runTelegram(ctx, c, func() *bot.Bot {
			return bot.New(c.Generator, executor, c.Tracer, model)
		}, longContext); err != nil {
			c.Log.Errorw("Telegram bot failed", "error", err)
			os.Exit(1)
		}
		return
	}

	repl := bot.NewREPL(bot.New(c.Generator, executor, c.Tracer, model), os.Stdin, os.Stdout, longContext)
	if err := repl.Run(ctx); err != nil {
		c.Log.Errorw("REPL failed", "error", err)
	}
}

func runTelegram(ctx context.Context, c *bootstrap.Container, newBot func() *bot.Bot, longContext string) error {
	cfg := c.Config.Telegram
	client, err := telegram.NewClient(telegram.Config{
		Token: cfg.BotToken,
		Debug: cfg.Debug,
	}, c.Log.Named("telegram"))
	if err != nil {
		return err
	}

	handler := telegram.NewHandler(client, newBot, telegram.HandlerConfig{
		AllowedChatIDs: cfg.AllowedChatIDs,
		LongContext:    longContext,
	}, c.Log.Named("telegram"))
	client.SetMessageHandler(handler.HandleUpdate)

	return client.Start(ctx)
}
