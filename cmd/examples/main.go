package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"geminilab/internal/bootstrap"
	"geminilab/internal/examples"
	"geminilab/pkg/logger"
)

func main() {
	list := flag.Bool("list", false, "list the available examples")
	image := flag.String("image", "image.png", "picture used by the multimodal example")
	records := flag.String("records", "logs/examples.json", "JSON request/response log; empty disables it")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: examples [-list] [-image path] [-records file] <name>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *list {
		for _, name := range examples.Names() {
			fmt.Printf("%-20s %s\n", name, examples.Describe(name))
		}
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	c := bootstrap.NewContainer()
	c.MustInitCore("geminilab-examples")
	c.MustInitGemini()

	opts := examples.Options{
		Model:     c.Config.Gemini.TextModel,
		ImagePath: *image,
	}
	closeRecords := func() error { return nil }
	if *records != "" {
		recordLog, closeFn, err := logger.NewJSONFileLogger(*records)
		if err != nil {
			c.Log.Fatalf("open records log: %v", err)
		}
		opts.Records, closeRecords = recordLog, closeFn
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := examples.NewRunner(c.Generator, c.Tracer, opts).Run(ctx, flag.Arg(0))
	_ = closeRecords()
	c.Shutdown()
	if err != nil {
		c.Log.Errorw("Example failed", "example", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}
