package main

import (
	"os"
	"os/signal"
	"syscall"

	"geminilab/internal/bootstrap"
)

func main() {
	c := bootstrap.NewContainer()
	c.MustInitCore("geminilab-liveserver")
	c.MustInitGemini()
	c.MustInitRelay()

	if err := c.Start(); err != nil {
		c.Log.Errorw("Startup failed", "error", err)
		c.Shutdown()
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		c.Log.Infow("Received shutdown signal", "signal", sig.String())
	case <-c.Context.Done():
		c.Log.Warn("Context cancelled, shutting down")
	}

	c.Shutdown()
}
