package bootstrap

import (
	"context"
	"sync"

	"google.golang.org/genai"

	"geminilab/internal/adapters/ai"
	"geminilab/internal/adapters/config"
	"geminilab/internal/adapters/gemini"
	redisclient "geminilab/internal/adapters/redis"
	"geminilab/internal/api"
	"geminilab/internal/api/health"
	"geminilab/internal/api/live"
	"geminilab/internal/observability"
	"geminilab/internal/token"
	"geminilab/internal/tools/middleware"
	"geminilab/internal/workers"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// Container holds the application dependencies and their lifecycle.
// CLIs stop after MustInitGemini; the relay server also runs MustInitRelay.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker
	Tracer       *observability.Tracer

	// Infrastructure (optional)
	Redis *redisclient.Client

	// Gemini
	Client    *genai.Client
	Generator gemini.ContentGenerator
	Usage     *ai.UsageTracker
	ToolStats *middleware.UsageStats

	// Relay server
	Issuer        *token.Issuer
	Proxy         *live.ProxyServer
	HealthHandler *health.Handler
	HTTPServer    *api.Server
	Scheduler     *workers.Scheduler

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Lifecycle: NewLifecycle(),
		WG:        &sync.WaitGroup{},
		Context:   ctx,
		Cancel:    cancel,
	}
}

// Start runs the HTTP server and background workers
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.HTTPServer.Start(); err != nil {
			c.Log.Errorw("HTTP server failed", "error", err)
			c.Cancel()
		}
	}()

	if err := c.Scheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "start workers")
	}

	c.Log.Infow("✓ All systems operational", "addr", c.Config.Server.Addr())
	return nil
}

// Shutdown performs graceful shutdown in order. Components that were never
// initialized are skipped, so CLIs call it too.
func (c *Container) Shutdown() {
	if c.Log == nil {
		c.Cancel()
		return
	}
	c.Log.Info("Initiating graceful shutdown...")
	c.Cancel()

	_, err := c.Lifecycle.Shutdown(Components{
		WG:           c.WG,
		HTTPServer:   c.HTTPServer,
		Scheduler:    c.Scheduler,
		Sessions:     c.Proxy,
		Tracer:       c.Tracer,
		ErrorTracker: c.ErrorTracker,
		Redis:        c.Redis,
	}, c.Log)
	if err != nil {
		c.Log.Errorw("Shutdown incomplete", "error", err)
	}
}
