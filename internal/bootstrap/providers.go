package bootstrap

import (
	"context"
	"time"

	"geminilab/internal/adapters/ai"
	"geminilab/internal/adapters/config"
	errnoop "geminilab/internal/adapters/errors/noop"
	"geminilab/internal/adapters/errors/sentry"
	"geminilab/internal/adapters/gemini"
	redisclient "geminilab/internal/adapters/redis"
	"geminilab/internal/api"
	"geminilab/internal/api/health"
	"geminilab/internal/api/live"
	"geminilab/internal/metrics"
	"geminilab/internal/observability"
	"geminilab/internal/token"
	"geminilab/internal/tools"
	"geminilab/internal/tools/middleware"
	"geminilab/internal/tools/shared"
	"geminilab/internal/tools/toolset"
	"geminilab/internal/tools/weather"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// ========================================
// Phase 1: Configuration, logging, tracing
// ========================================

// MustInitCore loads configuration, the logger, error tracking, metrics,
// Laminar tracing and the optional Redis connection
func (c *Container) MustInitCore(serviceName string) {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	c.Log = logger.Get()
	c.Log.Infof("Starting %s (%s) in %s mode", serviceName, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()

	c.Tracer, err = observability.Init(c.Context, cfg.Laminar, serviceName)
	if err != nil {
		c.Log.Warnw("Tracing disabled", "error", err)
		c.Tracer = observability.Disabled()
	}

	c.Redis = provideRedis(c.Context, cfg.Redis, c.Log)
}

// ========================================
// Phase 2: Gemini client and generator
// ========================================

// MustInitGemini creates the genai client and the rate-limited, usage-tracked
// generator shared by the bot, research agent and examples
func (c *Container) MustInitGemini() {
	client, err := gemini.NewClient(c.Context, c.Config.Gemini)
	if err != nil {
		c.Log.Fatalf("failed to create gemini client: %v", err)
	}
	c.Client = client

	var limiterFactory *ai.RateLimiterFactory
	if c.Redis != nil {
		limiterFactory = ai.NewRateLimiterFactory(c.Redis.Client())
	} else {
		limiterFactory = ai.NewRateLimiterFactory(nil)
	}

	c.Usage = ai.NewUsageTracker(ai.DefaultCatalog())
	c.ToolStats = middleware.NewUsageStats()
	c.Generator = ai.NewLimitedGenerator(
		client.Models,
		limiterFactory.Create(c.Config.Gemini.TextModel, c.Config.RateLimit),
		c.Usage,
	)
	c.Log.Infow("✓ Gemini client initialized", "text_model", c.Config.Gemini.TextModel)
}

// ToolDeps returns the dependencies shared by every tool implementation
func (c *Container) ToolDeps() shared.Deps {
	return shared.Deps{
		Config: c.Config.Tools,
		Stats:  c.ToolStats,
		Log:    c.Log.Named("tools"),
	}
}

// TextExecutor returns the executor for the text bot's tools
func (c *Container) TextExecutor() *tools.Executor {
	registry := toolset.TextRegistry(weather.NewClient(c.Config.Tools.WeatherHTTPTimeout), c.ToolDeps())
	return tools.NewExecutor(registry, c.Tracer, c.Config.Live.ToolTimeout)
}

// LiveExecutor returns the executor for Live session tools
func (c *Container) LiveExecutor() *tools.Executor {
	registry := toolset.LiveRegistry(weather.NewClient(c.Config.Tools.WeatherHTTPTimeout), c.ToolDeps())
	return tools.NewExecutor(registry, c.Tracer, c.Config.Live.ToolTimeout)
}

// ========================================
// Phase 3: Relay server
// ========================================

// MustInitRelay builds the token issuer, the Live proxy, the HTTP server and
// the maintenance workers
func (c *Container) MustInitRelay() {
	cfg := c.Config

	c.Issuer = token.NewIssuer(gemini.NewTokens(c.Client), provideTokenCache(cfg, c.Redis, c.Log), cfg.Token, cfg.Gemini.LiveModel)

	c.Proxy = live.NewProxyServer(gemini.NewLive(c.Client), c.LiveExecutor(), c.Tracer, live.Config{
		Model:          cfg.Gemini.LiveModel,
		Usage:          c.Usage,
		IncludeSearch:  true,
		ClientRate:     cfg.Live.ClientRate,
		ClientBurst:    cfg.Live.ClientBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	c.Scheduler = provideWorkers(cfg.Workers, cfg.Live, c.Issuer, c.Proxy, c.Usage, c.ToolStats)

	c.HealthHandler = health.New(c.Log.Named("health"), cfg.App.Name, cfg.App.Version)
	if c.Redis != nil {
		c.HealthHandler.AddCheck("redis", c.Redis.Health)
	}
	c.HealthHandler.AddCheck("workers", c.Scheduler.HealthCheck(3*maxInterval(cfg.Workers)))

	c.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:           cfg.Server.Addr(),
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		StaticDir:      cfg.Server.StaticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, c.HealthHandler, c.Issuer, c.Proxy, c.Log.Named("http"))
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

// provideRedis connects when REDIS_HOST is set; failures fall back to
// in-process caches
func provideRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redisclient.Client {
	if !cfg.Enabled() {
		log.Info("Redis not configured, using in-process caches")
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := redisclient.NewClient(pingCtx, cfg, "geminilab:")
	if err != nil {
		log.Warnw("Redis unavailable, using in-process caches", "addr", cfg.Addr(), "error", err)
		return nil
	}

	log.Infow("✓ Redis connected", "addr", cfg.Addr())
	return client
}

func provideTokenCache(cfg *config.Config, redis *redisclient.Client, log *logger.Logger) token.Cache {
	if cfg.Token.Cache == "redis" {
		if redis != nil {
			return token.NewRedisCache(redis)
		}
		log.Warn("TOKEN_CACHE=redis but Redis is unavailable, caching tokens in memory")
	}
	return token.NewMemoryCache()
}
