package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"geminilab/pkg/errors"
)

type Config struct {
	App           AppConfig
	Gemini        GeminiConfig
	Laminar       LaminarConfig
	Server        ServerConfig
	Token         TokenConfig
	Live          LiveConfig
	Tools         ToolsConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Telegram      TelegramConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
	Research      ResearchConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"geminilab"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type GeminiConfig struct {
	APIKey         string        `envconfig:"GOOGLE_API_KEY"`
	FallbackAPIKey string        `envconfig:"GEMINI_API_KEY"`
	TextModel      string        `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-2.5-flash"`
	LiveModel      string        `envconfig:"GEMINI_MODEL" default:"models/gemini-2.5-flash-native-audio-preview-12-2025"`
	TTSModel       string        `envconfig:"GEMINI_TTS_MODEL" default:"gemini-2.5-flash-preview-tts"`
	APIVersion     string        `envconfig:"GEMINI_API_VERSION" default:"v1alpha"`
	HTTPTimeout    time.Duration `envconfig:"GEMINI_HTTP_TIMEOUT" default:"120s"`
}

// Key returns GOOGLE_API_KEY, or GEMINI_API_KEY when only the latter is set
func (c GeminiConfig) Key() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.FallbackAPIKey
}

type LaminarConfig struct {
	APIKey         string `envconfig:"LMNR_PROJECT_API_KEY"`
	FallbackAPIKey string `envconfig:"LAMINAR_API_KEY"`
	BaseURL        string `envconfig:"LAMINAR_BASE_URL" default:"https://api.lmnr.ai"`
	Enabled        bool   `envconfig:"LAMINAR_ENABLED" default:"true"`
}

// Key returns LMNR_PROJECT_API_KEY, or LAMINAR_API_KEY when only the latter is set
func (c LaminarConfig) Key() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.FallbackAPIKey
}

type ServerConfig struct {
	Host           string   `envconfig:"SERVER_HOST" default:"localhost"`
	Port           int      `envconfig:"SERVER_PORT" default:"8000"`
	StaticDir      string   `envconfig:"SERVER_STATIC_DIR" default:"client"`
	AllowedOrigins []string `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TokenConfig controls ephemeral Live API tokens handed to browsers
type TokenConfig struct {
	Uses             int32         `envconfig:"TOKEN_USES" default:"10"`
	Expire           time.Duration `envconfig:"TOKEN_EXPIRE" default:"30m"`
	NewSessionExpire time.Duration `envconfig:"TOKEN_NEW_SESSION_EXPIRE" default:"5m"`
	Cache            string        `envconfig:"TOKEN_CACHE" default:"memory"` // memory|redis
}

type LiveConfig struct {
	ToolTimeout        time.Duration `envconfig:"LIVE_TOOL_TIMEOUT" default:"30s"`
	MaxSessionDuration time.Duration `envconfig:"LIVE_MAX_SESSION_DURATION" default:"15m"`
	ClientRate         float64       `envconfig:"LIVE_CLIENT_RATE" default:"100"` // client messages per second
	ClientBurst        int           `envconfig:"LIVE_CLIENT_BURST" default:"200"`
}

type ToolsConfig struct {
	WeatherHTTPTimeout time.Duration `envconfig:"WEATHER_HTTP_TIMEOUT" default:"10s"`
	RetryAttempts      int           `envconfig:"TOOL_RETRY_ATTEMPTS" default:"1"`
	RetryBackoff       time.Duration `envconfig:"TOOL_RETRY_BACKOFF" default:"500ms"`
}

// RedisConfig is optional: an empty host keeps every cache in process
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type RateLimitConfig struct {
	Enabled      bool    `envconfig:"GEMINI_RATE_LIMIT_ENABLED" default:"true"`
	ReqPerMinute float64 `envconfig:"GEMINI_REQ_PER_MINUTE" default:"60"`
	Burst        int     `envconfig:"GEMINI_BURST" default:"10"`
}

type TelegramConfig struct {
	BotToken       string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	AllowedChatIDs []int64 `envconfig:"TELEGRAM_ALLOWED_CHAT_IDS"`
	Debug          bool    `envconfig:"TELEGRAM_DEBUG" default:"false"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for the relay server's background workers
type WorkerConfig struct {
	TokenPrewarmInterval  time.Duration `envconfig:"WORKER_TOKEN_PREWARM_INTERVAL" default:"1m"`
	SessionReaperInterval time.Duration `envconfig:"WORKER_SESSION_REAPER_INTERVAL" default:"30s"`
	UsageReportInterval   time.Duration `envconfig:"WORKER_USAGE_REPORT_INTERVAL" default:"5m"`
}

type ResearchConfig struct {
	PollInterval time.Duration `envconfig:"RESEARCH_POLL_INTERVAL" default:"2s"`
	Voice        string        `envconfig:"RESEARCH_VOICE" default:"Kore"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
