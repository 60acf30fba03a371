package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("REDIS_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gem-key", cfg.Gemini.Key())
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.TextModel)
	assert.Equal(t, "models/gemini-2.5-flash-native-audio-preview-12-2025", cfg.Gemini.LiveModel)
	assert.Equal(t, "v1alpha", cfg.Gemini.APIVersion)

	assert.Equal(t, "localhost:8000", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, int32(10), cfg.Token.Uses)
	assert.Equal(t, 30*time.Minute, cfg.Token.Expire)
	assert.Equal(t, 5*time.Minute, cfg.Token.NewSessionExpire)

	assert.Equal(t, 30*time.Second, cfg.Live.ToolTimeout)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 2*time.Second, cfg.Research.PollInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "primary")
	t.Setenv("GEMINI_API_KEY", "secondary")
	t.Setenv("LMNR_PROJECT_API_KEY", "")
	t.Setenv("LAMINAR_API_KEY", "lmnr")
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("TELEGRAM_ALLOWED_CHAT_IDS", "1,2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "primary", cfg.Gemini.Key())
	assert.Equal(t, "lmnr", cfg.Laminar.Key())
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, []int64{1, 2}, cfg.Telegram.AllowedChatIDs)
}
