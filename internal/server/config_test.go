package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gopresence/internal/presence"
)

func TestNewConfigDefaults(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()

	req.Equal(":8080", cfg.Port)
	req.Equal([]string{"http://localhost:8080"}, cfg.AllowedOrigins)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(256, cfg.SendBufferSize)
	req.Equal(RateLimitConfig{Burst: 5, RefillInterval: time.Second}, cfg.RateLimit)
	req.Equal(presence.DefaultTypingTimeout, cfg.TypingTimeout)
	req.Equal(presence.DefaultHistoryLimit, cfg.HistoryLimit)
	req.Empty(cfg.BadgerPath)
	req.Equal("INFO", cfg.LogLevel)
}

func TestNewConfigFromEnv(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, https://b.example ,")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("TYPING_TIMEOUT", "1500ms")
	t.Setenv("HISTORY_LIMIT", "0")
	t.Setenv("BADGER_PATH", "/tmp/relay")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("MODERATION_WORDS", "darn,heck")

	cfg, err := NewConfigFromEnv()
	req.NoError(err)

	req.Equal(":9090", cfg.Port)
	req.Equal([]string{"http://a.example", "https://b.example"}, cfg.AllowedOrigins)
	req.Equal(int64(1024), cfg.MaxMessageSize)
	req.Equal(RateLimitConfig{Burst: 10, RefillInterval: 2 * time.Second}, cfg.RateLimit)
	req.Equal(1500*time.Millisecond, cfg.TypingTimeout)
	req.Zero(cfg.HistoryLimit)
	req.Equal("/tmp/relay", cfg.BadgerPath)
	req.Equal("DEBUG", cfg.LogLevel)
	req.Equal([]string{"darn", "heck"}, cfg.ModerationWords)
	req.Equal(256, cfg.SendBufferSize)
}

func TestNewConfigFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "lots")

	_, err := NewConfigFromEnv()
	require.Error(t, err)
}

func TestSanitizeConfig(t *testing.T) {
	req := require.New(t)
	origins := []string{"http://a.example"}

	cfg := sanitizeConfig(Config{
		AllowedOrigins: origins,
		HistoryLimit:   -4,
		RateLimit:      RateLimitConfig{Burst: -1},
	})

	req.Equal(":8080", cfg.Port)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(256, cfg.SendBufferSize)
	req.Equal(RateLimitConfig{Burst: 5, RefillInterval: time.Second}, cfg.RateLimit)
	req.Equal(presence.DefaultTypingTimeout, cfg.TypingTimeout)
	req.Zero(cfg.HistoryLimit)
	req.Equal("INFO", cfg.LogLevel)
	req.Equal(10*time.Second, cfg.ShutdownTimeout)

	cfg.AllowedOrigins[0] = "mutated"
	req.Equal("http://a.example", origins[0])
}
