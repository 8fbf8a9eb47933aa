// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/gopresence/internal/presence"
)

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultSendBuffer      = 256
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "INFO"
)

// RateLimitConfig defines the parameters for per-connection frame rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay settings.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	SendBufferSize  int
	RateLimit       RateLimitConfig
	TypingTimeout   time.Duration
	HistoryLimit    int
	BadgerPath      string
	LogLevel        string
	ModerationWords []string
	ShutdownTimeout time.Duration
}

// environment mirrors Config with one field per variable.
type environment struct {
	Port            string        `env:"SERVER_PORT"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize  int           `env:"MAX_MESSAGE_SIZE"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL"`
	TypingTimeout   time.Duration `env:"TYPING_TIMEOUT"`
	HistoryLimit    *int          `env:"HISTORY_LIMIT"`
	BadgerPath      string        `env:"BADGER_PATH"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	ModerationWords string        `env:"MODERATION_WORDS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBuffer,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		TypingTimeout:   presence.DefaultTypingTimeout,
		HistoryLimit:    presence.DefaultHistoryLimit,
		LogLevel:        defaultLogLevel,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv loads an optional .env file, then overrides the defaults
// with every variable that is set.
func NewConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	var vars environment
	if _, err := env.UnmarshalFromEnviron(&vars); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	cfg := defaultConfig()
	if vars.Port != "" {
		cfg.Port = vars.Port
	}
	if vars.AllowedOrigins != "" {
		cfg.AllowedOrigins = splitList(vars.AllowedOrigins)
	}
	if vars.MaxMessageSize > 0 {
		cfg.MaxMessageSize = int64(vars.MaxMessageSize)
	}
	if vars.SendBufferSize > 0 {
		cfg.SendBufferSize = vars.SendBufferSize
	}
	if vars.RateLimitBurst > 0 {
		cfg.RateLimit.Burst = vars.RateLimitBurst
	}
	if vars.RateLimitRefill > 0 {
		cfg.RateLimit.RefillInterval = vars.RateLimitRefill
	}
	if vars.TypingTimeout > 0 {
		cfg.TypingTimeout = vars.TypingTimeout
	}
	if vars.HistoryLimit != nil {
		cfg.HistoryLimit = *vars.HistoryLimit
	}
	if vars.ModerationWords != "" {
		cfg.ModerationWords = splitList(vars.ModerationWords)
	}
	if vars.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = vars.ShutdownTimeout
	}
	cfg.BadgerPath = vars.BadgerPath
	cfg.LogLevel = vars.LogLevel

	return &cfg, nil
}

// sanitizeConfig replaces unusable values with defaults.
func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBuffer
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = presence.DefaultTypingTimeout
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	cfg.ModerationWords = append([]string(nil), cfg.ModerationWords...)
	return cfg
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
