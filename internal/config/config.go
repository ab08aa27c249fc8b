package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/set-night/agentchat/internal/domain"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// Connection pool
	PoolSize     int32         `env:"DB_POOL_SIZE" envDefault:"5"`
	MaxOverflow  int32         `env:"DB_MAX_OVERFLOW" envDefault:"10"`
	PoolTimeout  time.Duration `env:"DB_POOL_TIMEOUT" envDefault:"30s"`
	PoolRecycle  time.Duration `env:"DB_POOL_RECYCLE" envDefault:"30m"`
	PoolIdleTime time.Duration `env:"DB_POOL_IDLE_TIME" envDefault:"5m"`

	// Server
	Port           int    `env:"PORT" envDefault:"8000"`
	APIPrefix      string `env:"API_V1_PREFIX" envDefault:"/api/v1"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	RateLimit      int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Agent runtime
	RuntimeURL       string            `env:"AGENT_RUNTIME_URL" envDefault:"http://localhost:8080"`
	RuntimeTimeout   time.Duration     `env:"AGENT_RUNTIME_TIMEOUT" envDefault:"90s"`
	PlatformAgents   map[string]string `env:"PLATFORM_AGENTS" envDefault:"restro:restro_agent,lockit_trade:root_trading_agent"`
	FallbackResponse string            `env:"FALLBACK_RESPONSE" envDefault:"I apologize, I couldn't process your request. Please try again."`

	// Telemetry
	MetricsEnabled    bool    `env:"METRICS_ENABLED" envDefault:"true"`
	TracingExporter   string  `env:"TRACING_EXPORTER" envDefault:"none"`
	OTLPEndpoint      string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`

	// Telegram channel
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramPlatform string `env:"TELEGRAM_PLATFORM" envDefault:"lockit_trade"`

	// Telegram ops notifications
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("DB_POOL_SIZE must be >= 1, got %d", c.PoolSize)
	}
	if c.MaxOverflow < 0 {
		return fmt.Errorf("DB_MAX_OVERFLOW must be >= 0, got %d", c.MaxOverflow)
	}
	for name := range c.PlatformAgents {
		if _, err := domain.ParsePlatform(name); err != nil {
			return fmt.Errorf("PLATFORM_AGENTS: %w", err)
		}
	}
	if _, err := domain.ParsePlatform(c.TelegramPlatform); err != nil {
		return fmt.Errorf("TELEGRAM_PLATFORM: %w", err)
	}
	switch c.TracingExporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("TRACING_EXPORTER must be none, stdout or otlp, got %q", c.TracingExporter)
	}
	return nil
}

// MaxConns is the hard pool ceiling: the steady pool plus its overflow.
func (c *Config) MaxConns() int32 {
	return c.PoolSize + c.MaxOverflow
}

// AgentFor returns the runtime agent configured for a platform, falling back
// to the platform name itself.
func (c *Config) AgentFor(p domain.Platform) string {
	if name, ok := c.PlatformAgents[p.String()]; ok && name != "" {
		return name
	}
	return p.String()
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}
