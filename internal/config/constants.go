package config

import "time"

const (
	// Service identity reported to tracing backends
	ServiceName    = "agentchat"
	ServiceVersion = "1.0.0"

	// Graceful shutdown window for the HTTP server
	ShutdownTimeout = 10 * time.Second

	// Health check timeout for the store ping
	HealthCheckTimeout = 2 * time.Second

	// Pool health-check period (pre-ping of idle connections)
	PoolHealthCheckPeriod = time.Minute

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Telegram typing indicator refresh
	TypingInterval = 4 * time.Second

	// Sessions per page in the Telegram /sessions view
	SessionsPerPage = 5

	// Telegram ops notification timeout
	NotifyTimeout = 10 * time.Second
)
