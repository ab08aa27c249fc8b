// Package handler is the HTTP boundary: chat turns, session listings and
// health, rendered in the success/error envelopes clients expect.
package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/set-night/agentchat/internal/middleware"
	"github.com/set-night/agentchat/internal/service"
	"github.com/set-night/agentchat/internal/upload"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies needed by the HTTP routes.
type Handler struct {
	chat           *service.ChatService
	sessions       *service.SessionService
	parser         *upload.Parser
	db             Pinger
	maxUploadBytes int64
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Chat           *service.ChatService
	Sessions       *service.SessionService
	Parser         *upload.Parser
	DB             Pinger
	MaxUploadBytes int64
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		chat:           deps.Chat,
		sessions:       deps.Sessions,
		parser:         deps.Parser,
		db:             deps.DB,
		maxUploadBytes: deps.MaxUploadBytes,
	}
}

// RegisterRoutes mounts the API under prefix, e.g. "/api/v1".
func (h *Handler) RegisterRoutes(e *echo.Echo, prefix string) {
	g := e.Group(prefix)
	g.GET("/health", h.Health)

	chat := g.Group("/chat")
	chat.POST("", h.Chat, middleware.Platform())
	chat.GET("/sessions", h.ListSessions, middleware.Platform())
	chat.GET("/sessions/messages/:session_id", h.ListMessages)
	chat.DELETE("/sessions/:session_id", h.DeleteSession)
}
