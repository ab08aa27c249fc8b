package service

import (
	"context"

	"github.com/set-night/agentchat/internal/domain"
)

// Store is the persistence the services depend on.
type Store interface {
	ListSessions(ctx context.Context, filter domain.SessionFilter, page domain.PageRequest) ([]domain.Session, int64, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	CreateSession(ctx context.Context, sessionID string, ns domain.NewSession) (*domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListMessages(ctx context.Context, sessionID string, page domain.PageRequest) ([]domain.Message, int64, error)
	CreateMessages(ctx context.Context, sessionID string, msgs []domain.NewMessage) ([]domain.Message, error)
}

// Runtime is the conversational agent runtime that owns session identity
// and produces replies.
type Runtime interface {
	GetSession(ctx context.Context, appName, userID, sessionID string) (*domain.RuntimeSession, error)
	CreateSession(ctx context.Context, appName, userID string, state map[string]any) (*domain.RuntimeSession, error)
	RunTurn(ctx context.Context, turn domain.Turn) (string, error)
}
