package service

import (
	"context"
	"fmt"

	"github.com/set-night/agentchat/internal/domain"
)

type SessionService struct {
	store Store
}

func NewSessionService(store Store) *SessionService {
	return &SessionService{store: store}
}

func (s *SessionService) List(ctx context.Context, filter domain.SessionFilter, page domain.PageRequest) (domain.ListResult[domain.Session], error) {
	if !filter.Platform.Valid() {
		return domain.ListResult[domain.Session]{}, fmt.Errorf("%w: %q", domain.ErrInvalidPlatform, filter.Platform)
	}
	if err := page.Validate(); err != nil {
		return domain.ListResult[domain.Session]{}, err
	}

	sessions, total, err := s.store.ListSessions(ctx, filter, page)
	if err != nil {
		return domain.ListResult[domain.Session]{}, fmt.Errorf("list sessions: %w", err)
	}
	return domain.NewListResult(sessions, total, page), nil
}

// Messages lists a session's transcript oldest first. An unknown session
// yields an empty page.
func (s *SessionService) Messages(ctx context.Context, sessionID string, page domain.PageRequest) (domain.ListResult[domain.Message], error) {
	if err := page.Validate(); err != nil {
		return domain.ListResult[domain.Message]{}, err
	}

	msgs, total, err := s.store.ListMessages(ctx, sessionID, page)
	if err != nil {
		return domain.ListResult[domain.Message]{}, fmt.Errorf("list messages: %w", err)
	}
	return domain.NewListResult(msgs, total, page), nil
}

func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Delete removes the session and, through the cascade, its messages.
func (s *SessionService) Delete(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	return sess, nil
}
