package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/set-night/agentchat/internal/domain"
	"github.com/set-night/agentchat/internal/telemetry"
)

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	Query     string
	UserID    string
	Platform  domain.Platform
	SessionID string
	Resource  domain.Resource
}

func (r ChatRequest) Validate() error {
	if !r.Platform.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPlatform, r.Platform)
	}
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", domain.ErrInvalidRequest)
	}
	return nil
}

type ChatOptions struct {
	// Agents maps a platform to the runtime agent serving it. Platforms
	// without an entry use their own name.
	Agents           map[domain.Platform]string
	FallbackResponse string
	Metrics          *telemetry.Metrics
	Tracer           *telemetry.Tracer
}

// ChatService reconciles an inbound turn with the runtime's session, runs
// the turn and records the user/ai message pair.
type ChatService struct {
	store    Store
	runtime  Runtime
	agents   map[domain.Platform]string
	fallback string
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
}

func NewChatService(store Store, runtime Runtime, opts ChatOptions) *ChatService {
	return &ChatService{
		store:    store,
		runtime:  runtime,
		agents:   opts.Agents,
		fallback: opts.FallbackResponse,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
	}
}

// Session lifecycle states within a turn.
const (
	stateNoSession = "no_session"
	stateResolving = "resolving"
	stateCreating  = "creating"
	stateActive    = "active"
	stateFailed    = "failed"
)

func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*domain.ChatResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	platform := req.Platform.String()
	ctx, span := s.tracer.Start(ctx, "chat.turn",
		attribute.String("platform", platform),
		attribute.String("user_id", req.UserID),
	)
	defer span.End()

	status := "ok"
	defer func() { s.metrics.RecordTurn(platform, status, time.Since(start)) }()

	transition(ctx, span, stateNoSession)
	sessionID, err := s.resolveSession(ctx, span, req)
	if err != nil {
		status = stateFailed
		transition(ctx, span, stateFailed)
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("session_id", sessionID))
	transition(ctx, span, stateActive)

	response, degraded := s.runTurn(ctx, req, sessionID)
	if degraded {
		status = "degraded"
	}

	if _, err := s.store.CreateMessages(ctx, sessionID, domain.TurnMessages(req.Query, req.Resource, response)); err != nil {
		status = stateFailed
		transition(ctx, span, stateFailed)
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save messages: %w", err)
	}

	return &domain.ChatResult{SessionID: sessionID, Message: response}, nil
}

// resolveSession returns the runtime session the turn belongs to, creating
// it (and its local mirror) when the caller supplied none or an unknown one.
func (s *ChatService) resolveSession(ctx context.Context, span trace.Span, req ChatRequest) (string, error) {
	platform := req.Platform.String()

	if req.SessionID != "" {
		transition(ctx, span, stateResolving)
		_, err := s.runtime.GetSession(ctx, platform, req.UserID, req.SessionID)
		switch {
		case err == nil:
			s.metrics.RecordReconciliation(platform, telemetry.ReconcileResumed)
			return req.SessionID, nil
		case errors.Is(err, domain.ErrRuntimeSessionNotFound):
			slog.Info("runtime session not found, starting a new one",
				"session_id", req.SessionID, "user_id", req.UserID, "platform", platform)
		default:
			slog.Warn("runtime session lookup failed, starting a new one",
				"error", err, "session_id", req.SessionID, "user_id", req.UserID, "platform", platform)
			s.metrics.RecordReconciliation(platform, telemetry.ReconcileLookupFailed)
		}
	}

	transition(ctx, span, stateCreating)
	rs, err := s.runtime.CreateSession(ctx, platform, req.UserID, map[string]any{})
	if err != nil {
		return "", fmt.Errorf("%w: create session: %w", domain.ErrRuntime, err)
	}

	if _, err := s.store.CreateSession(ctx, rs.ID, domain.NewSession{UserID: req.UserID, Platform: req.Platform}); err != nil {
		if !errors.Is(err, domain.ErrSessionExists) {
			slog.Error("runtime session has no local record",
				"error", err, "runtime_session_id", rs.ID, "user_id", req.UserID, "platform", platform)
			s.metrics.RecordOrphan(platform)
		}
		return "", fmt.Errorf("save session: %w", err)
	}

	s.metrics.RecordReconciliation(platform, telemetry.ReconcileCreated)
	slog.Info("chat session created", "session_id", rs.ID, "user_id", req.UserID, "platform", platform)
	return rs.ID, nil
}

// runTurn never fails: an empty or failed run is answered with the fallback
// text, reported through the second return value.
func (s *ChatService) runTurn(ctx context.Context, req ChatRequest, sessionID string) (string, bool) {
	text, err := s.runtime.RunTurn(ctx, domain.Turn{
		AppName:   req.Platform.String(),
		Agent:     s.agentFor(req.Platform),
		UserID:    req.UserID,
		SessionID: sessionID,
		Query:     req.Query,
	})
	if err != nil {
		slog.Warn("agent run failed, answering with fallback",
			"error", err, "session_id", sessionID, "platform", req.Platform.String())
	}
	if err != nil || text == "" {
		s.metrics.RecordDegraded(req.Platform.String())
		return s.fallback, true
	}
	return text, false
}

func (s *ChatService) agentFor(p domain.Platform) string {
	if name, ok := s.agents[p]; ok && name != "" {
		return name
	}
	return p.String()
}

func transition(ctx context.Context, span trace.Span, state string) {
	span.AddEvent("session." + state)
	slog.DebugContext(ctx, "chat session state", "state", state)
}
