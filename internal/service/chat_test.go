package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/agentchat/internal/domain"
	"github.com/set-night/agentchat/internal/repository/repotest"
	"github.com/set-night/agentchat/internal/telemetry"
)

const fallback = "I apologize, I couldn't process your request. Please try again."

// stubRuntime scripts the agent runtime: sessions live in memory and every
// turn answers with reply.
type stubRuntime struct {
	mu        sync.Mutex
	sessions  map[string]string // id -> user
	reply     string
	runErr    error
	getErr    error
	createErr error
	turns     []domain.Turn
}

func newStubRuntime(reply string) *stubRuntime {
	return &stubRuntime{sessions: map[string]string{}, reply: reply}
}

func (r *stubRuntime) GetSession(_ context.Context, appName, userID, sessionID string) (*domain.RuntimeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	if owner, ok := r.sessions[sessionID]; !ok || owner != userID {
		return nil, domain.ErrRuntimeSessionNotFound
	}
	return &domain.RuntimeSession{ID: sessionID, AppName: appName, UserID: userID}, nil
}

func (r *stubRuntime) CreateSession(_ context.Context, appName, userID string, state map[string]any) (*domain.RuntimeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	id := uuid.NewString()
	r.sessions[id] = userID
	return &domain.RuntimeSession{ID: id, AppName: appName, UserID: userID, State: state}, nil
}

func (r *stubRuntime) RunTurn(_ context.Context, turn domain.Turn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
	return r.reply, r.runErr
}

func (r *stubRuntime) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// failingStore fails CreateSession and delegates everything else.
type failingStore struct {
	Store
	err error
}

func (s failingStore) CreateSession(context.Context, string, domain.NewSession) (*domain.Session, error) {
	return nil, s.err
}

func newChat(t *testing.T, rt Runtime) (*ChatService, Store, *telemetry.Metrics) {
	t.Helper()
	store := repotest.NewSQLiteStore(t)
	metrics := telemetry.NewMetrics(true)
	svc := NewChatService(store, rt, ChatOptions{
		Agents:           map[domain.Platform]string{domain.PlatformLockitTrade: "root_trading_agent"},
		FallbackResponse: fallback,
		Metrics:          metrics,
	})
	return svc, store, metrics
}

func listAll(t *testing.T, store Store, sessionID string) []domain.Message {
	t.Helper()
	msgs, _, err := store.ListMessages(context.Background(), sessionID, domain.PageRequest{Page: 1, PageSize: 100})
	require.NoError(t, err)
	return msgs
}

func assertSeries(t *testing.T, m *telemetry.Metrics, name string, want int) {
	t.Helper()
	got, err := testutil.GatherAndCount(m.Registry(), name)
	require.NoError(t, err)
	assert.Equal(t, want, got, name)
}

func TestChatFirstTurnCreatesSession(t *testing.T) {
	for _, tc := range []struct {
		platform domain.Platform
		agent    string
	}{
		{domain.PlatformRestro, "restro"},
		{domain.PlatformLockitTrade, "root_trading_agent"},
	} {
		t.Run(tc.platform.String(), func(t *testing.T) {
			rt := newStubRuntime("EURUSD is consolidating around 1.08")
			svc, store, _ := newChat(t, rt)
			ctx := context.Background()

			res, err := svc.Chat(ctx, ChatRequest{
				Query:    "what's EURUSD doing",
				UserID:   "u1",
				Platform: tc.platform,
			})
			require.NoError(t, err)
			assert.Equal(t, "EURUSD is consolidating around 1.08", res.Message)
			assert.Equal(t, 1, rt.sessionCount())

			sessions, total, err := store.ListSessions(ctx,
				domain.SessionFilter{Platform: tc.platform, UserID: "u1"},
				domain.PageRequest{Page: 1, PageSize: 20})
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, sessions, 1)
			assert.Equal(t, res.SessionID, sessions[0].SessionID)
			assert.Equal(t, tc.platform, sessions[0].Platform)

			msgs := listAll(t, store, res.SessionID)
			require.Len(t, msgs, 2)
			assert.Equal(t, domain.SenderUser, msgs[0].Sender)
			assert.Equal(t, "what's EURUSD doing", msgs[0].Message)
			assert.Equal(t, domain.SenderAI, msgs[1].Sender)
			assert.Equal(t, res.Message, msgs[1].Message)

			require.Len(t, rt.turns, 1)
			assert.Equal(t, tc.agent, rt.turns[0].Agent)
			assert.Equal(t, tc.platform.String(), rt.turns[0].AppName)
			assert.Equal(t, res.SessionID, rt.turns[0].SessionID)
		})
	}
}

func TestChatFollowUpResumesSession(t *testing.T) {
	rt := newStubRuntime("ok")
	svc, store, metrics := newChat(t, rt)
	ctx := context.Background()

	first, err := svc.Chat(ctx, ChatRequest{Query: "what's EURUSD doing", UserID: "u1", Platform: domain.PlatformLockitTrade})
	require.NoError(t, err)

	second, err := svc.Chat(ctx, ChatRequest{
		Query:     "and GBPUSD?",
		UserID:    "u1",
		Platform:  domain.PlatformLockitTrade,
		SessionID: first.SessionID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, rt.sessionCount())

	msgs := listAll(t, store, first.SessionID)
	require.Len(t, msgs, 4)
	assert.Equal(t, "what's EURUSD doing", msgs[0].Message)
	assert.Equal(t, domain.SenderAI, msgs[1].Sender)
	assert.Equal(t, "and GBPUSD?", msgs[2].Message)
	assert.Equal(t, domain.SenderAI, msgs[3].Sender)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}

	// one created series, one resumed series
	assertSeries(t, metrics, "agentchat_session_reconciliations_total", 2)
}

func TestChatUnknownSessionStartsNewOne(t *testing.T) {
	rt := newStubRuntime("hi")
	svc, store, _ := newChat(t, rt)

	stale := uuid.NewString()
	res, err := svc.Chat(context.Background(), ChatRequest{
		Query:     "hello",
		UserID:    "u1",
		Platform:  domain.PlatformRestro,
		SessionID: stale,
	})
	require.NoError(t, err)
	assert.NotEqual(t, stale, res.SessionID)
	assert.Len(t, listAll(t, store, res.SessionID), 2)
	assert.Empty(t, listAll(t, store, stale))
}

func TestChatLookupFailureFallsBackToCreation(t *testing.T) {
	rt := newStubRuntime("hi")
	rt.getErr = errors.New("connection reset")
	svc, _, metrics := newChat(t, rt)

	res, err := svc.Chat(context.Background(), ChatRequest{
		Query:     "hello",
		UserID:    "u1",
		Platform:  domain.PlatformRestro,
		SessionID: uuid.NewString(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, 1, rt.sessionCount())
	assertSeries(t, metrics, "agentchat_session_reconciliations_total", 2)
}

func TestChatEmptyReplyUsesFallback(t *testing.T) {
	rt := newStubRuntime("")
	svc, store, _ := newChat(t, rt)

	res, err := svc.Chat(context.Background(), ChatRequest{Query: "hello", UserID: "u1", Platform: domain.PlatformRestro})
	require.NoError(t, err)
	assert.Equal(t, fallback, res.Message)

	msgs := listAll(t, store, res.SessionID)
	require.Len(t, msgs, 2)
	assert.Equal(t, fallback, msgs[1].Message)
}

func TestChatRunErrorUsesFallback(t *testing.T) {
	rt := newStubRuntime("never seen")
	rt.runErr = errors.New("agent crashed")
	svc, store, _ := newChat(t, rt)

	res, err := svc.Chat(context.Background(), ChatRequest{Query: "hello", UserID: "u1", Platform: domain.PlatformRestro})
	require.NoError(t, err)
	assert.Equal(t, fallback, res.Message)
	assert.Len(t, listAll(t, store, res.SessionID), 2)
}

func TestChatRuntimeCreateFailureIsFatal(t *testing.T) {
	rt := newStubRuntime("hi")
	rt.createErr = errors.New("runtime down")
	svc, store, _ := newChat(t, rt)
	ctx := context.Background()

	_, err := svc.Chat(ctx, ChatRequest{Query: "hello", UserID: "u1", Platform: domain.PlatformRestro})
	require.ErrorIs(t, err, domain.ErrRuntime)
	assert.Empty(t, rt.turns)

	_, total, err := store.ListSessions(ctx, domain.SessionFilter{Platform: domain.PlatformRestro}, domain.PageRequest{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestChatMirrorFailureCountsOrphan(t *testing.T) {
	rt := newStubRuntime("hi")
	store := repotest.NewSQLiteStore(t)
	metrics := telemetry.NewMetrics(true)
	svc := NewChatService(failingStore{Store: store, err: errors.New("disk full")}, rt, ChatOptions{
		FallbackResponse: fallback,
		Metrics:          metrics,
	})

	_, err := svc.Chat(context.Background(), ChatRequest{Query: "hello", UserID: "u1", Platform: domain.PlatformRestro})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRuntime)
	assert.Equal(t, 1, rt.sessionCount())
	assert.Empty(t, rt.turns)
	assertSeries(t, metrics, "agentchat_orphaned_runtime_sessions_total", 1)
}

func TestChatMessageWriteFailureIsInternal(t *testing.T) {
	rt := newStubRuntime("hi")
	// known to the runtime, never mirrored locally
	unmirrored := uuid.NewString()
	rt.sessions[unmirrored] = "u1"
	svc, store, _ := newChat(t, rt)

	res, err := svc.Chat(context.Background(), ChatRequest{
		Query:     "hello",
		UserID:    "u1",
		Platform:  domain.PlatformRestro,
		SessionID: unmirrored,
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.NotErrorIs(t, err, domain.ErrRuntime)
	assert.Len(t, rt.turns, 1)
	assert.Empty(t, listAll(t, store, unmirrored))
}

func TestChatResourceOnUserMessageOnly(t *testing.T) {
	rt := newStubRuntime("win rate looks fine")
	svc, store, _ := newChat(t, rt)

	res, err := svc.Chat(context.Background(), ChatRequest{
		Query:    "review my trades",
		UserID:   "u1",
		Platform: domain.PlatformLockitTrade,
		Resource: domain.Resource{"source": "csv_file"},
	})
	require.NoError(t, err)

	msgs := listAll(t, store, res.SessionID)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.Resource{"source": "csv_file"}, msgs[0].Resource)
	assert.Nil(t, msgs[1].Resource)
}

func TestChatValidation(t *testing.T) {
	svc, _, _ := newChat(t, newStubRuntime("x"))
	ctx := context.Background()

	_, err := svc.Chat(ctx, ChatRequest{Query: "  ", UserID: "u1", Platform: domain.PlatformRestro})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Chat(ctx, ChatRequest{Query: "hi", Platform: domain.PlatformRestro})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Chat(ctx, ChatRequest{Query: "hi", UserID: "u1", Platform: "casino"})
	assert.ErrorIs(t, err, domain.ErrInvalidPlatform)
}

func TestAgentForDefaultsToPlatformName(t *testing.T) {
	svc := NewChatService(nil, nil, ChatOptions{})
	assert.Equal(t, "restro", svc.agentFor(domain.PlatformRestro))
}
