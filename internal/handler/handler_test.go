package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/agentchat/internal/domain"
	"github.com/set-night/agentchat/internal/repository/repotest"
	"github.com/set-night/agentchat/internal/service"
	"github.com/set-night/agentchat/internal/upload"
)

type stubRuntime struct {
	mu        sync.Mutex
	sessions  map[string]bool
	createErr error
}

func (r *stubRuntime) GetSession(_ context.Context, appName, userID, sessionID string) (*domain.RuntimeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sessions[sessionID] {
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
	r.sessions[id] = true
	return &domain.RuntimeSession{ID: id, AppName: appName, UserID: userID, State: state}, nil
}

func (r *stubRuntime) RunTurn(_ context.Context, turn domain.Turn) (string, error) {
	return "echo: " + turn.Query, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	e       *echo.Echo
	runtime *stubRuntime
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	store := repotest.NewSQLiteStore(t)
	rt := &stubRuntime{sessions: map[string]bool{}}

	h := New(Deps{
		Chat: service.NewChatService(store, rt, service.ChatOptions{
			FallbackResponse: "fallback",
		}),
		Sessions:       service.NewSessionService(store),
		Parser:         upload.NewParser(maxUpload),
		DB:             store,
		MaxUploadBytes: maxUpload,
	})

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = NewValidator()
	h.RegisterRoutes(e, "/api/v1")
	return &testServer{e: e, runtime: rt}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

type fileField struct {
	name string
	body string
}

func chatRequest(t *testing.T, platform string, fields map[string]string, file *fileField) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("file", file.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(file.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	target := "/api/v1/chat"
	if platform != "" {
		target += "?platform=" + url.QueryEscape(platform)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type chatEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    ChatData `json:"data"`
}

type messagesEnvelope struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    []domain.Message `json:"data"`
	Meta    Meta             `json:"meta"`
}

type sessionsEnvelope struct {
	Success bool             `json:"success"`
	Data    []domain.Session `json:"data"`
	Meta    Meta             `json:"meta"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.get("/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, rec.Body.String())
}

func TestHealthDatabaseDown(t *testing.T) {
	h := New(Deps{DB: pingerFunc(func(context.Context) error { return errors.New("refused") })})
	e := echo.New()
	h.RegisterRoutes(e, "/api/v1")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestChatWithFileThenListAndDelete(t *testing.T) {
	s := newTestServer(t, 1<<20)

	rec := s.do(chatRequest(t, "lockit_trade",
		map[string]string{"user_query": "what's EURUSD doing", "user_id": "u1"},
		&fileField{name: "trades.csv", body: "symbol,pnl\nEURUSD,12.5\n"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	chat := decode[chatEnvelope](t, rec)
	assert.True(t, chat.Success)
	assert.Equal(t, "You have received a new message", chat.Message)
	assert.Equal(t, "echo: what's EURUSD doing", chat.Data.Response)
	assert.Equal(t, "what's EURUSD doing", chat.Data.UserQuery)
	require.NotEmpty(t, chat.Data.SessionID)

	rec = s.get("/api/v1/chat/sessions?platform=lockit_trade&user_id=u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sessions := decode[sessionsEnvelope](t, rec)
	require.Len(t, sessions.Data, 1)
	assert.Equal(t, chat.Data.SessionID, sessions.Data[0].SessionID)
	assert.Equal(t, Meta{Total: 1, Page: 1, PageSize: 20, TotalPages: 1}, sessions.Meta)

	rec = s.get("/api/v1/chat/sessions/messages/" + chat.Data.SessionID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msgs := decode[messagesEnvelope](t, rec)
	assert.Equal(t, "Session messages retrieved successfully!", msgs.Message)
	require.Len(t, msgs.Data, 2)
	assert.Equal(t, domain.SenderUser, msgs.Data[0].Sender)
	assert.Equal(t, "csv_file", msgs.Data[0].Resource["source"])
	assert.Equal(t, domain.SenderAI, msgs.Data[1].Sender)
	assert.Nil(t, msgs.Data[1].Resource)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/chat/sessions/"+chat.Data.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.get("/api/v1/chat/sessions/messages/" + chat.Data.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[messagesEnvelope](t, rec).Data)

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/chat/sessions/"+chat.Data.SessionID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).ErrorType)
}

func TestChatFollowUpKeepsSession(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(chatRequest(t, "restro", map[string]string{"user_query": "hi", "user_id": "u1"}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[chatEnvelope](t, rec)

	rec = s.do(chatRequest(t, "restro", map[string]string{
		"user_query": "again", "user_id": "u1", "session_id": first.Data.SessionID,
	}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, first.Data.SessionID, decode[chatEnvelope](t, rec).Data.SessionID)

	rec = s.get("/api/v1/chat/sessions/messages/" + first.Data.SessionID + "?page=2&page_size=3")
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decode[messagesEnvelope](t, rec)
	require.Len(t, msgs.Data, 1)
	assert.Equal(t, Meta{Total: 4, Page: 2, PageSize: 3, TotalPages: 2}, msgs.Meta)
}

func TestChatTradeDataWinsOverFile(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(chatRequest(t, "lockit_trade",
		map[string]string{"user_query": "q", "user_id": "u1", "trade_data": `[{"symbol":"XAUUSD","pnl":3}]`},
		&fileField{name: "trades.csv", body: "symbol,pnl\nEURUSD,1\n"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sessionID := decode[chatEnvelope](t, rec).Data.SessionID

	msgs := decode[messagesEnvelope](t, s.get("/api/v1/chat/sessions/messages/"+sessionID))
	require.NotEmpty(t, msgs.Data)
	assert.Equal(t, "trade_data", msgs.Data[0].Resource["source"])
}

func TestChatValidationErrors(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name     string
		platform string
		fields   map[string]string
		field    string
		tag      string
	}{
		{"missing platform", "", map[string]string{"user_query": "q", "user_id": "u"}, "platform", "required"},
		{"unknown platform", "casino", map[string]string{"user_query": "q", "user_id": "u"}, "platform", "platform"},
		{"missing query", "restro", map[string]string{"user_id": "u"}, "user_query", "required"},
		{"missing user", "restro", map[string]string{"user_query": "q"}, "user_id", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(chatRequest(t, tt.platform, tt.fields, nil))
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Equal(t, "validation_error", resp.ErrorType)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, tt.field, resp.Errors[0].Field)
			assert.Equal(t, tt.tag, resp.Errors[0].Type)
		})
	}
}

func TestChatBadUploads(t *testing.T) {
	s := newTestServer(t, 0)
	fields := map[string]string{"user_query": "q", "user_id": "u1"}

	rec := s.do(chatRequest(t, "restro", fields, &fileField{name: "trades.xls", body: "binary"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode[ErrorResponse](t, rec).ErrorType)

	bad := map[string]string{"user_query": "q", "user_id": "u1", "trade_data": "not json"}
	rec = s.do(chatRequest(t, "restro", bad, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatBodyTooLarge(t *testing.T) {
	s := newTestServer(t, 64)

	rec := s.do(chatRequest(t, "restro",
		map[string]string{"user_query": "q", "user_id": "u1"},
		&fileField{name: "trades.csv", body: strings.Repeat("EURUSD,1\n", 100)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestChatRuntimeUnavailable(t *testing.T) {
	s := newTestServer(t, 0)
	s.runtime.createErr = errors.New("connection refused")

	rec := s.do(chatRequest(t, "restro", map[string]string{"user_query": "q", "user_id": "u1"}, nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "runtime_error", resp.ErrorType)
	assert.NotContains(t, resp.Message, "connection refused")
}

func TestChatMessageWriteFailure(t *testing.T) {
	s := newTestServer(t, 0)
	unmirrored := uuid.NewString()
	s.runtime.sessions[unmirrored] = true

	rec := s.do(chatRequest(t, "restro", map[string]string{
		"user_query": "q",
		"user_id":    "u1",
		"session_id": unmirrored,
	}, nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "internal_error", resp.ErrorType)
	assert.NotContains(t, resp.Message, "FOREIGN KEY")

	rec = s.get("/api/v1/chat/sessions/messages/" + unmirrored)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[messagesEnvelope](t, rec).Data)
}

func TestSessionEndpointsRejectBadInput(t *testing.T) {
	s := newTestServer(t, 0)

	for _, path := range []string{
		"/api/v1/chat/sessions/messages/not-a-uuid",
		"/api/v1/chat/sessions?platform=restro&page=0",
		"/api/v1/chat/sessions?platform=restro&page_size=101",
		"/api/v1/chat/sessions?platform=restro&page=abc",
		"/api/v1/chat/sessions",
	} {
		rec := s.get(path)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, path)
		assert.Equal(t, "validation_error", decode[ErrorResponse](t, rec).ErrorType, path)
	}

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/chat/sessions/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSessionsEmpty(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.get("/api/v1/chat/sessions?platform=restro")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"success":true,"message":"Session list retrieved successfully!","data":[],"meta":{"total":0,"page":1,"page_size":20,"total_pages":0}}`,
		rec.Body.String())
}

func TestErrorResponseHidesInternalErrors(t *testing.T) {
	resp := errorResponse(errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal_error", resp.ErrorType)
	assert.NotContains(t, resp.Message, "password")

	resp = errorResponse(echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"))
	assert.Equal(t, "rate_limited", resp.ErrorType)

	resp = errorResponse(domain.ErrSessionExists)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
