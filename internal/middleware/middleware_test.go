package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/agentchat/internal/domain"
)

type structValidator struct{}

func (structValidator) Validate(i any) error {
	q, ok := i.(*platformQuery)
	if ok && !domain.Platform(q.Platform).Valid() {
		return domain.ErrInvalidPlatform
	}
	return nil
}

func TestRateLimitHTTP(t *testing.T) {
	e := echo.New()
	e.Use(RateLimitHTTP(NewRateLimiterStore(2)))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	assert.Nil(t, NewRateLimiterStore(0))

	e := echo.New()
	e.Use(RateLimitHTTP(nil))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRequestLevel(t *testing.T) {
	for _, tc := range []struct {
		name string
		v    echomw.RequestLoggerValues
		want slog.Level
	}{
		{"health under prefix", echomw.RequestLoggerValues{RoutePath: "/api/v1/health", URIPath: "/api/v1/health", Status: 200}, slog.LevelDebug},
		{"metrics", echomw.RequestLoggerValues{RoutePath: "/metrics", URIPath: "/metrics", Status: 200}, slog.LevelDebug},
		{"chat", echomw.RequestLoggerValues{RoutePath: "/api/v1/chat", URIPath: "/api/v1/chat", Status: 200}, slog.LevelInfo},
		{"health failing", echomw.RequestLoggerValues{RoutePath: "/api/v1/health", URIPath: "/api/v1/health", Status: 503}, slog.LevelError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, requestLevel(tc.v))
		})
	}
}

func TestRecoverHTTP(t *testing.T) {
	e := echo.New()
	e.Use(RecoverHTTP())
	e.GET("/boom", func(c echo.Context) error { panic("kaboom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPlatform(t *testing.T) {
	e := echo.New()
	e.Validator = structValidator{}
	e.GET("/sessions", func(c echo.Context) error {
		return c.String(http.StatusOK, GetPlatform(c).String())
	}, Platform())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions?platform=lockit_trade", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lockit_trade", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/sessions?platform=casino", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	err := Platform()(func(echo.Context) error { return nil })(c)
	assert.ErrorIs(t, err, domain.ErrInvalidPlatform)
}

func TestChatUserContext(t *testing.T) {
	assert.Equal(t, "tg:42", TelegramUserID(42))
	assert.Nil(t, GetChatUser(context.Background()))

	ctx := context.WithValue(context.Background(), ChatUserKey, &ChatUser{UserID: "tg:7", TelegramID: 7})
	u := GetChatUser(ctx)
	require.NotNil(t, u)
	assert.Equal(t, int64(7), u.TelegramID)
}
