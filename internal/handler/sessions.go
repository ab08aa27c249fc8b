package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/set-night/agentchat/internal/domain"
	"github.com/set-night/agentchat/internal/middleware"
)

type pageQuery struct {
	Page     int `query:"page" validate:"min=1"`
	PageSize int `query:"page_size" validate:"min=1,max=100"`
}

func defaultPage() pageQuery {
	return pageQuery{Page: domain.DefaultPage, PageSize: domain.DefaultPageSize}
}

func (q pageQuery) request() domain.PageRequest {
	return domain.PageRequest{Page: q.Page, PageSize: q.PageSize}
}

type listSessionsQuery struct {
	Page     int    `query:"page" validate:"min=1"`
	PageSize int    `query:"page_size" validate:"min=1,max=100"`
	UserID   string `query:"user_id"`
}

type sessionPath struct {
	SessionID string `param:"session_id" validate:"required,uuid"`
}

func bindSessionPath(c echo.Context) (string, error) {
	p := sessionPath{SessionID: c.Param("session_id")}
	if err := c.Validate(&p); err != nil {
		return "", err
	}
	return p.SessionID, nil
}

// ListSessions handles GET /chat/sessions.
func (h *Handler) ListSessions(c echo.Context) error {
	q := listSessionsQuery{Page: domain.DefaultPage, PageSize: domain.DefaultPageSize}
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	res, err := h.sessions.List(c.Request().Context(),
		domain.SessionFilter{Platform: middleware.GetPlatform(c), UserID: q.UserID},
		domain.PageRequest{Page: q.Page, PageSize: q.PageSize})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse("Session list retrieved successfully!", res))
}

// ListMessages handles GET /chat/sessions/messages/:session_id.
func (h *Handler) ListMessages(c echo.Context) error {
	sessionID, err := bindSessionPath(c)
	if err != nil {
		return err
	}
	q := defaultPage()
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	res, err := h.sessions.Messages(c.Request().Context(), sessionID, q.request())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse("Session messages retrieved successfully!", res))
}

// DeleteSession handles DELETE /chat/sessions/:session_id.
func (h *Handler) DeleteSession(c echo.Context) error {
	sessionID, err := bindSessionPath(c)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Delete(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataResponse("Session deleted successfully!", sess))
}
