package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/set-night/agentchat/internal/domain"
	"github.com/set-night/agentchat/internal/middleware"
	"github.com/set-night/agentchat/internal/service"
)

type chatForm struct {
	UserQuery string `form:"user_query" json:"user_query" validate:"required"`
	UserID    string `form:"user_id" json:"user_id" validate:"required"`
	SessionID string `form:"session_id" json:"session_id"`
	TradeData string `form:"trade_data" json:"trade_data"`
}

// Chat handles POST /chat: one user turn, optionally carrying trade data as
// an inline JSON field or an uploaded file. Inline data wins over a file.
func (h *Handler) Chat(c echo.Context) error {
	req := c.Request()
	if h.maxUploadBytes > 0 {
		req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadBytes)
	}

	var form chatForm
	if err := (&echo.DefaultBinder{}).BindBody(c, &form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return tooLarge
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, bindMessage(err))
	}
	if err := c.Validate(&form); err != nil {
		return err
	}

	resource, err := h.resource(c, form)
	if err != nil {
		return err
	}

	res, err := h.chat.Chat(req.Context(), service.ChatRequest{
		Query:     form.UserQuery,
		UserID:    form.UserID,
		Platform:  middleware.GetPlatform(c),
		SessionID: form.SessionID,
		Resource:  resource,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dataResponse("You have received a new message", ChatData{
		Response:  res.Message,
		SessionID: res.SessionID,
		UserQuery: form.UserQuery,
	}))
}

func (h *Handler) resource(c echo.Context, form chatForm) (domain.Resource, error) {
	if form.TradeData != "" {
		return h.parser.ParseInline(form.TradeData)
	}

	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return h.parseUpload(fh)
}

func (h *Handler) parseUpload(fh *multipart.FileHeader) (domain.Resource, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	res, err := h.parser.Parse(fh.Filename, f)
	if err != nil {
		return nil, err
	}
	slog.Debug("upload parsed", "filename", fh.Filename, "size", fh.Size, "source", res["source"])
	return res, nil
}
