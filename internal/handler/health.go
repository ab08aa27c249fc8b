package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/set-night/agentchat/internal/config"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), config.HealthCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		slog.Warn("health check: database unreachable", "error", err)
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Database: "unavailable"})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "healthy", Database: "ok"})
}
