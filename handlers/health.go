package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/padraicbc/usertokenapi/db"
)

// Health reports liveness only; it never touches the store.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether a trivial store query succeeds.
func (h *Handler) Ready(c echo.Context) error {
	if err := db.Ping(c.Request().Context(), h.db); err != nil {
		h.log.Warn("readiness check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]bool{"ready": false})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ready": true})
}
