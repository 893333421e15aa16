package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/padraicbc/usertokenapi/db"
)

type seedResponse struct {
	Success    bool    `json:"success"`
	Inserted   int     `json:"inserted"`
	DurationMs float64 `json:"durationMs"`
}

// SetupDatabase replaces all users with {count} seeded ones.
func (h *Handler) SetupDatabase(c echo.Context) error {
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "count must be an integer")
	}
	if count < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, db.ErrNegativeCount.Error())
	}
	return h.seed(c, count)
}

// CreateDB seeds the configured default number of users.
func (h *Handler) CreateDB(c echo.Context) error {
	return h.seed(c, h.opts.SeedUserCount)
}

func (h *Handler) seed(c echo.Context, count int) error {
	if h.opts.ReadOnly {
		return echo.NewHTTPError(http.StatusForbidden, "database opened in read-only mode")
	}

	h.seedMu.Lock()
	defer h.seedMu.Unlock()

	start := time.Now()
	n, err := db.SeedUsers(c.Request().Context(), h.db, count, h.opts.SeedBatchSize)
	if err != nil {
		h.log.Error("seed users failed",
			zap.String("operation", "seed"),
			zap.Int("count", count),
			zap.Int("inserted", n),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "seeding failed").SetInternal(err)
	}
	took := time.Since(start)
	h.log.Info("seeded users", zap.Int("inserted", n), zap.Duration("took", took))

	return c.JSON(http.StatusOK, seedResponse{
		Success:    true,
		Inserted:   n,
		DurationMs: float64(took.Microseconds()) / 1000.0,
	})
}
