package handler // handler contains the liveness endpoint

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness and, when a database is configured, whether
// it answers a ping.
type HealthHandler struct {
	DB *sql.DB // nil with the in-memory store
}

// Health is used by load balancers and monitoring systems. It returns 200
// "ok", or 503 when the database is unreachable.
func (h *HealthHandler) Health(c echo.Context) error {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "database unavailable")
		}
	}
	return c.String(http.StatusOK, "ok")
}
