package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

// Pool is the part of the connection registry the health check reads.
type Pool interface {
	Global(ctx context.Context) (*database.Connection, error)
	Len() int
}

// HealthHandler reports liveness and, on ?check=db, global database health.
type HealthHandler struct {
	pool Pool
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(pool Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	log := logger.FromEcho(c)
	log.Debug("Health check requested")

	response := map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	if c.QueryParam("check") == "db" {
		if _, err := h.pool.Global(c.Request().Context()); err != nil {
			log.Error("Global database unhealthy", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			response["db_error"] = "Failed to reach global database"
			return c.JSON(http.StatusServiceUnavailable, response)
		}
		response["db_status"] = "ok"
		response["connections"] = h.pool.Len()
	}

	return c.JSON(http.StatusOK, response)
}
