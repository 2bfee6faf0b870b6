package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/authorizer"
	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

// ErrorHandler writes errors as {"error": {"message": ...}} with a status
// derived from the error chain.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, message := classify(err)
	log := logger.FromEcho(c)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("Request rejected", zap.Int("status", status), zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, echo.Map{"error": echo.Map{"message": message}})
	}
	if err != nil {
		log.Error("Failed to write error response", zap.Error(err))
	}
}

func classify(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, tenant.ErrHostMissing):
		return http.StatusBadRequest, "Company id or host is required"
	case errors.Is(err, tenant.ErrInvalidID):
		return http.StatusBadRequest, "Invalid company id"
	case errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound, "Company not found or inactive"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, authorizer.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, authorizer.ErrUserNotFound), errors.Is(err, authorizer.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case database.IsConfigError(err):
		return http.StatusInternalServerError, "Database is not configured"
	case errors.Is(err, database.ErrConnectAttemptsExhausted), errors.Is(err, database.ErrNotReady):
		return http.StatusServiceUnavailable, "Database unavailable"
	}
	return http.StatusInternalServerError, "Internal server error"
}
