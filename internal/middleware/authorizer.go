package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/authorizer"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

// CompanyParam is the path parameter naming the tenant.
const CompanyParam = "companyId"

// AuthorizeFunc is an authorizer flavour, such as (*authorizer.Authorizer).Authorize.
type AuthorizeFunc func(ctx context.Context, req authorizer.Request) authorizer.Decision

// AuthorizerMiddleware runs decide before the handler chain. A Deny stops the
// request with 401 for bad tokens, 403 for unknown users, tenants and roles,
// and hands anything else to the error handler.
func AuthorizerMiddleware(decide AuthorizeFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			d := decide(c.Request().Context(), authorizer.Request{
				Authorization: c.Request().Header.Get(echo.HeaderAuthorization),
				CompanyID:     c.Param(CompanyParam),
			})
			if !d.Allowed() {
				log.Warn("Request denied by authorizer",
					zap.String("path", c.Path()),
					zap.Error(d.Reason))
				switch {
				case errors.Is(d.Reason, authorizer.ErrUnauthenticated):
					return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
				case d.Reason == nil,
					errors.Is(d.Reason, authorizer.ErrUserNotFound),
					errors.Is(d.Reason, authorizer.ErrForbidden),
					errors.Is(d.Reason, tenant.ErrTenantNotFound),
					errors.Is(d.Reason, tenant.ErrInvalidID):
					return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
				}
				return d.Reason
			}

			c.Set(decisionKey, d)
			logger.SetEcho(c, log.With(zap.String("principal_id", d.PrincipalID)))
			return next(c)
		}
	}
}
