package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

// ModelProvider hands out model sets. *database.Registry implements it.
type ModelProvider interface {
	GlobalModels(ctx context.Context) (*database.Models, error)
	TenantModels(ctx context.Context, name database.Name) (*database.Models, error)
}

// TenantResolver resolves requests to tenants. *tenant.Resolver implements it.
type TenantResolver interface {
	Resolve(ctx context.Context, req tenant.Request) (*tenant.Context, error)
}

// GlobalDatabase attaches the global models.
func GlobalDatabase(provider ModelProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			models, err := provider.GlobalModels(c.Request().Context())
			if err != nil {
				logger.FromEcho(c).Error("Global database unavailable", zap.Error(err))
				return err
			}
			SetModels(c, models)
			return next(c)
		}
	}
}

// TenantDatabase resolves the tenant from the company path parameter or the
// Host header and attaches its context and models.
func TenantDatabase(resolver TenantResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			tc, err := resolver.Resolve(c.Request().Context(), tenant.Request{
				CompanyID: c.Param(CompanyParam),
				Host:      c.Request().Host,
			})
			if err != nil {
				log.Warn("Tenant resolution failed",
					zap.String("company_id", c.Param(CompanyParam)),
					zap.String("host", c.Request().Host),
					zap.Error(err))
				return err
			}

			SetTenant(c, tc)
			logger.SetEcho(c, log.With(
				zap.String("company_id", tc.CompanyID.String()),
				zap.String("database", string(tc.DatabaseName))))
			return next(c)
		}
	}
}

// DefaultDatabase attaches the tenant models of the user's company, or the
// global models when the user belongs to none. It runs after RequireRoles.
func DefaultDatabase(provider ModelProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var (
				models *database.Models
				err    error
			)
			if u, ok := User(c); ok && u.CompanyID != nil && !u.CompanyID.IsZero() {
				models, err = provider.TenantModels(ctx, tenant.IDFromObjectID(*u.CompanyID).DatabaseName())
			} else {
				models, err = provider.GlobalModels(ctx)
			}
			if err != nil {
				logger.FromEcho(c).Error("Database unavailable", zap.Error(err))
				return err
			}

			SetModels(c, models)
			return next(c)
		}
	}
}
