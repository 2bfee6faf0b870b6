package middleware

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/authorizer"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

// RequireRoles loads the user and company forwarded by the authorizer into
// the request and rejects users whose role is not one of roles. With no roles
// any authenticated user passes.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			d, ok := Decision(c)
			if !ok || !d.Allowed() {
				log.Warn("No authorizer decision on request")
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			var user model.User
			if err := json.Unmarshal([]byte(d.Context[authorizer.ContextUser]), &user); err != nil {
				log.Error("Invalid user in authorizer context", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			SetUser(c, &user)

			if raw := d.Context[authorizer.ContextTenant]; raw != "" {
				var company model.Company
				if err := json.Unmarshal([]byte(raw), &company); err != nil {
					log.Error("Invalid tenant in authorizer context", zap.Error(err))
					return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
				}
				SetCompany(c, &company)
			}

			if len(roles) > 0 && !slices.Contains(roles, user.Role) {
				log.Warn("User role not permitted",
					zap.String("role", string(user.Role)),
					zap.Any("required", roles))
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}

			log.Debug("Request authenticated",
				zap.String("role", string(user.Role)),
				zap.String("email", user.Email))
			return next(c)
		}
	}
}
