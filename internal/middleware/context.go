package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/tgmkubi/restaurant-sst-api/internal/authorizer"
	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
)

const (
	requestIDKey = "request_id"
	decisionKey  = "authorizer_decision"
	userKey      = "user"
	companyKey   = "company"
	modelsKey    = "models"
	tenantKey    = "tenant_context"
)

// RequestID returns the id assigned by RequestIDMiddleware.
func RequestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}

// Decision returns the authorizer decision of the request.
func Decision(c echo.Context) (authorizer.Decision, bool) {
	d, ok := c.Get(decisionKey).(authorizer.Decision)
	return d, ok
}

// User returns the authenticated user.
func User(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(userKey).(*model.User)
	return u, ok && u != nil
}

// Company returns the company the authorizer resolved, if any.
func Company(c echo.Context) (*model.Company, bool) {
	company, ok := c.Get(companyKey).(*model.Company)
	return company, ok && company != nil
}

// Models returns the model set chosen by one of the database middlewares.
func Models(c echo.Context) (*database.Models, bool) {
	m, ok := c.Get(modelsKey).(*database.Models)
	return m, ok && m != nil
}

// Tenant returns the resolved tenant context. Only TenantDatabase sets it.
func Tenant(c echo.Context) (*tenant.Context, bool) {
	tc, ok := c.Get(tenantKey).(*tenant.Context)
	return tc, ok && tc != nil
}

// SetUser stores the authenticated user.
func SetUser(c echo.Context, u *model.User) { c.Set(userKey, u) }

// SetCompany stores the company the caller acts on.
func SetCompany(c echo.Context, company *model.Company) { c.Set(companyKey, company) }

// SetModels stores the model set handlers work on.
func SetModels(c echo.Context, m *database.Models) { c.Set(modelsKey, m) }

// SetTenant stores a resolved tenant and its models.
func SetTenant(c echo.Context, tc *tenant.Context) {
	c.Set(tenantKey, tc)
	c.Set(modelsKey, tc.Models)
}

// Actor names the caller in audit fields.
func Actor(c echo.Context) string {
	u, ok := User(c)
	switch {
	case !ok:
		return "system"
	case u.CognitoSub != "":
		return u.CognitoSub
	case !u.ID.IsZero():
		return u.ID.Hex()
	}
	return "system"
}
