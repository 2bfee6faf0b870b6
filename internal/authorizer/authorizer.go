// Package authorizer decides whether a bearer token may call the API and
// produces the identity context handed to request handlers.
package authorizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/internal/metrics"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
	"github.com/tgmkubi/restaurant-sst-api/pkg/jwtutil"
)

// Context keys of an Allow decision. Values are JSON documents.
const (
	ContextUser   = "user"
	ContextTenant = "tenant"
)

var (
	// ErrUnauthenticated means the token is missing or invalid.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound means the token subject has no user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden means the user lacks the role the API requires.
	ErrForbidden = errors.New("forbidden")
)

// Effect is the outcome of an authorization.
type Effect string

const (
	Allow Effect = "Allow"
	Deny  Effect = "Deny"
)

// Decision is the result of Authorize. Reason is set on Deny.
type Decision struct {
	Effect      Effect
	PrincipalID string
	Context     map[string]string
	Reason      error
}

// Allowed reports whether the decision is Allow.
func (d Decision) Allowed() bool { return d.Effect == Allow }

func deny(reason error) Decision {
	return Decision{Effect: Deny, PrincipalID: "user", Reason: reason}
}

// Request is what an authorization looks at.
type Request struct {
	Authorization string
	CompanyID     string
}

// TenantResolver resolves a company id to a tenant.
type TenantResolver interface {
	ResolveByID(ctx context.Context, rawID string) (*tenant.Context, error)
}

// Users finds users by identity-provider subject.
type Users interface {
	FindGlobal(ctx context.Context, sub string) (*model.User, error)
	FindInTenant(ctx context.Context, tc *tenant.Context, sub string) (*model.User, error)
}

// Authorizer verifies tokens and loads the calling user.
type Authorizer struct {
	jwt      *jwtutil.JWTUtil
	resolver TenantResolver
	users    Users
	log      *zap.Logger
}

// New creates an authorizer.
func New(jwt *jwtutil.JWTUtil, resolver TenantResolver, users Users, log *zap.Logger) *Authorizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authorizer{jwt: jwt, resolver: resolver, users: users, log: log.Named("authorizer")}
}

// Authorize admits company users and global admins. The tenant comes from the
// path company id, else from the token's company claim. The user is looked up
// in the tenant database; a global admin from the global database may act on
// any tenant. Without a tenant the user is looked up globally.
func (a *Authorizer) Authorize(ctx context.Context, req Request) Decision {
	d := a.authorize(ctx, req)
	metrics.RecordDecision("tenant", d.Allowed())
	return d
}

// AuthorizeGlobalAdmin admits only global admins of the global database.
func (a *Authorizer) AuthorizeGlobalAdmin(ctx context.Context, req Request) Decision {
	d := a.authorizeGlobalAdmin(ctx, req)
	metrics.RecordDecision("global_admin", d.Allowed())
	return d
}

func (a *Authorizer) authorize(ctx context.Context, req Request) Decision {
	claims, err := a.verify(req.Authorization)
	if err != nil {
		return deny(err)
	}

	companyID := req.CompanyID
	if companyID == "" {
		companyID = claims.CompanyID
	}

	if companyID == "" {
		user, err := a.users.FindGlobal(ctx, claims.Subject)
		if err != nil {
			return a.denyLookup(claims, err)
		}
		return allow(claims.Subject, user, nil)
	}

	tc, err := a.resolver.ResolveByID(ctx, companyID)
	if err != nil {
		a.log.Info("Tenant resolution failed", zap.String("company_id", companyID), zap.Error(err))
		return deny(err)
	}

	user, err := a.users.FindInTenant(ctx, tc, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		user, err = a.users.FindGlobal(ctx, claims.Subject)
		if err == nil && user.Role != model.RoleGlobalAdmin {
			err = ErrUserNotFound
		}
	}
	if err != nil {
		return a.denyLookup(claims, err)
	}
	return allow(claims.Subject, user, tc.Company)
}

func (a *Authorizer) authorizeGlobalAdmin(ctx context.Context, req Request) Decision {
	claims, err := a.verify(req.Authorization)
	if err != nil {
		return deny(err)
	}

	user, err := a.users.FindGlobal(ctx, claims.Subject)
	if err != nil {
		return a.denyLookup(claims, err)
	}
	if user.Role != model.RoleGlobalAdmin {
		a.log.Info("Global admin role required", zap.String("sub", claims.Subject), zap.String("role", string(user.Role)))
		return deny(ErrForbidden)
	}
	return allow(claims.Subject, user, nil)
}

func (a *Authorizer) verify(header string) (*jwtutil.Claims, error) {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	claims, err := a.jwt.ValidateToken(strings.TrimSpace(token))
	if err != nil {
		a.log.Debug("Token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return claims, nil
}

func (a *Authorizer) denyLookup(claims *jwtutil.Claims, err error) Decision {
	if errors.Is(err, ErrUserNotFound) {
		a.log.Info("User not found", zap.String("sub", claims.Subject), zap.String("email", claims.Email))
	} else {
		a.log.Error("User lookup failed", zap.String("sub", claims.Subject), zap.Error(err))
	}
	return deny(err)
}

func allow(sub string, user *model.User, company *model.Company) Decision {
	d := Decision{Effect: Allow, PrincipalID: sub, Context: map[string]string{}}
	if b, err := json.Marshal(user); err == nil {
		d.Context[ContextUser] = string(b)
	}
	if company != nil {
		if b, err := json.Marshal(company); err == nil {
			d.Context[ContextTenant] = string(b)
		}
	}
	return d
}

// ModelUsers looks users up through the database registry.
type ModelUsers struct {
	Registry *database.Registry
}

// FindGlobal implements Users
func (u ModelUsers) FindGlobal(ctx context.Context, sub string) (*model.User, error) {
	models, err := u.Registry.GlobalModels(ctx)
	if err != nil {
		return nil, err
	}
	return findUser(ctx, models.User, sub)
}

// FindInTenant implements Users
func (u ModelUsers) FindInTenant(ctx context.Context, tc *tenant.Context, sub string) (*model.User, error) {
	return findUser(ctx, tc.Models.User, sub)
}

func findUser(ctx context.Context, users *store.Collection[model.User], sub string) (*model.User, error) {
	user, err := users.FindOne(ctx, bson.M{"cognitoSub": sub})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}
