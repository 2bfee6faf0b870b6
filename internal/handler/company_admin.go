package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	mid "github.com/tgmkubi/restaurant-sst-api/internal/middleware"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

const (
	adminListLimit   = 20
	adminBatchSize   = 5
	adminListTimeout = 1500 * time.Millisecond
)

// CreateAdminRequest defines the structure for company admin creation.
// The identity-provider account must already exist.
type CreateAdminRequest struct {
	CognitoSub      string `json:"cognitoSub"`
	CognitoUsername string `json:"cognitoUsername"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

// ListCompanyAdmins lists the admins stored in a company's database.
func (h *CompanyHandler) ListCompanyAdmins(c echo.Context) error {
	company, models, err := h.companyTenant(c)
	if err != nil {
		return err
	}

	admins, err := models.User.Find(c.Request().Context(), adminFilter(company))
	if err != nil {
		logger.FromEcho(c).Error("Failed to list company admins", zap.String("company_id", company.ID.Hex()), zap.Error(err))
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"admins": admins, "company": company})
}

// GetCompanyAdmin returns one admin of a company.
func (h *CompanyHandler) GetCompanyAdmin(c echo.Context) error {
	company, models, err := h.companyTenant(c)
	if err != nil {
		return err
	}
	userID, err := objectIDParam(c, "userId")
	if err != nil {
		return err
	}

	filter := adminFilter(company)
	filter["_id"] = userID
	user, err := models.User.FindOne(c.Request().Context(), filter)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Admin not found")
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"user": user, "company": company})
}

// CreateCompanyAdmin adds an admin user to a company's database.
func (h *CompanyHandler) CreateCompanyAdmin(c echo.Context) error {
	log := logger.FromEcho(c)

	company, models, err := h.companyTenant(c)
	if err != nil {
		return err
	}

	var req CreateAdminRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.CognitoSub == "" || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields: cognitoSub, email")
	}

	ctx := c.Request().Context()
	n, err := models.User.Count(ctx, bson.M{"cognitoSub": req.CognitoSub})
	if err != nil {
		return err
	}
	if n > 0 {
		return echo.NewHTTPError(http.StatusConflict, "User already exists in this company")
	}

	user := model.User{
		CognitoSub:      req.CognitoSub,
		CognitoUsername: req.CognitoUsername,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Role:            model.RoleAdmin,
		CompanyID:       &company.ID,
	}
	user.ID = primitive.NewObjectID()
	user.Stamp(mid.Actor(c), time.Now().UTC())

	if err := models.User.InsertOne(ctx, &user); err != nil {
		log.Error("Failed to create company admin", zap.String("company_id", company.ID.Hex()), zap.Error(err))
		return err
	}

	log.Info("Company admin created",
		zap.String("company_id", company.ID.Hex()),
		zap.String("user_id", user.ID.Hex()))
	return respond(c, http.StatusCreated, echo.Map{"user": user})
}

// DeleteCompanyAdmin removes an admin from a company's database.
func (h *CompanyHandler) DeleteCompanyAdmin(c echo.Context) error {
	company, models, err := h.companyTenant(c)
	if err != nil {
		return err
	}
	userID, err := objectIDParam(c, "userId")
	if err != nil {
		return err
	}

	filter := adminFilter(company)
	filter["_id"] = userID
	err = models.User.DeleteOne(c.Request().Context(), filter)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Admin not found")
	}
	if err != nil {
		return err
	}

	logger.FromEcho(c).Info("Company admin deleted",
		zap.String("company_id", company.ID.Hex()),
		zap.String("user_id", userID.Hex()))
	return respond(c, http.StatusOK, echo.Map{"message": "Company Admin deleted successfully"})
}

func (h *CompanyHandler) companyTenant(c echo.Context) (*model.Company, *database.Models, error) {
	company, err := h.anyCompany(c)
	if err != nil {
		return nil, nil, err
	}
	models, err := h.tenants.TenantModels(c.Request().Context(), tenant.IDFromObjectID(company.ID).DatabaseName())
	if err != nil {
		logger.FromEcho(c).Error("Tenant database unavailable", zap.String("company_id", company.ID.Hex()), zap.Error(err))
		return nil, nil, err
	}
	return company, models, nil
}

// populateCompaniesAdmins attaches admins to every company, at most
// adminBatchSize companies at a time.
func (h *CompanyHandler) populateCompaniesAdmins(ctx context.Context, companies []model.Company) []CompanyWithAdmins {
	out := make([]CompanyWithAdmins, len(companies))

	var g errgroup.Group
	g.SetLimit(adminBatchSize)
	for i := range companies {
		g.Go(func() error {
			out[i] = h.populateCompanyAdmins(ctx, &companies[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// populateCompanyAdmins never fails: a company whose tenant database cannot be
// read is returned with no admins.
func (h *CompanyHandler) populateCompanyAdmins(ctx context.Context, company *model.Company) CompanyWithAdmins {
	out := CompanyWithAdmins{Company: *company, Admins: []AdminSummary{}}

	ctx, cancel := context.WithTimeout(ctx, adminListTimeout)
	defer cancel()

	admins, err := h.listAdmins(ctx, company)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to populate company admins",
			zap.String("company_id", company.ID.Hex()),
			zap.Error(err))
		return out
	}
	out.Admins = admins
	out.AdminCount = len(admins)
	return out
}

func (h *CompanyHandler) listAdmins(ctx context.Context, company *model.Company) ([]AdminSummary, error) {
	models, err := h.tenants.TenantModels(ctx, tenant.IDFromObjectID(company.ID).DatabaseName())
	if err != nil {
		return nil, err
	}

	users, err := models.User.Find(ctx, adminFilter(company),
		options.Find().SetLimit(adminListLimit).SetMaxTime(adminListTimeout))
	if err != nil {
		return nil, err
	}

	admins := make([]AdminSummary, 0, len(users))
	for _, u := range users {
		admins = append(admins, AdminSummary{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
	}
	return admins, nil
}

func adminFilter(company *model.Company) bson.M {
	return bson.M{"role": model.RoleAdmin, "companyId": company.ID}
}
