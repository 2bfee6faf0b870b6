package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	mid "github.com/tgmkubi/restaurant-sst-api/internal/middleware"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

const (
	defaultMaxRestaurants = 1
	defaultMaxUsers       = 10
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// CompanyDirectory reads companies from the global database.
// *tenant.MongoDirectory implements it.
type CompanyDirectory interface {
	FindActiveByID(ctx context.Context, id tenant.ID) (*model.Company, error)
	FindAnyByID(ctx context.Context, id tenant.ID) (*model.Company, error)
	ListActive(ctx context.Context) ([]model.Company, error)
}

// TenantModelSource opens tenant databases. *database.Registry implements it.
type TenantModelSource interface {
	TenantModels(ctx context.Context, name database.Name) (*database.Models, error)
}

// CacheInvalidator forgets cached company records. *tenant.Resolver implements it.
type CacheInvalidator interface {
	Invalidate(company *model.Company)
}

// CompanyHandler serves the company endpoints of the admin and global public APIs.
type CompanyHandler struct {
	directory CompanyDirectory
	tenants   TenantModelSource
	cache     CacheInvalidator
	domain    string
}

// NewCompanyHandler creates a company handler. domain is the parent domain of
// company subdomains.
func NewCompanyHandler(directory CompanyDirectory, tenants TenantModelSource, cache CacheInvalidator, domain string) *CompanyHandler {
	return &CompanyHandler{directory: directory, tenants: tenants, cache: cache, domain: domain}
}

// CreateCompanyRequest defines the structure for company creation requests
type CreateCompanyRequest struct {
	Name              string `json:"name"`
	DisplayName       string `json:"displayName"`
	Description       string `json:"description"`
	Subdomain         string `json:"subdomain"`
	VATNumber         string `json:"vatNumber"`
	Address           string `json:"address"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	LogoURL           string `json:"logoUrl"`
	CognitoUserPoolID string `json:"cognitoUserPoolId"`
	CognitoClientID   string `json:"cognitoClientId"`
	Plan              string `json:"plan"`
	MaxRestaurants    *int   `json:"maxRestaurants"`
	MaxUsers          *int   `json:"maxUsers"`
}

// UpdateCompanyRequest defines the structure for company update requests.
// Absent fields are left unchanged.
type UpdateCompanyRequest struct {
	Name           *string `json:"name"`
	DisplayName    *string `json:"displayName"`
	Description    *string `json:"description"`
	Subdomain      *string `json:"subdomain"`
	VATNumber      *string `json:"vatNumber"`
	Address        *string `json:"address"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	LogoURL        *string `json:"logoUrl"`
	Plan           *string `json:"plan"`
	MaxRestaurants *int    `json:"maxRestaurants"`
	MaxUsers       *int    `json:"maxUsers"`
}

// CompanyWithAdmins is a company together with its tenant admins.
type CompanyWithAdmins struct {
	model.Company
	Admins     []AdminSummary `json:"admins"`
	AdminCount int            `json:"adminCount"`
}

// AdminSummary is the admin projection listed with companies.
type AdminSummary struct {
	ID        primitive.ObjectID `json:"id"`
	Email     string             `json:"email"`
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	Role      model.Role         `json:"role"`
	CreatedAt time.Time          `json:"createdAt"`
}

// CreateCompany handles creating a new company
func (h *CompanyHandler) CreateCompany(c echo.Context) error {
	log := logger.FromEcho(c)
	log.Info("Creating new company")

	var req CreateCompanyRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Subdomain = strings.TrimSpace(req.Subdomain)

	if req.Name == "" || req.DisplayName == "" || req.Subdomain == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields: name, displayName, subdomain")
	}
	if !subdomainPattern.MatchString(req.Subdomain) {
		return echo.NewHTTPError(http.StatusBadRequest, "Subdomain can only contain lowercase letters, numbers, and hyphens")
	}

	models, err := modelsFrom(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	domain := h.companyDomain(req.Subdomain)

	if err := h.checkConflicts(ctx, models, primitive.NilObjectID, req.Name, req.Subdomain, domain); err != nil {
		log.Warn("Company conflicts with an existing one",
			zap.String("name", req.Name),
			zap.String("subdomain", req.Subdomain),
			zap.Error(err))
		return err
	}

	company := model.Company{
		ID:                primitive.NewObjectID(),
		Name:              req.Name,
		DisplayName:       req.DisplayName,
		Description:       req.Description,
		Subdomain:         req.Subdomain,
		Domain:            domain,
		IsActive:          true,
		VATNumber:         req.VATNumber,
		Address:           req.Address,
		Email:             req.Email,
		Phone:             req.Phone,
		LogoURL:           req.LogoURL,
		CognitoUserPoolID: req.CognitoUserPoolID,
		CognitoClientID:   req.CognitoClientID,
		Plan:              req.Plan,
		MaxRestaurants:    defaultMaxRestaurants,
		MaxUsers:          defaultMaxUsers,
	}
	company.DatabaseName = model.CompanyDatabaseName(company.ID)
	if req.MaxRestaurants != nil {
		company.MaxRestaurants = *req.MaxRestaurants
	}
	if req.MaxUsers != nil {
		company.MaxUsers = *req.MaxUsers
	}
	company.Stamp(mid.Actor(c), time.Now().UTC())

	if err := models.Company.InsertOne(ctx, &company); err != nil {
		log.Error("Failed to create company",
			zap.String("name", company.Name),
			zap.Error(err))
		return err
	}

	log.Info("Company created successfully",
		zap.String("company_id", company.ID.Hex()),
		zap.String("subdomain", company.Subdomain),
		zap.String("database", company.DatabaseName))
	return respond(c, http.StatusCreated, company)
}

// ListCompanies handles listing active companies. ?includeAdmins=true adds
// the admins of every company.
func (h *CompanyHandler) ListCompanies(c echo.Context) error {
	log := logger.FromEcho(c)
	ctx := c.Request().Context()

	companies, err := h.directory.ListActive(ctx)
	if err != nil {
		log.Error("Failed to list companies", zap.Error(err))
		return err
	}

	if c.QueryParam("includeAdmins") == "true" && len(companies) > 0 {
		populated := h.populateCompaniesAdmins(ctx, companies)
		return respond(c, http.StatusOK, echo.Map{"companies": populated, "total": len(populated)})
	}

	log.Info("Companies retrieved successfully", zap.Int("count", len(companies)))
	return respond(c, http.StatusOK, echo.Map{
		"companies": companies,
		"total":     len(companies),
		"note":      "Add ?includeAdmins=true to get admin details",
	})
}

// GetCompany handles retrieving a company by id, active or not, with its admins.
func (h *CompanyHandler) GetCompany(c echo.Context) error {
	company, err := h.anyCompany(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, h.populateCompanyAdmins(c.Request().Context(), company))
}

// UpdateCompany handles updating an existing company
func (h *CompanyHandler) UpdateCompany(c echo.Context) error {
	log := logger.FromEcho(c)

	current, err := h.anyCompany(c)
	if err != nil {
		return err
	}

	var req UpdateCompanyRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}

	set := bson.M{}
	setField(set, "displayName", req.DisplayName)
	setField(set, "description", req.Description)
	setField(set, "vatNumber", req.VATNumber)
	setField(set, "address", req.Address)
	setField(set, "email", req.Email)
	setField(set, "phone", req.Phone)
	setField(set, "logoUrl", req.LogoURL)
	setField(set, "plan", req.Plan)
	setField(set, "maxRestaurants", req.MaxRestaurants)
	setField(set, "maxUsers", req.MaxUsers)

	name, subdomain := current.Name, current.Subdomain
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Name cannot be empty")
		}
		set["name"] = name
	}
	if req.Subdomain != nil {
		subdomain = strings.TrimSpace(*req.Subdomain)
		if !subdomainPattern.MatchString(subdomain) {
			return echo.NewHTTPError(http.StatusBadRequest, "Subdomain can only contain lowercase letters, numbers, and hyphens")
		}
		set["subdomain"] = subdomain
		set["domain"] = h.companyDomain(subdomain)
	}
	if len(set) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No fields to update")
	}

	models, err := modelsFrom(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if name != current.Name || subdomain != current.Subdomain {
		if err := h.checkConflicts(ctx, models, current.ID, name, subdomain, h.companyDomain(subdomain)); err != nil {
			return err
		}
	}

	updated, err := models.Company.Update(ctx, bson.M{"_id": current.ID}, set, mid.Actor(c))
	if err != nil {
		log.Error("Failed to update company", zap.String("company_id", current.ID.Hex()), zap.Error(err))
		return err
	}
	h.cache.Invalidate(current)
	h.cache.Invalidate(updated)

	log.Info("Company updated successfully", zap.String("company_id", updated.ID.Hex()))
	return respond(c, http.StatusOK, updated)
}

// DeleteCompany handles deactivating a company. The tenant database is kept.
func (h *CompanyHandler) DeleteCompany(c echo.Context) error {
	log := logger.FromEcho(c)

	company, err := h.anyCompany(c)
	if err != nil {
		return err
	}
	models, err := modelsFrom(c)
	if err != nil {
		return err
	}

	err = models.Company.SoftDelete(c.Request().Context(), bson.M{"_id": company.ID}, mid.Actor(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Company not found or already inactive")
	}
	if err != nil {
		log.Error("Failed to delete company", zap.String("company_id", company.ID.Hex()), zap.Error(err))
		return err
	}
	h.cache.Invalidate(company)

	log.Info("Company deactivated", zap.String("company_id", company.ID.Hex()))
	return respond(c, http.StatusOK, echo.Map{
		"message": "Company deleted successfully",
		"id":      company.ID,
	})
}

// ListPublicCompanies lists active companies without internal fields.
func (h *CompanyHandler) ListPublicCompanies(c echo.Context) error {
	companies, err := h.directory.ListActive(c.Request().Context())
	if err != nil {
		logger.FromEcho(c).Error("Failed to list companies", zap.Error(err))
		return err
	}
	public := make([]model.PublicCompany, 0, len(companies))
	for i := range companies {
		public = append(public, companies[i].Public())
	}
	return respond(c, http.StatusOK, echo.Map{"companies": public, "total": len(public)})
}

// GetPublicCompany returns one active company without internal fields.
func (h *CompanyHandler) GetPublicCompany(c echo.Context) error {
	id, err := tenant.ParseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Company not found")
	}
	company, err := h.directory.FindActiveByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, company.Public())
}

func (h *CompanyHandler) anyCompany(c echo.Context) (*model.Company, error) {
	id, err := tenant.ParseID(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Company not found")
	}
	company, err := h.directory.FindAnyByID(c.Request().Context(), id)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		logger.FromEcho(c).Info("Company not found", zap.String("company_id", id.String()))
		return nil, echo.NewHTTPError(http.StatusNotFound, "Company not found")
	}
	return company, err
}

// checkConflicts rejects a name or subdomain used by another company.
func (h *CompanyHandler) checkConflicts(ctx context.Context, models *database.Models, self primitive.ObjectID, name, subdomain, domain string) error {
	filter := bson.M{"$or": bson.A{
		bson.M{"name": name},
		bson.M{"domain": domain},
		bson.M{"subdomain": subdomain},
	}}
	if !self.IsZero() {
		filter["_id"] = bson.M{"$ne": self}
	}

	existing, err := models.Company.FindOne(ctx, filter)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.Name == name:
		return echo.NewHTTPError(http.StatusConflict, "Company with this name already exists")
	}
	return echo.NewHTTPError(http.StatusConflict,
		fmt.Sprintf("Subdomain '%s' is already taken. Try a different subdomain.", subdomain))
}

func (h *CompanyHandler) companyDomain(subdomain string) string {
	if h.domain == "" {
		return subdomain
	}
	return subdomain + "." + h.domain
}

func setField[T any](set bson.M, key string, v *T) {
	if v != nil {
		set[key] = *v
	}
}
