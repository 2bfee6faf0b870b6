package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	mid "github.com/tgmkubi/restaurant-sst-api/internal/middleware"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

const defaultCurrency = "TRY"

// RestaurantRequest defines the structure for restaurant creation requests
type RestaurantRequest struct {
	Name                string                         `json:"name"`
	DisplayName         string                         `json:"displayName"`
	Description         string                         `json:"description"`
	Address             string                         `json:"address"`
	City                string                         `json:"city"`
	Country             string                         `json:"country"`
	Phone               string                         `json:"phone"`
	Email               string                         `json:"email"`
	BusinessHours       map[string]model.BusinessHours `json:"businessHours"`
	LogoURL             string                         `json:"logoUrl"`
	CoverImageURL       string                         `json:"coverImageUrl"`
	PrimaryColor        string                         `json:"primaryColor"`
	SecondaryColor      string                         `json:"secondaryColor"`
	AllowOnlineOrdering *bool                          `json:"allowOnlineOrdering"`
	Currency            string                         `json:"currency"`
	TaxRate             *float64                       `json:"taxRate"`
}

// UpdateRestaurantRequest defines the structure for restaurant update requests
type UpdateRestaurantRequest struct {
	Name                *string                         `json:"name"`
	DisplayName         *string                         `json:"displayName"`
	Description         *string                         `json:"description"`
	Address             *string                         `json:"address"`
	City                *string                         `json:"city"`
	Country             *string                         `json:"country"`
	Phone               *string                         `json:"phone"`
	Email               *string                         `json:"email"`
	BusinessHours       *map[string]model.BusinessHours `json:"businessHours"`
	LogoURL             *string                         `json:"logoUrl"`
	CoverImageURL       *string                         `json:"coverImageUrl"`
	PrimaryColor        *string                         `json:"primaryColor"`
	SecondaryColor      *string                         `json:"secondaryColor"`
	AllowOnlineOrdering *bool                           `json:"allowOnlineOrdering"`
	Currency            *string                         `json:"currency"`
	TaxRate             *float64                        `json:"taxRate"`
}

// DefaultBusinessHours opens Monday to Saturday 09:00-22:00 and closes Sunday.
func DefaultBusinessHours() map[string]model.BusinessHours {
	open := model.BusinessHours{IsOpen: true, OpenTime: "09:00", CloseTime: "22:00"}
	return map[string]model.BusinessHours{
		"monday":    open,
		"tuesday":   open,
		"wednesday": open,
		"thursday":  open,
		"friday":    open,
		"saturday":  open,
		"sunday":    {IsOpen: false},
	}
}

// ListRestaurants handles listing the active restaurants of the tenant
func ListRestaurants(c echo.Context) error {
	log := logger.FromEcho(c)

	tc, models, err := tenantModels(c)
	if err != nil {
		return err
	}

	restaurants, err := models.Restaurant.Find(c.Request().Context(),
		bson.M{"companyId": companyObjectID(tc), "isActive": true},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		log.Error("Failed to list restaurants", zap.Error(err))
		return err
	}

	log.Info("Restaurants retrieved successfully", zap.Int("count", len(restaurants)))
	return respond(c, http.StatusOK, echo.Map{"restaurants": restaurants, "total": len(restaurants)})
}

// GetRestaurant handles retrieving a single restaurant by ID
func GetRestaurant(c echo.Context) error {
	tc, models, err := tenantModels(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	restaurant, err := activeRestaurant(c, tc, models, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, restaurant)
}

// CreateRestaurant handles creating a new restaurant
func CreateRestaurant(c echo.Context) error {
	log := logger.FromEcho(c)
	log.Info("Creating new restaurant")

	tc, models, err := tenantModels(c)
	if err != nil {
		return err
	}

	var req RestaurantRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DisplayName == "" || req.Address == "" || req.City == "" || req.Country == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields: name, displayName, address, city, country")
	}

	ctx := c.Request().Context()
	companyID := companyObjectID(tc)

	active, err := models.Restaurant.Count(ctx, bson.M{"companyId": companyID, "isActive": true})
	if err != nil {
		return err
	}
	if limit := maxRestaurants(tc); limit > 0 && active >= int64(limit) {
		log.Warn("Restaurant limit reached", zap.Int("max_restaurants", limit))
		return echo.NewHTTPError(http.StatusForbidden, "Restaurant limit of the company plan reached")
	}

	dup, err := models.Restaurant.Count(ctx, bson.M{"companyId": companyID, "name": req.Name, "isActive": true})
	if err != nil {
		return err
	}
	if dup > 0 {
		log.Warn("Restaurant with this name already exists", zap.String("name", req.Name))
		return echo.NewHTTPError(http.StatusConflict, "Restaurant with same name already exists for this company")
	}

	restaurant := model.Restaurant{
		ID:                  primitive.NewObjectID(),
		Name:                req.Name,
		DisplayName:         req.DisplayName,
		Description:         req.Description,
		Address:             req.Address,
		City:                req.City,
		Country:             req.Country,
		Phone:               req.Phone,
		Email:               req.Email,
		BusinessHours:       req.BusinessHours,
		LogoURL:             req.LogoURL,
		CoverImageURL:       req.CoverImageURL,
		PrimaryColor:        req.PrimaryColor,
		SecondaryColor:      req.SecondaryColor,
		IsActive:            true,
		AllowOnlineOrdering: true,
		Currency:            req.Currency,
		TaxRate:             req.TaxRate,
		CompanyID:           companyID,
	}
	if restaurant.BusinessHours == nil {
		restaurant.BusinessHours = DefaultBusinessHours()
	}
	if req.AllowOnlineOrdering != nil {
		restaurant.AllowOnlineOrdering = *req.AllowOnlineOrdering
	}
	if restaurant.Currency == "" {
		restaurant.Currency = defaultCurrency
	}
	restaurant.Stamp(mid.Actor(c), time.Now().UTC())

	if err := models.Restaurant.InsertOne(ctx, &restaurant); err != nil {
		log.Error("Failed to create restaurant", zap.String("name", req.Name), zap.Error(err))
		return err
	}

	log.Info("Restaurant created successfully",
		zap.String("restaurant_id", restaurant.ID.Hex()),
		zap.String("name", restaurant.Name))
	return respond(c, http.StatusCreated, restaurant)
}

// UpdateRestaurant handles updating an existing restaurant
func UpdateRestaurant(c echo.Context) error {
	log := logger.FromEcho(c)

	tc, models, err := tenantModels(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	var req UpdateRestaurantRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.String("restaurant_id", id.Hex()), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}

	set := bson.M{}
	setField(set, "name", req.Name)
	setField(set, "displayName", req.DisplayName)
	setField(set, "description", req.Description)
	setField(set, "address", req.Address)
	setField(set, "city", req.City)
	setField(set, "country", req.Country)
	setField(set, "phone", req.Phone)
	setField(set, "email", req.Email)
	setField(set, "businessHours", req.BusinessHours)
	setField(set, "logoUrl", req.LogoURL)
	setField(set, "coverImageUrl", req.CoverImageURL)
	setField(set, "primaryColor", req.PrimaryColor)
	setField(set, "secondaryColor", req.SecondaryColor)
	setField(set, "allowOnlineOrdering", req.AllowOnlineOrdering)
	setField(set, "currency", req.Currency)
	setField(set, "taxRate", req.TaxRate)
	if len(set) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No fields to update")
	}

	ctx := c.Request().Context()
	filter := bson.M{"_id": id, "companyId": companyObjectID(tc), "isActive": true}

	if req.Name != nil {
		dup, err := models.Restaurant.Count(ctx, bson.M{
			"_id":       bson.M{"$ne": id},
			"companyId": companyObjectID(tc),
			"name":      *req.Name,
			"isActive":  true,
		})
		if err != nil {
			return err
		}
		if dup > 0 {
			return echo.NewHTTPError(http.StatusConflict, "Restaurant with same name already exists for this company")
		}
	}

	restaurant, err := models.Restaurant.Update(ctx, filter, set, mid.Actor(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Restaurant not found")
	}
	if err != nil {
		log.Error("Failed to update restaurant", zap.String("restaurant_id", id.Hex()), zap.Error(err))
		return err
	}

	log.Info("Restaurant updated successfully", zap.String("restaurant_id", id.Hex()))
	return respond(c, http.StatusOK, restaurant)
}

// DeleteRestaurant handles deactivating a restaurant
func DeleteRestaurant(c echo.Context) error {
	log := logger.FromEcho(c)

	tc, models, err := tenantModels(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}

	err = models.Restaurant.SoftDelete(c.Request().Context(), bson.M{"_id": id, "companyId": companyObjectID(tc)}, mid.Actor(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Restaurant not found or already inactive")
	}
	if err != nil {
		log.Error("Failed to delete restaurant", zap.String("restaurant_id", id.Hex()), zap.Error(err))
		return err
	}

	log.Info("Restaurant deactivated", zap.String("restaurant_id", id.Hex()))
	return respond(c, http.StatusOK, echo.Map{"message": "Restaurant deleted successfully", "id": id})
}

// tenantModels returns the tenant context and models set by TenantDatabase.
func tenantModels(c echo.Context) (*tenant.Context, *database.Models, error) {
	tc, ok := mid.Tenant(c)
	if !ok {
		logger.FromEcho(c).Error("No tenant attached to request")
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, "Tenant models not available")
	}
	return tc, tc.Models, nil
}

func companyObjectID(tc *tenant.Context) primitive.ObjectID {
	if tc.Company != nil {
		return tc.Company.ID
	}
	oid, _ := tc.CompanyID.ObjectID()
	return oid
}

func maxRestaurants(tc *tenant.Context) int {
	if tc.Company == nil {
		return 0
	}
	return tc.Company.MaxRestaurants
}

// activeRestaurant loads an active restaurant of the tenant.
func activeRestaurant(c echo.Context, tc *tenant.Context, models *database.Models, id primitive.ObjectID) (*model.Restaurant, error) {
	restaurant, err := models.Restaurant.FindOne(c.Request().Context(),
		bson.M{"_id": id, "companyId": companyObjectID(tc), "isActive": true})
	if errors.Is(err, store.ErrNotFound) {
		logger.FromEcho(c).Info("Restaurant not found", zap.String("restaurant_id", id.Hex()))
		return nil, echo.NewHTTPError(http.StatusNotFound, "Restaurant not found")
	}
	return restaurant, err
}
