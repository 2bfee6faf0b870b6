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

// restaurantDoc describes one collection of documents owned by a restaurant.
type restaurantDoc[T any] struct {
	label  string
	plural string
	coll   func(m *database.Models) *store.Collection[T]
}

var (
	categories = restaurantDoc[model.Category]{"Category", "categories", func(m *database.Models) *store.Collection[model.Category] { return m.Category }}
	products   = restaurantDoc[model.Product]{"Product", "products", func(m *database.Models) *store.Collection[model.Product] { return m.Product }}
	menus      = restaurantDoc[model.Menu]{"Menu", "menus", func(m *database.Models) *store.Collection[model.Menu] { return m.Menu }}
	qrcodes    = restaurantDoc[model.QRCode]{"QR code", "qrcodes", func(m *database.Models) *store.Collection[model.QRCode] { return m.QRCode }}
)

// restaurantScope is the tenant, models and active restaurant named by the
// restaurantId path parameter.
type restaurantScope struct {
	tenant     *tenant.Context
	models     *database.Models
	restaurant *model.Restaurant
}

func scopeFromPath(c echo.Context) (*restaurantScope, error) {
	tc, models, err := tenantModels(c)
	if err != nil {
		return nil, err
	}
	rid, err := objectIDParam(c, "restaurantId")
	if err != nil {
		return nil, err
	}
	restaurant, err := activeRestaurant(c, tc, models, rid)
	if err != nil {
		return nil, err
	}
	return &restaurantScope{tenant: tc, models: models, restaurant: restaurant}, nil
}

func (s *restaurantScope) filter(extra bson.M) bson.M {
	f := bson.M{"restaurantId": s.restaurant.ID, "isActive": true}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

func (d restaurantDoc[T]) list(c echo.Context) error {
	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	docs, err := d.coll(s.models).Find(c.Request().Context(), s.filter(nil),
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		logger.FromEcho(c).Error("Failed to list "+d.plural, zap.Error(err))
		return err
	}
	return respond(c, http.StatusOK, echo.Map{d.plural: docs, "total": len(docs)})
}

func (d restaurantDoc[T]) get(c echo.Context) error {
	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	doc, err := d.coll(s.models).FindOne(c.Request().Context(), s.filter(bson.M{"_id": id}))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, d.label+" not found")
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, doc)
}

func (d restaurantDoc[T]) update(c echo.Context, s *restaurantScope, set bson.M) error {
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No fields to update")
	}
	doc, err := d.coll(s.models).Update(c.Request().Context(), s.filter(bson.M{"_id": id}), set, mid.Actor(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, d.label+" not found")
	}
	if err != nil {
		logger.FromEcho(c).Error("Failed to update "+d.label, zap.String("id", id.Hex()), zap.Error(err))
		return err
	}
	return respond(c, http.StatusOK, doc)
}

func (d restaurantDoc[T]) delete(c echo.Context) error {
	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id")
	if err != nil {
		return err
	}
	err = d.coll(s.models).SoftDelete(c.Request().Context(), bson.M{"_id": id, "restaurantId": s.restaurant.ID}, mid.Actor(c))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, d.label+" not found or already inactive")
	}
	if err != nil {
		return err
	}
	logger.FromEcho(c).Info(d.label+" deactivated", zap.String("id", id.Hex()))
	return respond(c, http.StatusOK, echo.Map{"message": d.label + " deleted successfully", "id": id})
}

// nameTaken reports whether another active document of the restaurant has name.
func (d restaurantDoc[T]) nameTaken(c echo.Context, s *restaurantScope, name string, self primitive.ObjectID) (bool, error) {
	f := s.filter(bson.M{"name": name})
	if !self.IsZero() {
		f["_id"] = bson.M{"$ne": self}
	}
	n, err := d.coll(s.models).Count(c.Request().Context(), f)
	return n > 0, err
}

// CategoryRequest defines the structure for category create and update requests
type CategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ListCategories handles listing the categories of a restaurant
func ListCategories(c echo.Context) error { return categories.list(c) }

// GetCategory handles retrieving a single category by ID
func GetCategory(c echo.Context) error { return categories.get(c) }

// DeleteCategory handles deactivating a category
func DeleteCategory(c echo.Context) error { return categories.delete(c) }

// CreateCategory handles creating a new category
func CreateCategory(c echo.Context) error {
	log := logger.FromEcho(c)

	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	var req CategoryRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	name := trimmed(req.Name)
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields: name")
	}

	taken, err := categories.nameTaken(c, s, name, primitive.NilObjectID)
	if err != nil {
		return err
	}
	if taken {
		return echo.NewHTTPError(http.StatusConflict, "Category with same name already exists in this restaurant")
	}

	category := model.Category{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Description:  trimmed(req.Description),
		RestaurantID: s.restaurant.ID,
		IsActive:     true,
	}
	category.Stamp(mid.Actor(c), time.Now().UTC())

	if err := s.models.Category.InsertOne(c.Request().Context(), &category); err != nil {
		log.Error("Failed to create category", zap.String("name", name), zap.Error(err))
		return err
	}
	log.Info("Category created successfully", zap.String("category_id", category.ID.Hex()))
	return respond(c, http.StatusCreated, category)
}

// UpdateCategory handles updating an existing category
func UpdateCategory(c echo.Context) error {
	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	var req CategoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}

	set := bson.M{}
	if req.Name != nil {
		id, err := objectIDParam(c, "id")
		if err != nil {
			return err
		}
		taken, err := categories.nameTaken(c, s, trimmed(req.Name), id)
		if err != nil {
			return err
		}
		if taken {
			return echo.NewHTTPError(http.StatusConflict, "Category with same name already exists in this restaurant")
		}
		set["name"] = trimmed(req.Name)
	}
	setField(set, "description", req.Description)
	return categories.update(c, s, set)
}

// ProductRequest defines the structure for product create and update requests
type ProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	ImageURL    *string  `json:"imageUrl"`
	CategoryID  *string  `json:"categoryId"`
}

// ListProducts handles listing the products of a restaurant. ?categoryId
// narrows the list to one category.
func ListProducts(c echo.Context) error {
	if raw := c.QueryParam("categoryId"); raw != "" {
		s, err := scopeFromPath(c)
		if err != nil {
			return err
		}
		cid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid categoryId")
		}
		docs, err := s.models.Product.Find(c.Request().Context(), s.filter(bson.M{"categoryId": cid}),
			options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, echo.Map{"products": docs, "total": len(docs)})
	}
	return products.list(c)
}

// GetProduct handles retrieving a single product by ID
func GetProduct(c echo.Context) error { return products.get(c) }

// DeleteProduct handles deactivating a product
func DeleteProduct(c echo.Context) error { return products.delete(c) }

// CreateProduct handles creating a new product
func CreateProduct(c echo.Context) error {
	log := logger.FromEcho(c)
	log.Info("Creating new product")

	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	name := trimmed(req.Name)
	if name == "" || req.Price == nil || req.CategoryID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields: name, price, categoryId")
	}
	if *req.Price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Price must be greater than zero")
	}
	categoryID, err := activeCategory(c, s, *req.CategoryID)
	if err != nil {
		return err
	}

	taken, err := products.nameTaken(c, s, name, primitive.NilObjectID)
	if err != nil {
		return err
	}
	if taken {
		log.Warn("Product with this name already exists", zap.String("name", name))
		return echo.NewHTTPError(http.StatusConflict, "Product with same name already exists in this restaurant")
	}

	product := model.Product{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Description:  trimmed(req.Description),
		Price:        *req.Price,
		ImageURL:     trimmed(req.ImageURL),
		RestaurantID: s.restaurant.ID,
		CategoryID:   categoryID,
		IsActive:     true,
	}
	product.Stamp(mid.Actor(c), time.Now().UTC())

	if err := s.models.Product.InsertOne(c.Request().Context(), &product); err != nil {
		log.Error("Failed to create product", zap.String("name", name), zap.Error(err))
		return err
	}

	log.Info("Product created successfully",
		zap.String("product_id", product.ID.Hex()),
		zap.String("name", product.Name),
		zap.Float64("price", product.Price))
	return respond(c, http.StatusCreated, product)
}

// UpdateProduct handles updating an existing product
func UpdateProduct(c echo.Context) error {
	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}

	set := bson.M{}
	if req.Name != nil {
		id, err := objectIDParam(c, "id")
		if err != nil {
			return err
		}
		taken, err := products.nameTaken(c, s, trimmed(req.Name), id)
		if err != nil {
			return err
		}
		if taken {
			return echo.NewHTTPError(http.StatusConflict, "Product with same name already exists in this restaurant")
		}
		set["name"] = trimmed(req.Name)
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Price must be greater than zero")
		}
		set["price"] = *req.Price
	}
	if req.CategoryID != nil {
		categoryID, err := activeCategory(c, s, *req.CategoryID)
		if err != nil {
			return err
		}
		set["categoryId"] = categoryID
	}
	setField(set, "description", req.Description)
	setField(set, "imageUrl", req.ImageURL)
	return products.update(c, s, set)
}

func activeCategory(c echo.Context, s *restaurantScope, raw string) (primitive.ObjectID, error) {
	cid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusBadRequest, "Invalid categoryId")
	}
	n, err := s.models.Category.Count(c.Request().Context(), s.filter(bson.M{"_id": cid}))
	if err != nil {
		return primitive.NilObjectID, err
	}
	if n == 0 {
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusBadRequest, "Category not found in this restaurant")
	}
	return cid, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
