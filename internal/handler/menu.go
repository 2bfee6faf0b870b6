package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	mid "github.com/tgmkubi/restaurant-sst-api/internal/middleware"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

// MenuRequest defines the structure for menu create and update requests
type MenuRequest struct {
	Name        *string   `json:"name"`
	DisplayName *string   `json:"displayName"`
	Description *string   `json:"description"`
	ImageURL    *string   `json:"imageUrl"`
	Products    *[]string `json:"products"`
}

// ListMenus handles listing the menus of a restaurant
func ListMenus(c echo.Context) error { return menus.list(c) }

// GetMenu handles retrieving a single menu by ID
func GetMenu(c echo.Context) error { return menus.get(c) }

// DeleteMenu handles deactivating a menu
func DeleteMenu(c echo.Context) error { return menus.delete(c) }

// CreateMenu handles creating a new menu
func CreateMenu(c echo.Context) error {
	log := logger.FromEcho(c)

	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	var req MenuRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	name, displayName := trimmed(req.Name), trimmed(req.DisplayName)
	if name == "" || displayName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields: name, displayName")
	}

	productIDs := []primitive.ObjectID{}
	if req.Products != nil {
		if productIDs, err = menuProducts(c, s, *req.Products); err != nil {
			return err
		}
	}

	taken, err := menus.nameTaken(c, s, name, primitive.NilObjectID)
	if err != nil {
		return err
	}
	if taken {
		return echo.NewHTTPError(http.StatusConflict, "Menu with same name already exists in this restaurant")
	}

	menu := model.Menu{
		ID:           primitive.NewObjectID(),
		Name:         name,
		DisplayName:  displayName,
		Description:  trimmed(req.Description),
		ImageURL:     trimmed(req.ImageURL),
		IsActive:     true,
		RestaurantID: s.restaurant.ID,
		Products:     productIDs,
	}
	menu.Stamp(mid.Actor(c), time.Now().UTC())

	if err := s.models.Menu.InsertOne(c.Request().Context(), &menu); err != nil {
		log.Error("Failed to create menu", zap.String("name", name), zap.Error(err))
		return err
	}
	log.Info("Menu created successfully",
		zap.String("menu_id", menu.ID.Hex()),
		zap.Int("products", len(productIDs)))
	return respond(c, http.StatusCreated, menu)
}

// UpdateMenu handles updating an existing menu
func UpdateMenu(c echo.Context) error {
	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	var req MenuRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}

	set := bson.M{}
	if req.Name != nil {
		id, err := objectIDParam(c, "id")
		if err != nil {
			return err
		}
		taken, err := menus.nameTaken(c, s, trimmed(req.Name), id)
		if err != nil {
			return err
		}
		if taken {
			return echo.NewHTTPError(http.StatusConflict, "Menu with same name already exists in this restaurant")
		}
		set["name"] = trimmed(req.Name)
	}
	if req.Products != nil {
		ids, err := menuProducts(c, s, *req.Products)
		if err != nil {
			return err
		}
		set["products"] = ids
	}
	setField(set, "displayName", req.DisplayName)
	setField(set, "description", req.Description)
	setField(set, "imageUrl", req.ImageURL)
	return menus.update(c, s, set)
}

// menuProducts parses product ids and checks they are active products of the
// restaurant. Order is kept.
func menuProducts(c echo.Context, s *restaurantScope, raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	seen := make(map[primitive.ObjectID]struct{}, len(raw))
	for _, r := range raw {
		oid, err := primitive.ObjectIDFromHex(r)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid product id '%s'", r))
		}
		if _, dup := seen[oid]; dup {
			continue
		}
		seen[oid] = struct{}{}
		ids = append(ids, oid)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	n, err := s.models.Product.Count(c.Request().Context(), s.filter(bson.M{"_id": bson.M{"$in": ids}}))
	if err != nil {
		return nil, err
	}
	if n != int64(len(ids)) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Menu references products that do not exist in this restaurant")
	}
	return ids, nil
}

// QRCodeRequest defines the structure for QR code update requests
type QRCodeRequest struct {
	QRCodeURL *string `json:"qrCodeUrl"`
	TargetURL *string `json:"targetUrl"`
}

// ListQRCodes handles listing the QR codes of a restaurant
func ListQRCodes(c echo.Context) error { return qrcodes.list(c) }

// GetQRCode handles retrieving a single QR code by ID
func GetQRCode(c echo.Context) error { return qrcodes.get(c) }

// DeleteQRCode handles deactivating a QR code
func DeleteQRCode(c echo.Context) error { return qrcodes.delete(c) }

// CreateQRCode registers a new code pointing at the restaurant page.
func CreateQRCode(c echo.Context) error {
	log := logger.FromEcho(c)

	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	var req QRCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}

	qr := model.QRCode{
		ID:           primitive.NewObjectID(),
		Code:         uuid.NewString(),
		QRCodeURL:    trimmed(req.QRCodeURL),
		TargetURL:    trimmed(req.TargetURL),
		RestaurantID: s.restaurant.ID,
		IsActive:     true,
	}
	if qr.TargetURL == "" {
		qr.TargetURL = restaurantPageURL(s)
	}
	qr.Stamp(mid.Actor(c), time.Now().UTC())

	if err := s.models.QRCode.InsertOne(c.Request().Context(), &qr); err != nil {
		log.Error("Failed to create QR code", zap.Error(err))
		return err
	}
	log.Info("QR code created successfully",
		zap.String("qrcode_id", qr.ID.Hex()),
		zap.String("target_url", qr.TargetURL))
	return respond(c, http.StatusCreated, qr)
}

// UpdateQRCode handles updating an existing QR code
func UpdateQRCode(c echo.Context) error {
	s, err := scopeFromPath(c)
	if err != nil {
		return err
	}
	var req QRCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}

	set := bson.M{}
	setField(set, "qrCodeUrl", req.QRCodeURL)
	setField(set, "targetUrl", req.TargetURL)
	return qrcodes.update(c, s, set)
}

func restaurantPageURL(s *restaurantScope) string {
	host := string(s.tenant.CompanyID)
	if s.tenant.Company != nil && s.tenant.Company.Domain != "" {
		host = s.tenant.Company.Domain
	}
	return fmt.Sprintf("https://%s/company/%s/restaurant/%s", host, s.tenant.CompanyID, s.restaurant.ID.Hex())
}
