package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	mid "github.com/tgmkubi/restaurant-sst-api/internal/middleware"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

// GetMe returns the stored record of the calling user from the database the
// default database middleware chose.
func GetMe(c echo.Context) error {
	log := logger.FromEcho(c)

	caller, ok := mid.User(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	models, err := modelsFrom(c)
	if err != nil {
		return err
	}

	user, err := models.User.FindOne(c.Request().Context(), bson.M{"cognitoSub": caller.CognitoSub})
	if errors.Is(err, store.ErrNotFound) {
		log.Info("Caller has no user record", zap.String("sub", caller.CognitoSub))
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}

	payload := echo.Map{"user": user}
	if company, ok := mid.Company(c); ok {
		payload["company"] = company.Public()
	}
	return respond(c, http.StatusOK, payload)
}
