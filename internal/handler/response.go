package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	mid "github.com/tgmkubi/restaurant-sst-api/internal/middleware"
	"github.com/tgmkubi/restaurant-sst-api/pkg/logger"
)

// Response is the success envelope of every endpoint.
type Response struct {
	StatusCode int `json:"statusCode"`
	Payload    any `json:"payload"`
}

func respond(c echo.Context, status int, payload any) error {
	return c.JSON(status, Response{StatusCode: status, Payload: payload})
}

// objectIDParam parses a hex ObjectID path parameter. A malformed id cannot
// match any document, so it is reported as not found.
func objectIDParam(c echo.Context, name string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		logger.FromEcho(c).Info("Malformed id in path",
			zap.String("param", name),
			zap.String("value", c.Param(name)))
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusNotFound, "Not found")
	}
	return oid, nil
}

func modelsFrom(c echo.Context) (*database.Models, error) {
	m, ok := mid.Models(c)
	if !ok {
		logger.FromEcho(c).Error("No models attached to request")
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Models not available")
	}
	return m, nil
}
