// Package tenant resolves the company a request belongs to and hands out its
// database models.
package tenant

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
)

// ErrInvalidID is returned for an empty company id.
var ErrInvalidID = errors.New("invalid company id")

// ID is a company id without the database prefix.
type ID string

// ParseID accepts a bare or COMPANY_ prefixed company id. ObjectID hex is
// returned in its stored lower case form.
func ParseID(raw string) (ID, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), model.TenantDatabasePrefix)
	if s == "" {
		return "", ErrInvalidID
	}
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return IDFromObjectID(oid), nil
	}
	return ID(s), nil
}

// IDFromObjectID converts a stored company id.
func IDFromObjectID(oid primitive.ObjectID) ID { return ID(oid.Hex()) }

func (id ID) String() string { return string(id) }

// DatabaseName is the tenant database of the company.
func (id ID) DatabaseName() database.Name {
	return database.Name(model.TenantDatabasePrefix + string(id))
}

// ObjectID returns the stored form of the id. Companies are created with
// ObjectIDs, so an id that does not parse cannot match any company.
func (id ID) ObjectID() (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	return oid, err == nil
}
