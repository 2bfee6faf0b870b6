package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
)

// Directory looks up companies in the global database. The FindActive methods
// only return active companies; FindAnyByID is for administration.
type Directory interface {
	FindActiveByID(ctx context.Context, id ID) (*model.Company, error)
	FindActiveBySubdomain(ctx context.Context, subdomain string) (*model.Company, error)
	FindAnyByID(ctx context.Context, id ID) (*model.Company, error)
}

// companySource returns the companies collection to query.
type companySource func(ctx context.Context) (*store.Collection[model.Company], error)

// MongoDirectory reads companies through the global connection of a registry.
type MongoDirectory struct {
	companies companySource
}

// NewDirectory creates a directory on the registry's global database.
func NewDirectory(registry *database.Registry) *MongoDirectory {
	return &MongoDirectory{companies: func(ctx context.Context) (*store.Collection[model.Company], error) {
		models, err := registry.GlobalModels(ctx)
		if err != nil {
			return nil, err
		}
		return models.Company, nil
	}}
}

// FindActiveByID implements Directory
func (d *MongoDirectory) FindActiveByID(ctx context.Context, id ID) (*model.Company, error) {
	oid, ok := id.ObjectID()
	if !ok {
		return nil, ErrTenantNotFound
	}
	return d.findOne(ctx, bson.M{"_id": oid, "isActive": true})
}

// FindActiveBySubdomain implements Directory
func (d *MongoDirectory) FindActiveBySubdomain(ctx context.Context, subdomain string) (*model.Company, error) {
	return d.findOne(ctx, activeBySubdomain(subdomain))
}

// FindAnyByID implements Directory. Inactive companies are returned too.
func (d *MongoDirectory) FindAnyByID(ctx context.Context, id ID) (*model.Company, error) {
	oid, ok := id.ObjectID()
	if !ok {
		return nil, ErrTenantNotFound
	}
	return d.findOne(ctx, bson.M{"_id": oid})
}

// ListActive returns active companies ordered by name.
func (d *MongoDirectory) ListActive(ctx context.Context) ([]model.Company, error) {
	companies, err := d.companies(ctx)
	if err != nil {
		return nil, err
	}
	return companies.Find(ctx, bson.M{"isActive": true}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (d *MongoDirectory) findOne(ctx context.Context, filter bson.M) (*model.Company, error) {
	companies, err := d.companies(ctx)
	if err != nil {
		return nil, err
	}
	company, err := companies.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("lookup company: %w", err)
	}
	return company, nil
}

func activeBySubdomain(subdomain string) bson.M {
	return bson.M{"subdomain": strings.ToLower(subdomain), "isActive": true}
}
