package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
)

func mockDirectory(mt *mtest.T) *MongoDirectory {
	coll := store.New[model.Company](mt.DB, model.CompanyCollection)
	return &MongoDirectory{companies: func(context.Context) (*store.Collection[model.Company], error) {
		return coll, nil
	}}
}

func companyDoc(id primitive.ObjectID, sub string, active bool) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: sub + " inc"},
		{Key: "subdomain", Value: sub},
		{Key: "databaseName", Value: model.CompanyDatabaseName(id)},
		{Key: "isActive", Value: active},
	}
}

func TestMongoDirectory(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "db." + model.CompanyCollection
	id := primitive.NewObjectID()

	mt.Run("find active by id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, companyDoc(id, "pizza", true)))

		company, err := mockDirectory(mt).FindActiveByID(context.Background(), ID(id.Hex()))
		require.NoError(mt, err)
		assert.Equal(mt, id, company.ID)
		assert.Equal(mt, "pizza", company.Subdomain)
		assert.Equal(mt, "COMPANY_"+id.Hex(), company.DatabaseName)
	})

	mt.Run("no match is tenant not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := mockDirectory(mt).FindActiveBySubdomain(context.Background(), "nope")
		assert.ErrorIs(mt, err, ErrTenantNotFound)
	})

	mt.Run("malformed id never queries", func(mt *mtest.T) {
		_, err := mockDirectory(mt).FindActiveByID(context.Background(), "abc")
		assert.ErrorIs(mt, err, ErrTenantNotFound)
		_, err = mockDirectory(mt).FindAnyByID(context.Background(), "abc")
		assert.ErrorIs(mt, err, ErrTenantNotFound)
	})

	mt.Run("find any returns inactive", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, companyDoc(id, "closed", false)))

		company, err := mockDirectory(mt).FindAnyByID(context.Background(), ID(id.Hex()))
		require.NoError(mt, err)
		assert.False(mt, company.IsActive)
	})

	mt.Run("list active", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			companyDoc(primitive.NewObjectID(), "burger", true),
			companyDoc(primitive.NewObjectID(), "pizza", true),
		))

		companies, err := mockDirectory(mt).ListActive(context.Background())
		require.NoError(mt, err)
		require.Len(mt, companies, 2)
		assert.Equal(mt, "burger", companies[0].Subdomain)
	})

	mt.Run("server error is not not-found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad filter",
		}))

		_, err := mockDirectory(mt).FindActiveBySubdomain(context.Background(), "pizza")
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrTenantNotFound)
	})
}

func TestSubdomainFilterIsLowerCase(t *testing.T) {
	assert.Equal(t, bson.M{"subdomain": "pizza", "isActive": true}, activeBySubdomain("Pizza"))
}
