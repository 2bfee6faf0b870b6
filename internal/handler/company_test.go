package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	mid "github.com/tgmkubi/restaurant-sst-api/internal/middleware"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
)

func rootUser(c echo.Context) {
	mid.SetUser(c, &model.User{CognitoSub: "root-sub", Role: model.RoleGlobalAdmin})
}

func activeCompany(sub string) model.Company {
	id := primitive.NewObjectID()
	return model.Company{
		ID:                id,
		Name:              sub + " inc",
		DisplayName:       sub,
		Subdomain:         sub,
		Domain:            sub + ".qrlist.com",
		DatabaseName:      model.CompanyDatabaseName(id),
		IsActive:          true,
		CognitoUserPoolID: "pool-" + sub,
		MaxRestaurants:    1,
		MaxUsers:          10,
	}
}

func TestCreateCompanyValidation(t *testing.T) {
	h := NewCompanyHandler(&fakeDirectory{}, &fakeTenants{}, &fakeCache{}, "qrlist.com")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing subdomain", `{"name":"Pizza","displayName":"Pizza"}`, "Missing required fields: name, displayName, subdomain"},
		{"blank name", `{"name":"  ","displayName":"Pizza","subdomain":"pizza"}`, "Missing required fields: name, displayName, subdomain"},
		{"uppercase subdomain", `{"name":"Pizza","displayName":"Pizza","subdomain":"Pizza"}`, "Subdomain can only contain lowercase letters, numbers, and hyphens"},
		{"underscore subdomain", `{"name":"Pizza","displayName":"Pizza","subdomain":"pizza_place"}`, "Subdomain can only contain lowercase letters, numbers, and hyphens"},
		{"malformed json", `{"name":`, "Invalid request data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := run(h.CreateCompany, jsonRequest(http.MethodPost, "/admin/company", tt.body), rootUser)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorMessage(t, rec))
		})
	}
}

func TestCreateCompany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "db." + model.CompanyCollection
	h := NewCompanyHandler(&fakeDirectory{}, &fakeTenants{}, &fakeCache{}, "qrlist.com")
	body := `{"name":"Pizza Co","displayName":"Pizza","subdomain":"pizza","cognitoUserPoolId":"pool-1"}`

	mt.Run("defaults", func(mt *mtest.T) {
		mt.AddMockResponses(none(ns), mtest.CreateSuccessResponse())

		rec := run(h.CreateCompany, jsonRequest(http.MethodPost, "/admin/company", body), func(c echo.Context) {
			rootUser(c)
			mid.SetModels(c, globalModels(mt))
		})
		require.Equal(mt, http.StatusCreated, rec.Code, rec.Body.String())

		var got model.Company
		decodePayload(mt.T, rec, &got)
		assert.False(mt, got.ID.IsZero())
		assert.Equal(mt, "COMPANY_"+got.ID.Hex(), got.DatabaseName)
		assert.Equal(mt, "pizza.qrlist.com", got.Domain)
		assert.True(mt, got.IsActive)
		assert.Equal(mt, 1, got.MaxRestaurants)
		assert.Equal(mt, 10, got.MaxUsers)
		assert.Equal(mt, "root-sub", got.CreatedBy)
		assert.Equal(mt, "pool-1", got.CognitoUserPoolID)
	})

	mt.Run("explicit limits", func(mt *mtest.T) {
		mt.AddMockResponses(none(ns), mtest.CreateSuccessResponse())

		limited := `{"name":"Big","displayName":"Big","subdomain":"big","maxRestaurants":5,"maxUsers":50}`
		rec := run(h.CreateCompany, jsonRequest(http.MethodPost, "/admin/company", limited), func(c echo.Context) {
			mid.SetModels(c, globalModels(mt))
		})
		require.Equal(mt, http.StatusCreated, rec.Code)

		var got model.Company
		decodePayload(mt.T, rec, &got)
		assert.Equal(mt, 5, got.MaxRestaurants)
		assert.Equal(mt, 50, got.MaxUsers)
		assert.Equal(mt, "system", got.CreatedBy)
	})

	mt.Run("name taken", func(mt *mtest.T) {
		existing := activeCompany("other")
		existing.Name = "Pizza Co"
		mt.AddMockResponses(found(mt.T, ns, existing))

		rec := run(h.CreateCompany, jsonRequest(http.MethodPost, "/admin/company", body), func(c echo.Context) {
			mid.SetModels(c, globalModels(mt))
		})
		assert.Equal(mt, http.StatusConflict, rec.Code)
		assert.Equal(mt, "Company with this name already exists", errorMessage(mt.T, rec))
	})

	mt.Run("subdomain taken", func(mt *mtest.T) {
		mt.AddMockResponses(found(mt.T, ns, activeCompany("pizza")))

		rec := run(h.CreateCompany, jsonRequest(http.MethodPost, "/admin/company", body), func(c echo.Context) {
			mid.SetModels(c, globalModels(mt))
		})
		assert.Equal(mt, http.StatusConflict, rec.Code)
		assert.Contains(mt, errorMessage(mt.T, rec), "Subdomain 'pizza' is already taken")
	})

	mt.Run("duplicate key on insert", func(mt *mtest.T) {
		mt.AddMockResponses(none(ns), mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key",
		}))

		rec := run(h.CreateCompany, jsonRequest(http.MethodPost, "/admin/company", body), func(c echo.Context) {
			mid.SetModels(c, globalModels(mt))
		})
		assert.Equal(mt, http.StatusConflict, rec.Code)
	})
}

func TestGetCompany(t *testing.T) {
	inactive := activeCompany("closed")
	inactive.IsActive = false
	dir := &fakeDirectory{companies: []model.Company{inactive}}

	t.Run("admin lookup failure yields empty admins", func(t *testing.T) {
		tenants := &fakeTenants{err: database.ErrConnectAttemptsExhausted}
		h := NewCompanyHandler(dir, tenants, &fakeCache{}, "qrlist.com")

		rec := run(h.GetCompany, jsonRequest(http.MethodGet, "/", ""), func(c echo.Context) {
			withParams(c, "id", inactive.ID.Hex())
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var got CompanyWithAdmins
		decodePayload(t, rec, &got)
		assert.Equal(t, inactive.ID, got.ID)
		assert.False(t, got.IsActive)
		assert.Empty(t, got.Admins)
		assert.NotNil(t, got.Admins)
		assert.Zero(t, got.AdminCount)
		assert.Equal(t, []database.Name{database.Name(inactive.DatabaseName)}, tenants.asked)
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		h := NewCompanyHandler(dir, &fakeTenants{}, &fakeCache{}, "qrlist.com")
		for _, id := range []string{primitive.NewObjectID().Hex(), ""} {
			rec := run(h.GetCompany, jsonRequest(http.MethodGet, "/", ""), func(c echo.Context) {
				withParams(c, "id", id)
			})
			assert.Equal(t, http.StatusNotFound, rec.Code, id)
		}
	})

	t.Run("directory failure is not a 404", func(t *testing.T) {
		h := NewCompanyHandler(&fakeDirectory{err: database.ErrNotReady}, &fakeTenants{}, &fakeCache{}, "qrlist.com")
		rec := run(h.GetCompany, jsonRequest(http.MethodGet, "/", ""), func(c echo.Context) {
			withParams(c, "id", inactive.ID.Hex())
		})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestListCompanies(t *testing.T) {
	a, b := activeCompany("burger"), activeCompany("pizza")
	dir := &fakeDirectory{companies: []model.Company{a, b}}
	tenants := &fakeTenants{err: errors.New("unreachable")}
	h := NewCompanyHandler(dir, tenants, &fakeCache{}, "qrlist.com")

	rec := run(h.ListCompanies, jsonRequest(http.MethodGet, "/admin/company", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var plain struct {
		Companies []model.Company `json:"companies"`
		Total     int             `json:"total"`
		Note      string          `json:"note"`
	}
	decodePayload(t, rec, &plain)
	assert.Equal(t, 2, plain.Total)
	assert.NotEmpty(t, plain.Note)
	assert.Empty(t, tenants.asked)

	rec = run(h.ListCompanies, jsonRequest(http.MethodGet, "/admin/company?includeAdmins=true", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var populated struct {
		Companies []CompanyWithAdmins `json:"companies"`
		Total     int                 `json:"total"`
	}
	decodePayload(t, rec, &populated)
	require.Len(t, populated.Companies, 2)
	assert.Equal(t, a.ID, populated.Companies[0].ID)
	assert.Equal(t, b.ID, populated.Companies[1].ID)
	for _, c := range populated.Companies {
		assert.Empty(t, c.Admins)
	}
	assert.Len(t, tenants.asked, 2)
}

func TestPublicCompanies(t *testing.T) {
	inactive := activeCompany("closed")
	inactive.IsActive = false
	open := activeCompany("pizza")
	h := NewCompanyHandler(&fakeDirectory{companies: []model.Company{open, inactive}}, &fakeTenants{}, &fakeCache{}, "qrlist.com")

	rec := run(h.ListPublicCompanies, jsonRequest(http.MethodGet, "/global/company", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "cognitoUserPoolId")
	assert.NotContains(t, rec.Body.String(), "databaseName")
	var list struct {
		Companies []model.PublicCompany `json:"companies"`
		Total     int                   `json:"total"`
	}
	decodePayload(t, rec, &list)
	assert.Equal(t, 1, list.Total)

	rec = run(h.GetPublicCompany, jsonRequest(http.MethodGet, "/", ""), func(c echo.Context) {
		withParams(c, "id", "COMPANY_"+open.ID.Hex())
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.PublicCompany
	decodePayload(t, rec, &got)
	assert.Equal(t, "pizza.qrlist.com", got.Domain)

	rec = run(h.GetPublicCompany, jsonRequest(http.MethodGet, "/", ""), func(c echo.Context) {
		withParams(c, "id", inactive.ID.Hex())
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCompany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "db." + model.CompanyCollection
	current := activeCompany("pizza")
	dir := &fakeDirectory{companies: []model.Company{current}}

	mt.Run("subdomain change invalidates old and new", func(mt *mtest.T) {
		cache := &fakeCache{}
		h := NewCompanyHandler(dir, &fakeTenants{}, cache, "qrlist.com")
		updated := current
		updated.Subdomain = "pizzeria"
		updated.Domain = "pizzeria.qrlist.com"
		mt.AddMockResponses(none(ns), updatedTo(mt.T, updated))

		rec := run(h.UpdateCompany, jsonRequest(http.MethodPut, "/", `{"subdomain":"pizzeria"}`), func(c echo.Context) {
			withParams(c, "id", current.ID.Hex())
			rootUser(c)
			mid.SetModels(c, globalModels(mt))
		})
		require.Equal(mt, http.StatusOK, rec.Code, rec.Body.String())

		var got model.Company
		decodePayload(mt.T, rec, &got)
		assert.Equal(mt, "pizzeria.qrlist.com", got.Domain)
		assert.Equal(mt, []primitive.ObjectID{current.ID, current.ID}, cache.invalidated)
	})

	mt.Run("empty update", func(mt *mtest.T) {
		h := NewCompanyHandler(dir, &fakeTenants{}, &fakeCache{}, "qrlist.com")
		rec := run(h.UpdateCompany, jsonRequest(http.MethodPut, "/", `{}`), func(c echo.Context) {
			withParams(c, "id", current.ID.Hex())
			mid.SetModels(c, globalModels(mt))
		})
		assert.Equal(mt, http.StatusBadRequest, rec.Code)
	})

	mt.Run("name clash with another company", func(mt *mtest.T) {
		h := NewCompanyHandler(dir, &fakeTenants{}, &fakeCache{}, "qrlist.com")
		other := activeCompany("burger")
		other.Name = "Burger"
		mt.AddMockResponses(found(mt.T, ns, other))

		rec := run(h.UpdateCompany, jsonRequest(http.MethodPut, "/", `{"name":"Burger"}`), func(c echo.Context) {
			withParams(c, "id", current.ID.Hex())
			mid.SetModels(c, globalModels(mt))
		})
		assert.Equal(mt, http.StatusConflict, rec.Code)
	})
}

func TestDeleteCompany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	company := activeCompany("pizza")
	dir := &fakeDirectory{companies: []model.Company{company}}

	mt.Run("soft delete invalidates cache", func(mt *mtest.T) {
		cache := &fakeCache{}
		h := NewCompanyHandler(dir, &fakeTenants{}, cache, "qrlist.com")
		mt.AddMockResponses(modified(1))

		rec := run(h.DeleteCompany, jsonRequest(http.MethodDelete, "/", ""), func(c echo.Context) {
			withParams(c, "id", company.ID.Hex())
			rootUser(c)
			mid.SetModels(c, globalModels(mt))
		})
		require.Equal(mt, http.StatusOK, rec.Code)
		assert.Equal(mt, []primitive.ObjectID{company.ID}, cache.invalidated)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})

	mt.Run("already inactive", func(mt *mtest.T) {
		cache := &fakeCache{}
		h := NewCompanyHandler(dir, &fakeTenants{}, cache, "qrlist.com")
		mt.AddMockResponses(modified(0))

		rec := run(h.DeleteCompany, jsonRequest(http.MethodDelete, "/", ""), func(c echo.Context) {
			withParams(c, "id", company.ID.Hex())
			mid.SetModels(c, globalModels(mt))
		})
		assert.Equal(mt, http.StatusNotFound, rec.Code)
		assert.Equal(mt, "Company not found or already inactive", errorMessage(mt.T, rec))
		assert.Empty(mt, cache.invalidated)
	})
}

func TestCompanyAdmins(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "db." + model.UserCollection
	company := activeCompany("pizza")
	dir := &fakeDirectory{companies: []model.Company{company}}
	body := `{"cognitoSub":"sub-9","email":" owner@pizza.test ","firstName":"Ada"}`

	mt.Run("create", func(mt *mtest.T) {
		tenants := &fakeTenants{models: tenantModelsOf(mt)}
		h := NewCompanyHandler(dir, tenants, &fakeCache{}, "qrlist.com")
		mt.AddMockResponses(count(ns, 0), mtest.CreateSuccessResponse())

		rec := run(h.CreateCompanyAdmin, jsonRequest(http.MethodPost, "/", body), func(c echo.Context) {
			withParams(c, "id", company.ID.Hex())
			rootUser(c)
		})
		require.Equal(mt, http.StatusCreated, rec.Code, rec.Body.String())

		var got struct {
			User model.User `json:"user"`
		}
		decodePayload(mt.T, rec, &got)
		assert.Equal(mt, model.RoleAdmin, got.User.Role)
		assert.Equal(mt, "owner@pizza.test", got.User.Email)
		require.NotNil(mt, got.User.CompanyID)
		assert.Equal(mt, company.ID, *got.User.CompanyID)
		assert.Equal(mt, []database.Name{database.Name(company.DatabaseName)}, tenants.asked)
	})

	mt.Run("existing user", func(mt *mtest.T) {
		h := NewCompanyHandler(dir, &fakeTenants{models: tenantModelsOf(mt)}, &fakeCache{}, "qrlist.com")
		mt.AddMockResponses(count(ns, 1))

		rec := run(h.CreateCompanyAdmin, jsonRequest(http.MethodPost, "/", body), func(c echo.Context) {
			withParams(c, "id", company.ID.Hex())
		})
		assert.Equal(mt, http.StatusConflict, rec.Code)
	})

	mt.Run("missing fields", func(mt *mtest.T) {
		h := NewCompanyHandler(dir, &fakeTenants{models: tenantModelsOf(mt)}, &fakeCache{}, "qrlist.com")
		rec := run(h.CreateCompanyAdmin, jsonRequest(http.MethodPost, "/", `{"email":"x@y.z"}`), func(c echo.Context) {
			withParams(c, "id", company.ID.Hex())
		})
		assert.Equal(mt, http.StatusBadRequest, rec.Code)
	})

	mt.Run("list filters by role and company", func(mt *mtest.T) {
		h := NewCompanyHandler(dir, &fakeTenants{models: tenantModelsOf(mt)}, &fakeCache{}, "qrlist.com")
		admin := model.User{ID: primitive.NewObjectID(), CognitoSub: "sub-1", Role: model.RoleAdmin, CompanyID: &company.ID}
		mt.AddMockResponses(found(mt.T, ns, admin))

		rec := run(h.ListCompanyAdmins, jsonRequest(http.MethodGet, "/", ""), func(c echo.Context) {
			withParams(c, "id", company.ID.Hex())
		})
		require.Equal(mt, http.StatusOK, rec.Code)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		filter := started.Command.Lookup("filter").Document()
		assert.Equal(mt, string(model.RoleAdmin), filter.Lookup("role").StringValue())
		assert.Equal(mt, company.ID, filter.Lookup("companyId").ObjectID())
	})

	mt.Run("delete missing admin", func(mt *mtest.T) {
		h := NewCompanyHandler(dir, &fakeTenants{models: tenantModelsOf(mt)}, &fakeCache{}, "qrlist.com")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))

		rec := run(h.DeleteCompanyAdmin, jsonRequest(http.MethodDelete, "/", ""), func(c echo.Context) {
			withParams(c, "id", company.ID.Hex(), "userId", primitive.NewObjectID().Hex())
		})
		assert.Equal(mt, http.StatusNotFound, rec.Code)
	})
}
