package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
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
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
	"github.com/tgmkubi/restaurant-sst-api/internal/tenant"
)

func run(h echo.HandlerFunc, req *http.Request, setup func(c echo.Context)) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = mid.ErrorHandler
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func withParams(c echo.Context, kv ...string) {
	var names, values []string
	for i := 0; i+1 < len(kv); i += 2 {
		names = append(names, kv[i])
		values = append(values, kv[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	var env struct {
		StatusCode int             `json:"statusCode"`
		Payload    json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	assert.Equal(t, rec.Code, env.StatusCode)
	require.NoError(t, json.Unmarshal(env.Payload, into))
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Message
}

// toDoc turns a model into the document a mock server would return.
func toDoc(t *testing.T, v any) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func found(t *testing.T, ns string, v any) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(t, v))
}

func none(ns string) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch)
}

func count(ns string, n int64) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func modified(n int32) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

func updatedTo(t *testing.T, v any) bson.D {
	return bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: toDoc(t, v)}}
}

func globalModels(mt *mtest.T) *database.Models {
	return &database.Models{
		Company: store.New[model.Company](mt.DB, model.CompanyCollection),
		User:    store.New[model.User](mt.DB, model.UserCollection),
	}
}

func tenantModelsOf(mt *mtest.T) *database.Models {
	return &database.Models{
		User:       store.New[model.User](mt.DB, model.UserCollection),
		Restaurant: store.New[model.Restaurant](mt.DB, model.RestaurantCollection),
		Category:   store.New[model.Category](mt.DB, model.CategoryCollection),
		Product:    store.New[model.Product](mt.DB, model.ProductCollection),
		QRCode:     store.New[model.QRCode](mt.DB, model.QRCodeCollection),
		Menu:       store.New[model.Menu](mt.DB, model.MenuCollection),
	}
}

type fakeDirectory struct {
	companies []model.Company
	err       error
}

func (d *fakeDirectory) find(id tenant.ID, activeOnly bool) (*model.Company, error) {
	if d.err != nil {
		return nil, d.err
	}
	for i := range d.companies {
		if d.companies[i].ID.Hex() == string(id) && (d.companies[i].IsActive || !activeOnly) {
			company := d.companies[i]
			return &company, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (d *fakeDirectory) FindActiveByID(_ context.Context, id tenant.ID) (*model.Company, error) {
	return d.find(id, true)
}

func (d *fakeDirectory) FindAnyByID(_ context.Context, id tenant.ID) (*model.Company, error) {
	return d.find(id, false)
}

func (d *fakeDirectory) ListActive(context.Context) ([]model.Company, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []model.Company
	for _, c := range d.companies {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeTenants struct {
	models *database.Models
	err    error

	mu    sync.Mutex
	asked []database.Name
}

func (f *fakeTenants) TenantModels(_ context.Context, name database.Name) (*database.Models, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, name)
	return f.models, f.err
}

type fakeCache struct {
	invalidated []primitive.ObjectID
}

func (f *fakeCache) Invalidate(company *model.Company) {
	f.invalidated = append(f.invalidated, company.ID)
}

type fakePool struct {
	err error
	n   int
}

func (p fakePool) Global(context.Context) (*database.Connection, error) { return nil, p.err }
func (p fakePool) Len() int { return p.n }

func TestHealthCheck(t *testing.T) {
	rec := run(NewHealthHandler(fakePool{}).HealthCheck, httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db_status")

	rec = run(NewHealthHandler(fakePool{n: 3}).HealthCheck, httptest.NewRequest(http.MethodGet, "/health?check=db", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["db_status"])
	assert.EqualValues(t, 3, body["connections"])

	pool := fakePool{err: errors.New("server selection timeout")}
	rec = run(NewHealthHandler(pool).HealthCheck, httptest.NewRequest(http.MethodGet, "/health?check=db", nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db_error")
}

func TestModelsMissing(t *testing.T) {
	rec := run(GetMe, httptest.NewRequest(http.MethodGet, "/api/me", nil), func(c echo.Context) {
		mid.SetUser(c, &model.User{CognitoSub: "sub-1"})
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = run(ListRestaurants, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetMe(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "db." + model.UserCollection

	mt.Run("stored record", func(mt *mtest.T) {
		company := model.Company{ID: primitive.NewObjectID(), Name: "pizza", Subdomain: "pizza", CognitoClientID: "client"}
		stored := model.User{ID: primitive.NewObjectID(), CognitoSub: "sub-1", Email: "a@pizza.test", Role: model.RoleAdmin}
		mt.AddMockResponses(found(mt.T, ns, stored))

		rec := run(GetMe, httptest.NewRequest(http.MethodGet, "/api/me", nil), func(c echo.Context) {
			mid.SetUser(c, &model.User{CognitoSub: "sub-1"})
			mid.SetCompany(c, &company)
			mid.SetModels(c, tenantModelsOf(mt))
		})
		require.Equal(mt, http.StatusOK, rec.Code)

		var got struct {
			User    model.User          `json:"user"`
			Company model.PublicCompany `json:"company"`
		}
		decodePayload(mt.T, rec, &got)
		assert.Equal(mt, stored.ID, got.User.ID)
		assert.Equal(mt, "a@pizza.test", got.User.Email)
		assert.Equal(mt, "pizza", got.Company.Subdomain)
		assert.NotContains(mt, rec.Body.String(), "cognitoClientId")
	})

	mt.Run("no record", func(mt *mtest.T) {
		mt.AddMockResponses(none(ns))

		rec := run(GetMe, httptest.NewRequest(http.MethodGet, "/api/me", nil), func(c echo.Context) {
			mid.SetUser(c, &model.User{CognitoSub: "ghost"})
			mid.SetModels(c, tenantModelsOf(mt))
		})
		assert.Equal(mt, http.StatusNotFound, rec.Code)
	})
}
