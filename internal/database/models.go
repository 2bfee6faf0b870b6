package database

import (
	"fmt"

	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/internal/store"
)

// Models is the set of collection handles bound to one connection. Which
// handles are set depends on the scope; the others are nil.
type Models struct {
	conn  *Connection
	scope Scope

	Company    *store.Collection[model.Company]
	User       *store.Collection[model.User]
	Restaurant *store.Collection[model.Restaurant]
	Category   *store.Collection[model.Category]
	Product    *store.Collection[model.Product]
	QRCode     *store.Collection[model.QRCode]
	Menu       *store.Collection[model.Menu]
}

// Bind creates the model set of scope on conn. The connection must be ready.
func Bind(conn *Connection, scope Scope) (*Models, error) {
	if !conn.Ready() {
		return nil, fmt.Errorf("%w: bind %s models on %s (%s)", ErrNotReady, scope, conn.Name(), conn.State())
	}

	db := conn.Database()
	m := &Models{
		conn:       conn,
		scope:      scope,
		User:       store.New[model.User](db, model.UserCollection),
		Restaurant: store.New[model.Restaurant](db, model.RestaurantCollection),
	}

	switch scope {
	case ScopeGlobal:
		m.Company = store.New[model.Company](db, model.CompanyCollection)
	case ScopeTenant:
		m.Category = store.New[model.Category](db, model.CategoryCollection)
		m.Product = store.New[model.Product](db, model.ProductCollection)
		m.QRCode = store.New[model.QRCode](db, model.QRCodeCollection)
		m.Menu = store.New[model.Menu](db, model.MenuCollection)
	}
	return m, nil
}

// Scope returns the scope the set was bound for.
func (m *Models) Scope() Scope { return m.scope }

// Database returns the name of the bound database.
func (m *Models) Database() Name { return m.conn.Name() }

// Stale reports whether the underlying connection left the ready state. A
// stale set must be rebound to a freshly acquired connection.
func (m *Models) Stale() bool { return !m.conn.Ready() }
