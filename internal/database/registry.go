package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tgmkubi/restaurant-sst-api/internal/metrics"
)

// Registry holds at most one live connection per database name.
type Registry struct {
	connector *Connector
	log       *zap.Logger

	mu    sync.Mutex
	conns map[Name]*Connection
	group singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry(connector *Connector, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		connector: connector,
		log:       log.Named("registry"),
		conns:     make(map[Name]*Connection),
	}
}

// Acquire returns a ready connection to the named database, creating it on
// first use. A stored connection that is no longer healthy is closed and
// replaced. Concurrent callers for the same name share one dial.
func (r *Registry) Acquire(ctx context.Context, name Name) (*Connection, error) {
	scope := name.Scope().String()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if conn := r.lookup(name); conn != nil {
		if conn.Healthy(ctx) {
			metrics.RecordAcquire(scope, "hit")
			return conn, nil
		}
		r.evict(context.WithoutCancel(ctx), conn)
		metrics.RecordAcquire(scope, "replaced")
	}

	ch := r.group.DoChan(string(name), func() (any, error) {
		return r.create(context.WithoutCancel(ctx), name)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordAcquire(scope, "error")
			return nil, res.Err
		}
		return res.Val.(*Connection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Global acquires the shared database.
func (r *Registry) Global(ctx context.Context) (*Connection, error) {
	return r.Acquire(ctx, GlobalDatabase)
}

// GlobalModels acquires the shared database and binds its models.
func (r *Registry) GlobalModels(ctx context.Context) (*Models, error) {
	conn, err := r.Global(ctx)
	if err != nil {
		return nil, err
	}
	return Bind(conn, ScopeGlobal)
}

// TenantModels acquires a tenant database and binds its models.
func (r *Registry) TenantModels(ctx context.Context, name Name) (*Models, error) {
	if name.Scope() != ScopeTenant {
		return nil, fmt.Errorf("%w: %s is not a tenant database", ErrInvalidName, name)
	}
	conn, err := r.Acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	return Bind(conn, ScopeTenant)
}

// Len returns the number of stored connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// ReleaseAll closes every stored connection and empties the registry. Close
// errors are logged and returned together after all connections were visited.
func (r *Registry) ReleaseAll(ctx context.Context) error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[Name]*Connection)
	r.reportLocked()
	r.mu.Unlock()

	var errs []error
	for name, conn := range conns {
		if err := r.connector.Close(ctx, conn); err != nil {
			r.log.Error("Failed to close database connection", zap.String("database", string(name)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	r.log.Info("Database connections released", zap.Int("count", len(conns)))
	return errors.Join(errs...)
}

func (r *Registry) lookup(name Name) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[name]
}

// evict drops conn if it is still the stored one and closes it best effort.
func (r *Registry) evict(ctx context.Context, conn *Connection) {
	r.mu.Lock()
	if r.conns[conn.Name()] == conn {
		delete(r.conns, conn.Name())
		r.reportLocked()
	}
	r.mu.Unlock()

	r.log.Warn("Replacing database connection",
		zap.String("database", string(conn.Name())),
		zap.Stringer("state", conn.State()))
	if err := r.connector.Close(ctx, conn); err != nil {
		r.log.Warn("Failed to close stale connection", zap.String("database", string(conn.Name())), zap.Error(err))
	}
}

func (r *Registry) create(ctx context.Context, name Name) (*Connection, error) {
	// Another flight may have stored the connection before this one started.
	if conn := r.lookup(name); conn != nil && conn.Ready() {
		return conn, nil
	}

	conn, err := r.connector.Connect(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := r.connector.AwaitReady(ctx, conn); err != nil {
		if cerr := r.connector.Close(ctx, conn); cerr != nil {
			r.log.Warn("Failed to close unready connection", zap.String("database", string(name)), zap.Error(cerr))
		}
		return nil, err
	}

	r.mu.Lock()
	r.conns[name] = conn
	r.reportLocked()
	r.mu.Unlock()

	metrics.RecordAcquire(name.Scope().String(), "created")
	return conn, nil
}

func (r *Registry) reportLocked() {
	var global, tenant int
	for name := range r.conns {
		if name.Scope() == ScopeGlobal {
			global++
		} else {
			tenant++
		}
	}
	metrics.SetActiveConnections(ScopeGlobal.String(), global)
	metrics.SetActiveConnections(ScopeTenant.String(), tenant)
}
