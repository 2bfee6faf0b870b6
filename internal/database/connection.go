package database

import (
	"context"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Client is the subset of *mongo.Client a connection needs.
type Client interface {
	Database(name string, opts ...*options.DatabaseOptions) *mongo.Database
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
}

// State is the readiness of a connection.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateDegraded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is a pooled client bound to one logical database. It is shared by
// all requests that target the database.
type Connection struct {
	name           Name
	client         Client
	state          atomic.Int32
	lastCheck      atomic.Int64
	healthInterval time.Duration
	pingTimeout    time.Duration
}

func newConnection(name Name, client Client, healthInterval, pingTimeout time.Duration) *Connection {
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	c := &Connection{
		name:           name,
		client:         client,
		healthInterval: healthInterval,
		pingTimeout:    pingTimeout,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Name returns the database the connection targets.
func (c *Connection) Name() Name { return c.name }

// State returns the current readiness state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Ready reports whether the connection may be handed to callers.
func (c *Connection) Ready() bool { return c.State() == StateReady }

// Database returns the driver handle of the connection's database.
func (c *Connection) Database() *mongo.Database {
	return c.client.Database(string(c.name))
}

// Check pings the primary and moves the connection to ready or degraded. The
// ping is bounded by the ping timeout only, so a cancelled caller cannot mark a
// shared connection degraded.
func (c *Connection) Check(ctx context.Context) error {
	if c.State() == StateClosed {
		return ErrClosed
	}

	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.pingTimeout)
	defer cancel()

	err := c.client.Ping(pingCtx, readpref.Primary())
	c.lastCheck.Store(time.Now().UnixNano())
	if err != nil {
		c.transition(StateDegraded)
		return err
	}
	c.transition(StateReady)
	return nil
}

// Healthy reports whether a stored connection can be reused. A ready
// connection is pinged again once the health check interval has passed.
func (c *Connection) Healthy(ctx context.Context) bool {
	if !c.Ready() {
		return false
	}
	if c.healthInterval <= 0 {
		return true
	}
	if time.Since(time.Unix(0, c.lastCheck.Load())) < c.healthInterval {
		return true
	}
	return c.Check(ctx) == nil
}

// close disconnects the client once. Later calls return ErrClosed.
func (c *Connection) close(ctx context.Context) error {
	for {
		cur := c.state.Load()
		if State(cur) == StateClosed {
			return ErrClosed
		}
		if c.state.CompareAndSwap(cur, int32(StateClosed)) {
			break
		}
	}
	return c.client.Disconnect(ctx)
}

// transition moves to the given state unless the connection is closed.
func (c *Connection) transition(to State) {
	for {
		cur := c.state.Load()
		if State(cur) == StateClosed {
			return
		}
		if c.state.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}
