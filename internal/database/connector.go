package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/metrics"
	"github.com/tgmkubi/restaurant-sst-api/pkg/secrets"
)

// uriField is the secret field holding the base connection URI.
const uriField = "connectionUri"

// Connector establishes, verifies and closes connections.
type Connector struct {
	secrets secrets.Store
	dialer  Dialer
	opts    Options
	log     *zap.Logger
}

// NewConnector creates a connector reading credentials from store.
func NewConnector(store secrets.Store, dialer Dialer, opts Options, log *zap.Logger) *Connector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Connector{
		secrets: store,
		dialer:  dialer,
		opts:    opts.normalized(),
		log:     log.Named("connector"),
	}
}

// Options returns the options in effect.
func (c *Connector) Options() Options { return c.opts }

// Connect dials the named database, retrying failed dials with a constant
// delay. The returned connection is still connecting; see AwaitReady.
func (c *Connector) Connect(ctx context.Context, name Name) (*Connection, error) {
	if err := name.Validate(); err != nil {
		return nil, err
	}

	base, err := c.connectionURI(ctx)
	if err != nil {
		return nil, err
	}

	profile := c.opts.Profile(name)
	uri, err := BuildURI(base, name, profile)
	if err != nil {
		return nil, err
	}

	scope := name.Scope().String()
	start := time.Now()
	attempts := 0
	var client Client

	backoff := retry.WithMaxRetries(uint64(c.opts.ConnectRetries), retry.NewConstant(c.opts.RetryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		cl, err := c.dialer.Dial(ctx, uri)
		metrics.RecordDial(scope, err)
		if err != nil {
			c.log.Warn("Database connect attempt failed",
				zap.String("database", string(name)),
				zap.Int("attempt", attempts),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		client = cl
		return nil
	})
	metrics.ObserveConnect(scope, start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("connect %s: %w", name, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrConnectAttemptsExhausted, name, attempts, err)
	}

	c.log.Info("Database connected",
		zap.String("database", string(name)),
		zap.String("scope", scope),
		zap.Uint64("max_pool_size", profile.MaxPoolSize),
		zap.Int("attempts", attempts))

	return newConnection(name, client, c.opts.HealthCheckInterval, profile.ServerSelectionTimeout), nil
}

// AwaitReady polls the connection until it reports ready.
func (c *Connector) AwaitReady(ctx context.Context, conn *Connection) error {
	backoff := retry.WithMaxRetries(uint64(c.opts.ReadyAttempts-1), retry.NewConstant(c.opts.ReadyInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := conn.Check(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s is %s: %w", ErrNotReady, conn.Name(), conn.State(), err)
	}
	return nil
}

// Close disconnects the connection. Closing an already closed connection is
// not an error.
func (c *Connector) Close(ctx context.Context, conn *Connection) error {
	err := conn.close(ctx)
	if err == nil || errors.Is(err, ErrClosed) || errors.Is(err, mongo.ErrClientDisconnected) {
		return nil
	}
	return fmt.Errorf("close %s: %w", conn.Name(), err)
}

func (c *Connector) connectionURI(ctx context.Context) (string, error) {
	if c.opts.SecretName == "" {
		return "", ErrSecretNameMissing
	}

	secret, err := c.secrets.GetSecret(ctx, c.opts.SecretName)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return "", fmt.Errorf("%w: %w", ErrSecretNotFound, err)
		}
		return "", fmt.Errorf("read database secret: %w", err)
	}

	uri := secret[uriField]
	if uri == "" {
		return "", ErrConnectionURIMissing
	}
	return uri, nil
}
