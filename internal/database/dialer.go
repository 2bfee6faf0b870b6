package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Dialer opens a client for a fully built connection URI.
type Dialer interface {
	Dial(ctx context.Context, uri string) (Client, error)
}

// MongoDialer dials MongoDB with the official driver. Pool sizes and timeouts
// come from the URI query.
type MongoDialer struct {
	AppName string
}

// Dial connects and pings the primary. A client that cannot be pinged is
// disconnected before returning the error.
func (d MongoDialer) Dial(ctx context.Context, uri string) (Client, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if d.AppName != "" {
		clientOpts.SetAppName(d.AppName)
	}
	clientOpts.SetRetryWrites(true)
	clientOpts.SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}
