// Package store wraps driver collections with typed documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate document")
)

// Collection is a typed handle on one collection.
type Collection[T any] struct {
	coll *mongo.Collection
}

// New binds a collection of db.
func New[T any](db *mongo.Database, name string) *Collection[T] {
	return &Collection[T]{coll: db.Collection(name)}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.coll.Name() }

// FindOne returns the first matching document.
func (c *Collection[T]) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) (*T, error) {
	var doc T
	if err := c.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find one in %s: %w", c.Name(), err)
	}
	return &doc, nil
}

// Find returns all matching documents.
func (c *Collection[T]) Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]T, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", c.Name(), err)
	}
	docs := make([]T, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.Name(), err)
	}
	return docs, nil
}

// Count counts matching documents.
func (c *Collection[T]) Count(ctx context.Context, filter any) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.Name(), err)
	}
	return n, nil
}

// InsertOne stores doc.
func (c *Collection[T]) InsertOne(ctx context.Context, doc *T) error {
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w in %s: %w", ErrDuplicate, c.Name(), err)
		}
		return fmt.Errorf("insert into %s: %w", c.Name(), err)
	}
	return nil
}

// Update applies a $set to the first matching document and returns the
// updated document. updatedAt and updatedBy are always set.
func (c *Collection[T]) Update(ctx context.Context, filter any, set bson.M, by string) (*T, error) {
	fields := bson.M{"updatedAt": time.Now().UTC(), "updatedBy": by}
	for k, v := range set {
		fields[k] = v
	}

	var doc T
	err := c.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w in %s: %w", ErrDuplicate, c.Name(), err)
		}
		return nil, fmt.Errorf("update %s: %w", c.Name(), err)
	}
	return &doc, nil
}

// SoftDelete deactivates the first matching active document.
func (c *Collection[T]) SoftDelete(ctx context.Context, filter bson.M, by string) error {
	active := bson.M{"isActive": true}
	for k, v := range filter {
		active[k] = v
	}

	now := time.Now().UTC()
	res, err := c.coll.UpdateOne(ctx, active, bson.M{"$set": bson.M{
		"isActive":  false,
		"deletedAt": now,
		"deletedBy": by,
		"updatedAt": now,
		"updatedBy": by,
	}})
	if err != nil {
		return fmt.Errorf("soft delete in %s: %w", c.Name(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOne removes the first matching document.
func (c *Collection[T]) DeleteOne(ctx context.Context, filter any) error {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", c.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
