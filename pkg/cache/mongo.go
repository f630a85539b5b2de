package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo defaults.
const (
	DefaultMongoDatabase   = "trustlane"
	DefaultMongoCollection = "cache"
)

// MongoOptions configures a MongoCache.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// MongoCache stores entries as documents keyed by _id. Expired documents are
// removed by a TTL index on expires_at and ignored on read until then.
type MongoCache struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	ExpiresAt time.Time `bson:"expires_at,omitempty"`
}

// NewMongoCache connects, pings and ensures the TTL index exists.
func NewMongoCache(ctx context.Context, opts MongoOptions) (*MongoCache, error) {
	if opts.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if opts.Database == "" {
		opts.Database = DefaultMongoDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: mongo connect: %w", ErrUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: mongo ping: %w", ErrUnavailable, err)
	}

	coll := client.Database(opts.Database).Collection(opts.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ttl index: %w", err)
	}
	return &MongoCache{client: client, coll: coll, now: time.Now}, nil
}

func (c *MongoCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e mongoEntry
	err := c.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo find: %w", err)
	}
	if !e.ExpiresAt.IsZero() && c.now().After(e.ExpiresAt) {
		return nil, false, nil
	}
	return e.Data, true, nil
}

func (c *MongoCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := mongoEntry{Key: key, Data: data}
	if ttl > 0 {
		e.ExpiresAt = c.now().Add(ttl).UTC()
	}
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": key}, e, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo upsert: %w", err)
	}
	return nil
}

func (c *MongoCache) Delete(ctx context.Context, key string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	return nil
}

func (c *MongoCache) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

var _ Cache = (*MongoCache)(nil)
