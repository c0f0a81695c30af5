package mongobackend

import (
	"context"
	"fmt"
	"time"

	"github.com/FranksOps/verifis/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ensure mongoBackend implements storage.Backend
var _ storage.Backend = (*mongoBackend)(nil)

const (
	DefaultDatabase   = "verifis"
	DefaultCollection = "runs"
)

type mongoBackend struct {
	client *mongo.Client
	runs   *mongo.Collection
}

// New creates a new MongoDB-backed storage.Backend. Empty database and
// collection names take the defaults.
func New(ctx context.Context, uri, database, collection string) (storage.Backend, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	runs := client.Database(database).Collection(collection)
	_, err = runs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "mode", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &mongoBackend{client: client, runs: runs}, nil
}

func (b *mongoBackend) Save(ctx context.Context, r *storage.RunRecord) error {
	if _, err := b.runs.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

func (b *mongoBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.RunRecord, error) {
	q := bson.M{}
	if filter.Mode != "" {
		q["mode"] = filter.Mode
	}
	if filter.Provider != "" {
		q["provider"] = filter.Provider
	}
	if filter.Since != nil {
		q["created_at"] = bson.M{"$gte": *filter.Since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := b.runs.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find runs: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*storage.RunRecord
	for cursor.Next(ctx) {
		var r storage.RunRecord
		if err := cursor.Decode(&r); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		results = append(results, &r)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	return results, nil
}

func (b *mongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}
