package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultDatabase  = "licenscan"
	scansCollection  = "scans"
	defaultListLimit = 20
)

// MongoStore archives scans in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	scans  *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB and verifies the connection. The
// database name defaults to "licenscan" when empty.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = defaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoStore{
		client: client,
		scans:  client.Database(database).Collection(scansCollection),
	}, nil
}

// Put archives a scan, replacing any existing document with the same ID.
func (s *MongoStore) Put(ctx context.Context, scan *Scan) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.scans.ReplaceOne(ctx, bson.M{"_id": scan.ID}, scan, opts)
	if err != nil {
		return fmt.Errorf("store scan %s: %w", scan.ID, err)
	}
	return nil
}

// Get retrieves a scan by ID.
func (s *MongoStore) Get(ctx context.Context, id uuid.UUID) (*Scan, error) {
	var scan Scan
	err := s.scans.FindOne(ctx, bson.M{"_id": id}).Decode(&scan)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load scan %s: %w", id, err)
	}
	return &scan, nil
}

// List returns the most recent scans, newest first.
func (s *MongoStore) List(ctx context.Context, limit int) ([]*Scan, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.scans.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer cursor.Close(ctx)

	var scans []*Scan
	if err := cursor.All(ctx, &scans); err != nil {
		return nil, fmt.Errorf("decode scans: %w", err)
	}
	return scans, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
