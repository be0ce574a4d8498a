package recorder

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"okapi/internal/constants"
)

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection(constants.ExecutionRecordsCollection),
	}
}

func (s *MongoStore) Insert(ctx context.Context, rec *ExecutionRecord) error {
	_, err := s.collection.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to insert execution record: %w", err)
	}
	return nil
}

func (s *MongoStore) ListByRule(ctx context.Context, ruleID string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"rule_id": ruleID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []ExecutionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode execution records: %w", err)
	}

	return records, nil
}
