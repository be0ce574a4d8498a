package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"okapi/internal/constants"
)

// EnsureMongoCollection creates the indexes the execution record store
// queries by. The collection itself is created lazily on first insert.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.ExecutionRecordsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetName("idx_execution_records_run_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "rule_id", Value: 1}, {Key: "started_at", Value: -1}},
			Options: options.Index().SetName("idx_execution_records_rule_started"),
		},
		{
			Keys:    bson.D{{Key: "started_at", Value: -1}},
			Options: options.Index().SetName("idx_execution_records_started_at"),
		},
		{
			Keys:    bson.D{{Key: "triggered", Value: 1}, {Key: "started_at", Value: -1}},
			Options: options.Index().SetName("idx_execution_records_triggered_started"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
