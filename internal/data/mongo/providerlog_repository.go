package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rewardhub/settlement-engine/internal/domain/providerlog"
)

const (
	// ProviderCallCollectionName is the name of the provider call log
	// collection in MongoDB
	ProviderCallCollectionName = "provider_calls"
)

// ProviderLogRepository implements the providerlog.Repository interface for
// MongoDB. The log is a raw archive of provider exchanges for debugging and
// dispute resolution; the authoritative settlement state lives in PostgreSQL.
type ProviderLogRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewProviderLogRepository creates a new MongoDB provider call log repository
func NewProviderLogRepository(logger *slog.Logger, db *mongo.Database) providerlog.Repository {
	return &ProviderLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores one provider exchange. Callers treat failures as
// non-fatal; a lost log record never blocks settlement.
func (r *ProviderLogRepository) Append(ctx context.Context, record *providerlog.Record) error {
	collection := r.db.Collection(ProviderCallCollectionName)

	_, err := collection.InsertOne(ctx, record)
	if err != nil {
		r.logger.Error("Failed to append provider call record",
			"reference", record.Reference,
			"kind", record.Kind,
			"error", err)
		return fmt.Errorf("failed to append provider call record: %w", err)
	}

	return nil
}

// ListByReference retrieves paginated provider call records for one order
// reference, newest first.
func (r *ProviderLogRepository) ListByReference(ctx context.Context, reference string, limit, offset int) ([]*providerlog.Record, error) {
	collection := r.db.Collection(ProviderCallCollectionName)

	filter := bson.M{"reference": reference}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list provider call records",
			"reference", reference,
			"error", err)
		return nil, fmt.Errorf("failed to list provider call records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*providerlog.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode provider call records",
			"reference", reference,
			"error", err)
		return nil, fmt.Errorf("failed to decode provider call records: %w", err)
	}

	return records, nil
}
