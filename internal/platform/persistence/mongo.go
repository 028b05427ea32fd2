package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/rewardhub/settlement-engine/internal/config"
)

// callLogCollection matches the collection used by the provider call log
// repository. Indexes are created here, at connect time, so lookups by order
// reference stay cheap as the archive grows.
const callLogCollection = "provider_calls"

// MongoDB owns the client for the provider call archive database.
type MongoDB struct {
	logger   *slog.Logger
	client   *mongo.Client
	database *mongo.Database
}

// NewMongoDB connects to the archive database, verifies the connection and
// ensures the call log indexes exist.
func NewMongoDB(ctx context.Context, logger *slog.Logger, cfg *config.MongoDBConfig) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	database := client.Database(cfg.Database)
	if err := ensureCallLogIndexes(pingCtx, database); err != nil {
		return nil, err
	}

	logger.Info("connected to mongodb", "database", cfg.Database)

	return &MongoDB{
		logger:   logger,
		client:   client,
		database: database,
	}, nil
}

// ensureCallLogIndexes creates the reference/created_at index the call log
// repository queries by. CreateOne is a no-op when the index already exists.
func ensureCallLogIndexes(ctx context.Context, db *mongo.Database) error {
	index := mongo.IndexModel{
		Keys: bson.D{
			{Key: "reference", Value: 1},
			{Key: "created_at", Value: -1},
		},
	}
	if _, err := db.Collection(callLogCollection).Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("create call log index: %w", err)
	}
	return nil
}

func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect from mongodb: %w", err)
	}
	m.logger.Info("closed mongodb connection")
	return nil
}
