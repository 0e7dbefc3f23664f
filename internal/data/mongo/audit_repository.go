package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/offline-payment-sync/internal/domain/audit"
)

const (
	// SyncPassCollectionName holds one document per sync pass
	SyncPassCollectionName = "sync_passes"
	// ConnectivityCollectionName holds one document per connectivity observation
	ConnectivityCollectionName = "connectivity_events"
)

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Repository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

func (r *AuditRepository) RecordSyncPass(ctx context.Context, pass *audit.SyncPass) error {
	_, err := r.db.Collection(SyncPassCollectionName).InsertOne(ctx, pass)
	if err != nil {
		r.logger.Error("Failed to record sync pass",
			"pass_id", pass.ID,
			"error", err)
		return fmt.Errorf("failed to record sync pass: %w", err)
	}
	return nil
}

// RecentSyncPasses returns the latest pass reports, newest first
func (r *AuditRepository) RecentSyncPasses(ctx context.Context, limit int) ([]*audit.SyncPass, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.db.Collection(SyncPassCollectionName).Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to query sync passes", "error", err)
		return nil, fmt.Errorf("failed to query sync passes: %w", err)
	}
	defer cursor.Close(ctx)

	var passes []*audit.SyncPass
	if err := cursor.All(ctx, &passes); err != nil {
		r.logger.Error("Failed to decode sync passes", "error", err)
		return nil, fmt.Errorf("failed to decode sync passes: %w", err)
	}

	return passes, nil
}

func (r *AuditRepository) RecordConnectivityEvent(ctx context.Context, event *audit.ConnectivityEvent) error {
	_, err := r.db.Collection(ConnectivityCollectionName).InsertOne(ctx, event)
	if err != nil {
		r.logger.Error("Failed to record connectivity event",
			"reachable", event.Reachable,
			"error", err)
		return fmt.Errorf("failed to record connectivity event: %w", err)
	}
	return nil
}
