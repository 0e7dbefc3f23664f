package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
)

// SyncPass is the report of one completed or cancelled sync pass
type SyncPass struct {
	ID         string              `json:"id" bson:"_id"`
	Trigger    shared.SyncTrigger  `json:"trigger" bson:"trigger"`
	StartedAt  time.Time           `json:"started_at" bson:"started_at"`
	FinishedAt time.Time           `json:"finished_at" bson:"finished_at"`
	Cancelled  bool                `json:"cancelled" bson:"cancelled"`
	Summary    payment.SyncSummary `json:"summary" bson:"summary"`
}

// NewSyncPass starts a report for a pass beginning now
func NewSyncPass(trigger shared.SyncTrigger, startedAt time.Time) *SyncPass {
	return &SyncPass{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: startedAt.UTC(),
	}
}

// ConnectivityEvent is one oracle observation kept for auditing
type ConnectivityEvent struct {
	ID         string    `json:"id" bson:"_id"`
	Reachable  bool      `json:"reachable" bson:"reachable"`
	Strength   int       `json:"strength" bson:"strength"`
	Restored   bool      `json:"restored" bson:"restored"`
	ObservedAt time.Time `json:"observed_at" bson:"observed_at"`
}

// Repository persists the audit trail. Writes are best-effort for callers.
type Repository interface {
	RecordSyncPass(ctx context.Context, pass *SyncPass) error
	RecentSyncPasses(ctx context.Context, limit int) ([]*SyncPass, error)
	RecordConnectivityEvent(ctx context.Context, event *ConnectivityEvent) error
}
