package sync_engine

import (
	"context"

	"github.com/offline-payment-sync/internal/domain/shared"
)

// Notifier delivers best-effort notifications
type Notifier interface {
	Notify(ctx context.Context, n *shared.Notification) error
}

// Redeliverer retries notifications that could not be delivered earlier
type Redeliverer interface {
	Redeliver(ctx context.Context, limit int) (int, error)
}
