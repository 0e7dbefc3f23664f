package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/connectivity"
	"github.com/offline-payment-sync/internal/domain/audit"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
)

// PaymentService defines the queue operations exposed over HTTP
type PaymentService interface {
	// Submit validates the payment and either settles it now or queues it.
	// Settlement failures are absorbed into the queue; only ValidationError
	// and StoreFailure are returned.
	Submit(ctx context.Context, req *SubmitPaymentRequest) (*SubmitResult, error)

	// GetTransaction returns ErrTransactionNotFound for unknown ids
	GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error)

	// ListTransactions returns a page of transactions, most recent first, and the total count
	ListTransactions(ctx context.Context, page, perPage int) ([]*payment.Transaction, int64, error)

	// RetryTransaction resets a failed transaction to pending with a fresh retry budget.
	// Returns ErrInvalidState for any other status.
	RetryTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error)

	// SyncNow runs one sync pass and returns its summary
	SyncNow(ctx context.Context) (payment.SyncSummary, error)

	// RecentSyncPasses returns the latest pass reports, empty when auditing is off
	RecentSyncPasses(ctx context.Context, limit int) ([]*audit.SyncPass, error)
}

// ConnectivityService feeds observations to the oracle
type ConnectivityService interface {
	// Report records an observation; strength nil means full strength.
	// restored is true on a false to true edge.
	Report(ctx context.Context, reachable bool, strength *int) (snapshot connectivity.Snapshot, restored bool)
	Status() connectivity.Snapshot
	// CanSettle reports whether intake would attempt settlement right now
	CanSettle() bool
}

// SyncRunner runs a sync pass
type SyncRunner interface {
	Run(ctx context.Context, trigger shared.SyncTrigger) (payment.SyncSummary, error)
}

// Notifier delivers best-effort notifications
type Notifier interface {
	Notify(ctx context.Context, n *shared.Notification) error
}

// ObservationPublisher shares connectivity observations with other processes
type ObservationPublisher interface {
	PublishObservation(ctx context.Context, s connectivity.Snapshot) error
}
