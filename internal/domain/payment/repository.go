package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/domain/shared"
)

// Repository defines transaction persistence operations. Every operation is
// atomic for the record it touches.
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// Claim moves tx, already transitioned to processing, into the store only if the
	// stored record is still pending with the same RetryCount tx was read with.
	// It returns ErrTransactionNotFound or ErrStatusConflict otherwise.
	Claim(ctx context.Context, tx *Transaction) error

	// Update writes the mutable fields of tx only if the stored status equals expected.
	// It returns ErrTransactionNotFound or ErrStatusConflict otherwise.
	Update(ctx context.Context, tx *Transaction, expected shared.TransactionStatus) error

	// ListEligible returns pending transactions with RetryCount below maxRetries, oldest first.
	ListEligible(ctx context.Context, maxRetries, limit int) ([]*Transaction, error)

	// List returns transactions most recent first.
	List(ctx context.Context, limit, offset int) ([]*Transaction, error)
	Count(ctx context.Context) (int64, error)

	// RecoverStale moves processing transactions claimed before the cutoff back to pending.
	RecoverStale(ctx context.Context, claimedBefore time.Time) (int64, error)
}
