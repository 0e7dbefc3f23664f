package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/offline-payment-sync/internal/platform/persistence"
)

const transactionColumns = `id, amount, currency, merchant_id, customer_id, description, status,
		retry_count, created_at, synced_at, claimed_at, provider_reference, last_error`

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment repository
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create inserts a new transaction. The record may already be completed or
// carry a consumed attempt when intake settled it synchronously.
func (r *PaymentRepository) Create(ctx context.Context, tx *payment.Transaction) error {
	query := `
		INSERT INTO payment_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.querier.Exec(ctx, query,
		tx.ID,
		tx.Amount,
		tx.Currency,
		tx.MerchantID,
		tx.CustomerID,
		tx.Description,
		tx.Status,
		tx.RetryCount,
		tx.CreatedAt,
		tx.SyncedAt,
		tx.ClaimedAt,
		tx.ProviderReference,
		tx.LastError,
	)
	if err != nil {
		r.logger.Error("Failed to create payment transaction",
			"transaction_id", tx.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its id
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE id = $1
	`

	tx, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get payment transaction",
			"transaction_id", id.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}

	return tx, nil
}

// Claim is the compare-and-swap that hands a pending record to one pass. The
// retry count is part of the guard so a pass holding an older snapshot cannot
// claim a record another pass has attempted since.
func (r *PaymentRepository) Claim(ctx context.Context, tx *payment.Transaction) error {
	query := `
		UPDATE payment_transactions
		SET status = $1, claimed_at = $2
		WHERE id = $3 AND status = $4 AND retry_count = $5
	`

	result, err := r.querier.Exec(ctx, query,
		tx.Status,
		tx.ClaimedAt,
		tx.ID,
		shared.TransactionStatusPending,
		tx.RetryCount,
	)
	if err != nil {
		r.logger.Error("Failed to claim payment transaction",
			"transaction_id", tx.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to claim payment transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.diagnoseMissedUpdate(ctx, tx.ID, shared.TransactionStatusPending)
	}

	return nil
}

// Update persists the mutable fields guarded by the expected stored status.
func (r *PaymentRepository) Update(ctx context.Context, tx *payment.Transaction, expected shared.TransactionStatus) error {
	query := `
		UPDATE payment_transactions
		SET status = $1, retry_count = $2, synced_at = $3, claimed_at = $4,
			provider_reference = $5, last_error = $6
		WHERE id = $7 AND status = $8
	`

	result, err := r.querier.Exec(ctx, query,
		tx.Status,
		tx.RetryCount,
		tx.SyncedAt,
		tx.ClaimedAt,
		tx.ProviderReference,
		tx.LastError,
		tx.ID,
		expected,
	)
	if err != nil {
		r.logger.Error("Failed to update payment transaction",
			"transaction_id", tx.ID.String(),
			"status", string(tx.Status),
			"error", err,
		)
		return fmt.Errorf("failed to update payment transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.diagnoseMissedUpdate(ctx, tx.ID, expected)
	}

	return nil
}

// diagnoseMissedUpdate tells a missing row apart from a status that moved on.
func (r *PaymentRepository) diagnoseMissedUpdate(ctx context.Context, id uuid.UUID, expected shared.TransactionStatus) error {
	var current shared.TransactionStatus
	err := r.querier.QueryRow(ctx, `SELECT status FROM payment_transactions WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.ErrTransactionNotFound{TransactionID: id}
		}
		return fmt.Errorf("failed to read payment transaction status: %w", err)
	}
	return payment.ErrStatusConflict{TransactionID: id, Expected: expected}
}

// ListEligible retrieves pending transactions with attempts left, oldest first
func (r *PaymentRepository) ListEligible(ctx context.Context, maxRetries, limit int) ([]*payment.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE status = $1 AND retry_count < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, shared.TransactionStatusPending, maxRetries, limit)
	if err != nil {
		r.logger.Error("Failed to list eligible payment transactions", "error", err)
		return nil, fmt.Errorf("failed to list eligible payment transactions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// List retrieves transactions most recent first
func (r *PaymentRepository) List(ctx context.Context, limit, offset int) ([]*payment.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list payment transactions", "error", err)
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// Count returns the total number of stored transactions
func (r *PaymentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM payment_transactions`).Scan(&count); err != nil {
		r.logger.Error("Failed to count payment transactions", "error", err)
		return 0, fmt.Errorf("failed to count payment transactions: %w", err)
	}
	return count, nil
}

// RecoverStale releases processing claims older than the cutoff
func (r *PaymentRepository) RecoverStale(ctx context.Context, claimedBefore time.Time) (int64, error) {
	query := `
		UPDATE payment_transactions
		SET status = $1, claimed_at = NULL
		WHERE status = $2 AND claimed_at < $3
	`

	result, err := r.querier.Exec(ctx, query,
		shared.TransactionStatusPending,
		shared.TransactionStatusProcessing,
		claimedBefore,
	)
	if err != nil {
		r.logger.Error("Failed to recover stale payment transactions", "error", err)
		return 0, fmt.Errorf("failed to recover stale payment transactions: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *PaymentRepository) collect(rows pgx.Rows) ([]*payment.Transaction, error) {
	var transactions []*payment.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			r.logger.Error("Failed to scan payment transaction", "error", err)
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over payment transactions", "error", err)
		return nil, fmt.Errorf("error iterating over payment transactions: %w", err)
	}

	return transactions, nil
}

func scanTransaction(row pgx.Row) (*payment.Transaction, error) {
	var tx payment.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.Amount,
		&tx.Currency,
		&tx.MerchantID,
		&tx.CustomerID,
		&tx.Description,
		&tx.Status,
		&tx.RetryCount,
		&tx.CreatedAt,
		&tx.SyncedAt,
		&tx.ClaimedAt,
		&tx.ProviderReference,
		&tx.LastError,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
