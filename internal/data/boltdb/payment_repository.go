// Package boltdb stores payment transactions in an embedded bolt file so the
// queue survives restarts on devices that run without a database server.
//
// Two buckets are kept: transactions holds the JSON encoded record keyed by id,
// and by_created indexes ids by creation time so both oldest-first and
// newest-first scans walk a cursor instead of sorting in memory.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/offline-payment-sync/internal/platform/persistence"
)

var (
	transactionsBucket = []byte("payment_transactions")
	byCreatedBucket    = []byte("payment_transactions_by_created")
)

// ErrDuplicateTransaction indicates an insert with an id that is already stored.
var ErrDuplicateTransaction = errors.New("transaction already exists")

// PaymentRepository implements the payment.Repository interface on bolt
type PaymentRepository struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewPaymentRepository creates the buckets if needed and returns the repository
func NewPaymentRepository(logger *slog.Logger, store *persistence.BoltDB) (payment.Repository, error) {
	return newPaymentRepository(logger, store.DB())
}

func newPaymentRepository(logger *slog.Logger, db *bolt.DB) (*PaymentRepository, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(transactionsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(byCreatedBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bolt buckets: %w", err)
	}
	return &PaymentRepository{db: db, logger: logger}, nil
}

func (r *PaymentRepository) Create(ctx context.Context, t *payment.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode payment transaction: %w", err)
	}

	err = r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(transactionsBucket)
		key := t.ID[:]
		if b.Get(key) != nil {
			return ErrDuplicateTransaction
		}
		if err := b.Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(byCreatedBucket).Put(createdKey(t.CreatedAt, t.ID), key)
	})
	if err != nil {
		r.logger.Error("Failed to create payment transaction",
			"transaction_id", t.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}

	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t *payment.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		t, err = load(tx.Bucket(transactionsBucket), id)
		return err
	})
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound{}) {
			return nil, err
		}
		r.logger.Error("Failed to get payment transaction",
			"transaction_id", id.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}

	return t, nil
}

// Claim stores tx as processing if the stored record is still pending with the
// retry count tx was read with.
func (r *PaymentRepository) Claim(ctx context.Context, t *payment.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(transactionsBucket)
		stored, err := load(b, t.ID)
		if err != nil {
			return err
		}
		if stored.Status != shared.TransactionStatusPending || stored.RetryCount != t.RetryCount {
			return payment.ErrStatusConflict{TransactionID: t.ID, Expected: shared.TransactionStatusPending}
		}

		stored.Status = t.Status
		stored.ClaimedAt = t.ClaimedAt
		return put(b, stored)
	})
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound{}) || errors.Is(err, payment.ErrStatusConflict{}) {
			return err
		}
		r.logger.Error("Failed to claim payment transaction",
			"transaction_id", t.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to claim payment transaction: %w", err)
	}

	return nil
}

// Update runs the status comparison and the write in one bolt write transaction,
// which bolt serializes, so a claim is a compare-and-swap.
func (r *PaymentRepository) Update(ctx context.Context, t *payment.Transaction, expected shared.TransactionStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(transactionsBucket)
		stored, err := load(b, t.ID)
		if err != nil {
			return err
		}
		if stored.Status != expected {
			return payment.ErrStatusConflict{TransactionID: t.ID, Expected: expected}
		}

		stored.Status = t.Status
		stored.RetryCount = t.RetryCount
		stored.SyncedAt = t.SyncedAt
		stored.ClaimedAt = t.ClaimedAt
		stored.ProviderReference = t.ProviderReference
		stored.LastError = t.LastError
		return put(b, stored)
	})
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound{}) || errors.Is(err, payment.ErrStatusConflict{}) {
			return err
		}
		r.logger.Error("Failed to update payment transaction",
			"transaction_id", t.ID.String(),
			"status", string(t.Status),
			"error", err,
		)
		return fmt.Errorf("failed to update payment transaction: %w", err)
	}

	return nil
}

func (r *PaymentRepository) ListEligible(ctx context.Context, maxRetries, limit int) ([]*payment.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var transactions []*payment.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(transactionsBucket)
		c := tx.Bucket(byCreatedBucket).Cursor()
		for k, v := c.First(); k != nil && len(transactions) < limit; k, v = c.Next() {
			t, err := decode(b.Get(v))
			if err != nil {
				return err
			}
			if t.IsEligibleForSync(maxRetries) {
				transactions = append(transactions, t)
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to list eligible payment transactions", "error", err)
		return nil, fmt.Errorf("failed to list eligible payment transactions: %w", err)
	}

	return transactions, nil
}

func (r *PaymentRepository) List(ctx context.Context, limit, offset int) ([]*payment.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var transactions []*payment.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(transactionsBucket)
		c := tx.Bucket(byCreatedBucket).Cursor()
		skipped := 0
		for k, v := c.Last(); k != nil && len(transactions) < limit; k, v = c.Prev() {
			if skipped < offset {
				skipped++
				continue
			}
			t, err := decode(b.Get(v))
			if err != nil {
				return err
			}
			transactions = append(transactions, t)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to list payment transactions", "error", err)
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}

	return transactions, nil
}

func (r *PaymentRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := r.db.View(func(tx *bolt.Tx) error {
		count = int64(tx.Bucket(transactionsBucket).Stats().KeyN)
		return nil
	})
	return count, err
}

func (r *PaymentRepository) RecoverStale(ctx context.Context, claimedBefore time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var recovered int64
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(transactionsBucket)

		var stale []*payment.Transaction
		err := b.ForEach(func(_, v []byte) error {
			t, err := decode(v)
			if err != nil {
				return err
			}
			if t.Status == shared.TransactionStatusProcessing && t.ClaimedAt != nil && t.ClaimedAt.Before(claimedBefore) {
				stale = append(stale, t)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// bolt forbids writes while ForEach walks the bucket
		for _, t := range stale {
			if err := t.Release(); err != nil {
				return err
			}
			if err := put(b, t); err != nil {
				return err
			}
			recovered++
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to recover stale payment transactions", "error", err)
		return 0, fmt.Errorf("failed to recover stale payment transactions: %w", err)
	}

	return recovered, nil
}

func load(b *bolt.Bucket, id uuid.UUID) (*payment.Transaction, error) {
	v := b.Get(id[:])
	if v == nil {
		return nil, payment.ErrTransactionNotFound{TransactionID: id}
	}
	return decode(v)
}

func decode(v []byte) (*payment.Transaction, error) {
	var t payment.Transaction
	if err := json.Unmarshal(v, &t); err != nil {
		return nil, fmt.Errorf("failed to decode payment transaction: %w", err)
	}
	return &t, nil
}

func put(b *bolt.Bucket, t *payment.Transaction) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode payment transaction: %w", err)
	}
	return b.Put(t.ID[:], data)
}

// createdKey sorts by creation time, then id for records created in the same nanosecond.
func createdKey(createdAt time.Time, id uuid.UUID) []byte {
	key := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(createdAt.UnixNano()))
	copy(key[8:], id[:])
	return key
}
