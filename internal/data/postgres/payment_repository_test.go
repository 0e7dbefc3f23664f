package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var transactionColumnNames = []string{
	"id", "amount", "currency", "merchant_id", "customer_id", "description", "status",
	"retry_count", "created_at", "synced_at", "claimed_at", "provider_reference", "last_error",
}

func sampleTransaction(status shared.TransactionStatus, retryCount int) *payment.Transaction {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	synced := created.Add(time.Minute)
	claimed := created.Add(30 * time.Second)
	return &payment.Transaction{
		ID:                uuid.New(),
		Amount:            1000,
		Currency:          "USD",
		MerchantID:        "m1",
		CustomerID:        "c1",
		Description:       "coffee",
		Status:            status,
		RetryCount:        retryCount,
		CreatedAt:         created,
		SyncedAt:          &synced,
		ClaimedAt:         &claimed,
		ProviderReference: "pi_1",
		LastError:         "",
	}
}

func addTransactionRow(rows *pgxmock.Rows, tx *payment.Transaction) *pgxmock.Rows {
	return rows.AddRow(tx.ID, tx.Amount, tx.Currency, tx.MerchantID, tx.CustomerID, tx.Description, tx.Status,
		tx.RetryCount, tx.CreatedAt, tx.SyncedAt, tx.ClaimedAt, tx.ProviderReference, tx.LastError)
}

func TestPaymentRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	tx := sampleTransaction(shared.TransactionStatusPending, 0)
	query := regexp.QuoteMeta("INSERT INTO payment_transactions")

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(tx.ID, tx.Amount, tx.Currency, tx.MerchantID, tx.CustomerID, tx.Description, tx.Status,
				tx.RetryCount, tx.CreatedAt, tx.SyncedAt, tx.ClaimedAt, tx.ProviderReference, tx.LastError).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, tx)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(tx.ID, tx.Amount, tx.Currency, tx.MerchantID, tx.CustomerID, tx.Description, tx.Status,
				tx.RetryCount, tx.CreatedAt, tx.SyncedAt, tx.ClaimedAt, tx.ProviderReference, tx.LastError).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, tx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create payment transaction")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	expected := sampleTransaction(shared.TransactionStatusCompleted, 0)
	query := regexp.QuoteMeta("FROM payment_transactions") + `\s+WHERE id = \$1`

	t.Run("success", func(t *testing.T) {
		rows := addTransactionRow(pgxmock.NewRows(transactionColumnNames), expected)
		mock.ExpectQuery(query).WithArgs(expected.ID).WillReturnRows(rows)

		tx, err := repo.GetByID(ctx, expected.ID)
		assert.NoError(t, err)
		assert.Equal(t, expected, tx)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(expected.ID).WillReturnError(pgx.ErrNoRows)

		tx, err := repo.GetByID(ctx, expected.ID)
		assert.Nil(t, tx)
		var notFound payment.ErrTransactionNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, expected.ID, notFound.TransactionID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mock.ExpectQuery(query).WithArgs(expected.ID).WillReturnError(dbErr)

		tx, err := repo.GetByID(ctx, expected.ID)
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to get payment transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_Claim(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	tx := sampleTransaction(shared.TransactionStatusProcessing, 2)
	claimQuery := regexp.QuoteMeta("UPDATE payment_transactions") +
		`[\s\S]+WHERE id = \$3 AND status = \$4 AND retry_count = \$5`
	statusQuery := regexp.QuoteMeta("SELECT status FROM payment_transactions WHERE id = $1")

	expectClaim := func() *pgxmock.ExpectedExec {
		return mock.ExpectExec(claimQuery).
			WithArgs(tx.Status, tx.ClaimedAt, tx.ID, shared.TransactionStatusPending, 2)
	}

	t.Run("claim wins", func(t *testing.T) {
		expectClaim().WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.Claim(ctx, tx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("record attempted since the snapshot", func(t *testing.T) {
		expectClaim().WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(statusQuery).WithArgs(tx.ID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(shared.TransactionStatusPending))

		err := repo.Claim(ctx, tx)
		var conflict payment.ErrStatusConflict
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, shared.TransactionStatusPending, conflict.Expected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		expectClaim().WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(statusQuery).WithArgs(tx.ID).WillReturnError(pgx.ErrNoRows)

		err := repo.Claim(ctx, tx)
		assert.ErrorIs(t, err, payment.ErrTransactionNotFound{TransactionID: tx.ID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db down")
		expectClaim().WillReturnError(dbErr)

		err := repo.Claim(ctx, tx)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to claim payment transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	tx := sampleTransaction(shared.TransactionStatusProcessing, 1)
	updateQuery := regexp.QuoteMeta("UPDATE payment_transactions") + `[\s\S]+WHERE id = \$7 AND status = \$8`
	statusQuery := regexp.QuoteMeta("SELECT status FROM payment_transactions WHERE id = $1")

	expectUpdate := func() *pgxmock.ExpectedExec {
		return mock.ExpectExec(updateQuery).
			WithArgs(tx.Status, tx.RetryCount, tx.SyncedAt, tx.ClaimedAt, tx.ProviderReference, tx.LastError,
				tx.ID, shared.TransactionStatusPending)
	}

	t.Run("expected status matches", func(t *testing.T) {
		expectUpdate().WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(ctx, tx, shared.TransactionStatusPending)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status moved on", func(t *testing.T) {
		expectUpdate().WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(statusQuery).WithArgs(tx.ID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(shared.TransactionStatusProcessing))

		err := repo.Update(ctx, tx, shared.TransactionStatusPending)
		var conflict payment.ErrStatusConflict
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, tx.ID, conflict.TransactionID)
		assert.Equal(t, shared.TransactionStatusPending, conflict.Expected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		expectUpdate().WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(statusQuery).WithArgs(tx.ID).WillReturnError(pgx.ErrNoRows)

		err := repo.Update(ctx, tx, shared.TransactionStatusPending)
		assert.ErrorIs(t, err, payment.ErrTransactionNotFound{TransactionID: tx.ID})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db down")
		expectUpdate().WillReturnError(dbErr)

		err := repo.Update(ctx, tx, shared.TransactionStatusPending)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to update payment transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_ListEligible(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	older := sampleTransaction(shared.TransactionStatusPending, 0)
	newer := sampleTransaction(shared.TransactionStatusPending, 3)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	query := `WHERE status = \$1 AND retry_count < \$2\s+ORDER BY created_at ASC\s+LIMIT \$3`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(transactionColumnNames)
		addTransactionRow(rows, older)
		addTransactionRow(rows, newer)
		mock.ExpectQuery(query).WithArgs(shared.TransactionStatusPending, 5, 100).WillReturnRows(rows)

		txs, err := repo.ListEligible(ctx, 5, 100)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, older.ID, txs[0].ID)
		assert.Equal(t, newer.ID, txs[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		dbErr := errors.New("timeout")
		mock.ExpectQuery(query).WithArgs(shared.TransactionStatusPending, 5, 100).WillReturnError(dbErr)

		txs, err := repo.ListEligible(ctx, 5, 100)
		assert.Nil(t, txs)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row error", func(t *testing.T) {
		rowErr := errors.New("broken row")
		rows := addTransactionRow(pgxmock.NewRows(transactionColumnNames), older).RowError(0, rowErr)
		mock.ExpectQuery(query).WithArgs(shared.TransactionStatusPending, 5, 100).WillReturnRows(rows)

		txs, err := repo.ListEligible(ctx, 5, 100)
		assert.Nil(t, txs)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_ListAndCount(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	tx := sampleTransaction(shared.TransactionStatusFailed, 5)

	rows := addTransactionRow(pgxmock.NewRows(transactionColumnNames), tx)
	mock.ExpectQuery(`ORDER BY created_at DESC\s+LIMIT \$1 OFFSET \$2`).WithArgs(10, 20).WillReturnRows(rows)

	txs, err := repo.List(ctx, 10, 20)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx, txs[0])

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payment_transactions")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(21)))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(21), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_RecoverStale(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	cutoff := time.Now().Add(-5 * time.Minute)
	query := `SET status = \$1, claimed_at = NULL\s+WHERE status = \$2 AND claimed_at < \$3`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(shared.TransactionStatusPending, shared.TransactionStatusProcessing, cutoff).
			WillReturnResult(pgxmock.NewResult("UPDATE", 3))

		recovered, err := repo.RecoverStale(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(3), recovered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		dbErr := errors.New("db down")
		mock.ExpectExec(query).
			WithArgs(shared.TransactionStatusPending, shared.TransactionStatusProcessing, cutoff).
			WillReturnError(dbErr)

		recovered, err := repo.RecoverStale(ctx, cutoff)
		assert.Zero(t, recovered)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
