// Package sync_engine reconciles queued payments with the remote processor.
//
// A pass snapshots the eligible records and drives each one through
// claim, settle and record on a shared worker pool. The claim is a
// compare-and-swap on the stored status and retry count, so overlapping passes
// never settle the same attempt twice. The loser of a claim counts the record
// as skipped.
package sync_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/offline-payment-sync/internal/config"
	"github.com/offline-payment-sync/internal/domain/audit"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/offline-payment-sync/internal/notification"
	"github.com/offline-payment-sync/internal/settlement"
	"github.com/panjf2000/ants/v2"
)

// PassParams are the knobs of a single pass
type PassParams struct {
	MaxRetries int
	BaseDelay  time.Duration
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeSkipped
	outcomeStoreFailure
	outcomeCancelled
)

// Engine runs sync passes
type Engine struct {
	repo              payment.Repository
	settler           settlement.Settler
	notifier          Notifier
	audit             audit.Repository // nil disables pass reports
	pool              *ants.Pool
	logger            *slog.Logger
	defaults          PassParams
	maxBackoff        time.Duration
	staleGrace        time.Duration
	batchSize         int
	settlementTimeout time.Duration
	now               func() time.Time
}

func NewEngine(
	cfg *config.Config,
	repo payment.Repository,
	settler settlement.Settler,
	notifier Notifier,
	auditRepo audit.Repository,
	logger *slog.Logger,
) (*Engine, error) {
	// Blocking pool: Submit waits for a free worker instead of failing
	pool, err := ants.NewPool(cfg.WorkerPool.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync worker pool: %w", err)
	}

	return &Engine{
		repo:     repo,
		settler:  settler,
		notifier: notifier,
		audit:    auditRepo,
		pool:     pool,
		logger:   logger,
		defaults: PassParams{
			MaxRetries: cfg.Sync.MaxRetries,
			BaseDelay:  cfg.Sync.BaseDelay,
		},
		maxBackoff:        cfg.Sync.MaxBackoff,
		staleGrace:        cfg.Sync.StaleGrace,
		batchSize:         cfg.Sync.BatchSize,
		settlementTimeout: cfg.Settlement.Timeout,
		now:               time.Now,
	}, nil
}

// DefaultParams returns the configured retry limit and base delay
func (e *Engine) DefaultParams() PassParams {
	return e.defaults
}

// MaxRetries returns the configured retry limit
func (e *Engine) MaxRetries() int {
	return e.defaults.MaxRetries
}

// Run runs a pass with the configured parameters
func (e *Engine) Run(ctx context.Context, trigger shared.SyncTrigger) (payment.SyncSummary, error) {
	return e.RunSyncPass(ctx, trigger, e.defaults)
}

// RunSyncPass attempts every eligible record once. It returns an error only
// when the eligible records could not be listed or ctx was cancelled; in the
// latter case the summary covers the records that finished.
func (e *Engine) RunSyncPass(ctx context.Context, trigger shared.SyncTrigger, params PassParams) (payment.SyncSummary, error) {
	report := audit.NewSyncPass(trigger, e.now())
	logger := e.logger.With("pass_id", report.ID, "trigger", string(trigger))

	e.recoverStale(ctx, logger)

	eligible, err := e.repo.ListEligible(ctx, params.MaxRetries, e.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return payment.SyncSummary{}, ctx.Err()
		}
		return payment.SyncSummary{}, &payment.StoreFailure{Op: "list eligible", Err: err}
	}

	logger.Info("Sync pass started", "eligible", len(eligible), "max_retries", params.MaxRetries)

	var (
		mu      sync.Mutex
		summary = payment.SyncSummary{Total: len(eligible)}
		wg      sync.WaitGroup
	)
	tally := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeSucceeded:
			summary.Successful++
		case outcomeFailed:
			summary.Failed++
		case outcomeSkipped:
			summary.Skipped++
		case outcomeStoreFailure:
			summary.StoreFailures++
		}
	}

	for _, tx := range eligible {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			tally(e.attempt(ctx, tx, params))
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit record to worker pool",
				"transaction_id", tx.ID.String(),
				"error", err,
			)
		}
	}
	wg.Wait()

	report.FinishedAt = e.now().UTC()
	report.Cancelled = ctx.Err() != nil
	report.Summary = summary
	e.recordPass(ctx, logger, report)

	logger.Info("Sync pass finished",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"store_failures", summary.StoreFailures,
		"cancelled", report.Cancelled,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)

	if report.Cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// attempt drives one record through a single settlement attempt
func (e *Engine) attempt(ctx context.Context, tx *payment.Transaction, params PassParams) outcome {
	logger := e.logger.With("transaction_id", tx.ID.String(), "retry_count", tx.RetryCount)

	if err := sleep(ctx, Backoff(params.BaseDelay, tx.RetryCount, e.maxBackoff)); err != nil {
		return outcomeCancelled
	}

	if err := tx.Claim(e.now().UTC()); err != nil {
		logger.Debug("Record no longer claimable", "status", string(tx.Status))
		return outcomeSkipped
	}
	if err := e.repo.Claim(ctx, tx); err != nil {
		switch {
		case errors.Is(err, payment.ErrStatusConflict{}), errors.Is(err, payment.ErrTransactionNotFound{}):
			logger.Debug("Record already handled by another pass")
			return outcomeSkipped
		case ctx.Err() != nil:
			return outcomeCancelled
		default:
			logger.Error("Failed to claim record", "error", err)
			return outcomeStoreFailure
		}
	}

	settleCtx, cancel := context.WithTimeout(ctx, e.settlementTimeout)
	result, settleErr := e.settler.Settle(settleCtx, settlement.NewRequest(tx, true))
	cancel()

	// Results are written even if the pass is being cancelled: a settled charge must be recorded
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), config.ResultWriteTimeout)
	defer cancelWrite()

	if settleErr != nil && ctx.Err() != nil {
		e.release(writeCtx, logger, tx)
		return outcomeCancelled
	}

	if settleErr == nil {
		return e.recordSuccess(writeCtx, logger, tx, result.ProviderTransactionID)
	}
	return e.recordFailure(writeCtx, logger, tx, settleErr, params.MaxRetries)
}

func (e *Engine) recordSuccess(ctx context.Context, logger *slog.Logger, tx *payment.Transaction, providerReference string) outcome {
	if err := tx.Complete(providerReference, e.now().UTC()); err != nil {
		logger.Error("Unexpected transition failure after settlement", "error", err)
		return outcomeStoreFailure
	}

	if err := e.repo.Update(ctx, tx, shared.TransactionStatusProcessing); err != nil {
		logger.Error("CRITICAL: payment settled but completion could not be recorded",
			"provider_transaction_id", providerReference,
			"error", err,
		)
		e.notify(ctx, logger, notification.SettledButNotRecorded(tx, providerReference))
		return outcomeStoreFailure
	}

	logger.Info("Payment synced", "provider_transaction_id", providerReference)
	e.notify(ctx, logger, notification.OfflinePaymentSynced(tx))
	return outcomeSucceeded
}

func (e *Engine) recordFailure(ctx context.Context, logger *slog.Logger, tx *payment.Transaction, settleErr error, maxRetries int) outcome {
	reason := settleErr.Error()
	var failure *payment.SettlementFailure
	if errors.As(settleErr, &failure) {
		reason = failure.Reason
	}

	exhausted, err := tx.Fail(reason, maxRetries)
	if err != nil {
		logger.Error("Unexpected transition failure after settlement error", "error", err)
		return outcomeStoreFailure
	}

	if err := e.repo.Update(ctx, tx, shared.TransactionStatusProcessing); err != nil {
		// The claim stays in place until stale recovery hands the record back
		logger.Error("Failed to record settlement failure", "reason", reason, "error", err)
		return outcomeStoreFailure
	}

	if exhausted {
		logger.Error("Payment failed after final attempt, manual intervention required",
			"attempts", tx.RetryCount,
			"reason", reason,
		)
		e.notify(ctx, logger, notification.ManualInterventionRequired(tx))
	} else {
		logger.Warn("Settlement attempt failed, record requeued",
			"attempts", tx.RetryCount,
			"reason", reason,
		)
	}
	return outcomeFailed
}

func (e *Engine) release(ctx context.Context, logger *slog.Logger, tx *payment.Transaction) {
	if err := tx.Release(); err != nil {
		logger.Error("Failed to release claimed record", "error", err)
		return
	}
	if err := e.repo.Update(ctx, tx, shared.TransactionStatusProcessing); err != nil {
		logger.Error("Failed to release claimed record, stale recovery will return it", "error", err)
		return
	}
	logger.Info("Claim released after cancellation")
}

func (e *Engine) recoverStale(ctx context.Context, logger *slog.Logger) {
	cutoff := e.now().Add(-e.staleGrace)
	recovered, err := e.repo.RecoverStale(ctx, cutoff)
	if err != nil {
		logger.Error("Failed to recover stale claims", "error", err)
		return
	}
	if recovered > 0 {
		logger.Warn("Recovered stale claims", "count", recovered, "claimed_before", cutoff)
	}
}

func (e *Engine) notify(ctx context.Context, logger *slog.Logger, n *shared.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		logger.Warn("Notification not delivered", "channel", string(n.Channel), "error", err)
	}
}

func (e *Engine) recordPass(ctx context.Context, logger *slog.Logger, report *audit.SyncPass) {
	if e.audit == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ResultWriteTimeout)
	defer cancel()
	if err := e.audit.RecordSyncPass(writeCtx, report); err != nil {
		logger.Warn("Sync pass report not recorded", "error", err)
	}
}

// Shutdown releases the worker pool
func (e *Engine) Shutdown() {
	e.logger.Info("Shutting down sync worker pool", "running_workers", e.pool.Running())
	e.pool.Release()
}
