package sync_engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
)

const redeliveryBatch = 100

// PassRunner runs one sync pass
type PassRunner interface {
	Run(ctx context.Context, trigger shared.SyncTrigger) (payment.SyncSummary, error)
}

// ConnectivitySource is the part of the oracle the scheduler reads
type ConnectivitySource interface {
	CanSettle() bool
	Restored() <-chan struct{}
}

// Scheduler triggers passes on a fixed interval and when connectivity comes back.
// Passes it starts run one at a time.
type Scheduler struct {
	runner        PassRunner
	connectivity  ConnectivitySource
	redeliverer   Redeliverer // optional
	logger        *slog.Logger
	interval      time.Duration // zero disables scheduled passes
	syncOnRestore bool
}

func NewScheduler(
	runner PassRunner,
	connectivity ConnectivitySource,
	redeliverer Redeliverer,
	logger *slog.Logger,
	interval time.Duration,
	syncOnRestore bool,
) *Scheduler {
	return &Scheduler{
		runner:        runner,
		connectivity:  connectivity,
		redeliverer:   redeliverer,
		logger:        logger,
		interval:      interval,
		syncOnRestore: syncOnRestore,
	}
}

// Start blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting sync scheduler",
		"interval", s.interval.String(),
		"sync_on_restore", s.syncOnRestore,
	)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopping due to context cancellation.")
			return
		case <-tick:
			if !s.connectivity.CanSettle() {
				s.logger.Debug("Processor not reachable, skipping scheduled pass")
				continue
			}
			s.run(ctx, shared.SyncTriggerScheduled)
		case <-s.connectivity.Restored():
			if !s.syncOnRestore {
				continue
			}
			s.logger.Info("Connectivity restored, starting sync pass")
			s.run(ctx, shared.SyncTriggerConnectivityRestored)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, trigger shared.SyncTrigger) {
	if _, err := s.runner.Run(ctx, trigger); err != nil && ctx.Err() == nil {
		s.logger.Error("Sync pass failed", "trigger", string(trigger), "error", err)
	}

	if s.redeliverer == nil || ctx.Err() != nil {
		return
	}
	if _, err := s.redeliverer.Redeliver(ctx, redeliveryBatch); err != nil {
		s.logger.Warn("Notification redelivery failed", "error", err)
	}
}
