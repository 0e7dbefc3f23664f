package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/connectivity"
	"github.com/offline-payment-sync/internal/domain/audit"
)

// ConnectivityServiceImpl implements the ConnectivityService interface.
// Observations are recorded in the oracle first; the audit log and the
// feed to other processes are best-effort.
type ConnectivityServiceImpl struct {
	oracle    *connectivity.Oracle
	auditRepo audit.Repository     // optional
	publisher ObservationPublisher // optional
	logger    *slog.Logger
}

func NewConnectivityService(logger *slog.Logger, oracle *connectivity.Oracle, auditRepo audit.Repository, publisher ObservationPublisher) *ConnectivityServiceImpl {
	return &ConnectivityServiceImpl{
		oracle:    oracle,
		auditRepo: auditRepo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *ConnectivityServiceImpl) Report(ctx context.Context, reachable bool, strength *int) (connectivity.Snapshot, bool) {
	level := connectivity.FullStrength
	if strength != nil {
		level = *strength
	}

	restored := s.oracle.Update(reachable, level)
	snapshot := s.oracle.Observe()

	s.logger.Info("Connectivity observation recorded",
		"reachable", snapshot.Reachable,
		"strength", snapshot.Strength,
		"restored", restored,
	)

	if s.auditRepo != nil {
		event := &audit.ConnectivityEvent{
			ID:         uuid.NewString(),
			Reachable:  snapshot.Reachable,
			Strength:   snapshot.Strength,
			Restored:   restored,
			ObservedAt: snapshot.ObservedAt,
		}
		if err := s.auditRepo.RecordConnectivityEvent(ctx, event); err != nil {
			s.logger.Warn("Connectivity event not recorded", "error", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishObservation(ctx, snapshot); err != nil {
			s.logger.Warn("Connectivity observation not shared", "error", err)
		}
	}

	return snapshot, restored
}

func (s *ConnectivityServiceImpl) Status() connectivity.Snapshot {
	return s.oracle.Observe()
}

func (s *ConnectivityServiceImpl) CanSettle() bool {
	return s.oracle.CanSettle()
}
