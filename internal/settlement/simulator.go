package settlement

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/domain/payment"
)

// Simulator settles locally without a processor. It is used for development
// and demos; failureRate in [0,1] controls how often charges are declined.
type Simulator struct {
	failureRate float64
	latency     time.Duration
	roll        func() float64
	logger      *slog.Logger
}

func NewSimulator(logger *slog.Logger, failureRate float64, latency time.Duration) *Simulator {
	return &Simulator{
		failureRate: failureRate,
		latency:     latency,
		roll:        rand.Float64,
		logger:      logger,
	}
}

func (s *Simulator) Settle(ctx context.Context, req Request) (*Result, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, &payment.SettlementFailure{Reason: "processor timed out", Err: ctx.Err()}
		case <-timer.C:
		}
	}

	if s.roll() < s.failureRate {
		s.logger.Debug("Simulated settlement declined", "transaction_id", req.TransactionID.String())
		return nil, &payment.SettlementFailure{Reason: "simulated decline"}
	}

	return &Result{ProviderTransactionID: "sim_" + uuid.NewString()}, nil
}
