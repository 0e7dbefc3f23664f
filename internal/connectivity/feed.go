package connectivity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// FeedHandler applies observations published by another process to the oracle.
// Its signature matches the Kafka consumer message handler.
func FeedHandler(logger *slog.Logger, oracle *Oracle) func(ctx context.Context, key, value []byte) error {
	return func(_ context.Context, _ []byte, value []byte) error {
		var s Snapshot
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("failed to decode connectivity observation: %w", err)
		}

		restored, applied := oracle.Apply(s)
		if !applied {
			logger.Debug("Dropped out of order connectivity observation", "observed_at", s.ObservedAt)
			return nil
		}
		logger.Info("Connectivity observation received",
			"reachable", s.Reachable,
			"strength", s.Strength,
			"restored", restored,
		)
		return nil
	}
}
