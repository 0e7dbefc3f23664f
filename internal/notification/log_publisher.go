package notification

import (
	"context"
	"log/slog"

	"github.com/offline-payment-sync/internal/domain/shared"
)

// LogPublisher writes notifications to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, n *shared.Notification) error {
	level := slog.LevelInfo
	if n.Channel == shared.NotificationChannelAlert {
		level = slog.LevelError
	}
	p.logger.Log(ctx, level, "Notification",
		"channel", string(n.Channel),
		"recipient", n.Recipient,
		"message", n.Message,
		"transaction_id", n.TransactionID.String(),
	)
	return nil
}
