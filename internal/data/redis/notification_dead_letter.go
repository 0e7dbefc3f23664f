package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const deadLetterIndexKey = "notifications:dead_letter"

// NotificationDeadLetter parks notifications the broker refused. Each one is
// stored under "notification:{id}" with a TTL and indexed in a sorted set
// scored by park time, so redelivery walks them oldest first.
type NotificationDeadLetter struct {
	client redis.Cmdable
	logger *slog.Logger
	ttl    time.Duration
}

func NewNotificationDeadLetter(logger *slog.Logger, client redis.Cmdable, ttl time.Duration) *NotificationDeadLetter {
	return &NotificationDeadLetter{client: client, logger: logger, ttl: ttl}
}

func notificationKey(id uuid.UUID) string {
	return fmt.Sprintf("notification:%s", id)
}

// Park stores the notification and indexes it for redelivery
func (d *NotificationDeadLetter) Park(ctx context.Context, n *shared.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := notificationKey(n.ID)
	_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, d.ttl)
		pipe.ZAdd(ctx, deadLetterIndexKey, redis.Z{Score: float64(time.Now().UnixMilli()), Member: n.ID.String()})
		return nil
	})
	if err != nil {
		d.logger.Error("Failed to park notification", "key", key, "error", err)
		return fmt.Errorf("failed to park notification %s: %w", n.ID, err)
	}

	d.logger.Warn("Notification parked in dead letter",
		"key", key,
		"channel", string(n.Channel),
		"transaction_id", n.TransactionID.String(),
	)
	return nil
}

// Pending returns up to limit parked notifications, oldest first. Index entries
// whose payload already expired are pruned.
func (d *NotificationDeadLetter) Pending(ctx context.Context, limit int) ([]*shared.Notification, error) {
	ids, err := d.client.ZRange(ctx, deadLetterIndexKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "notification:" + id
	}
	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read parked notifications: %w", err)
	}

	var (
		notifications []*shared.Notification
		expired       []any
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var n shared.Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			d.logger.Error("Dropping undecodable parked notification", "key", keys[i], "error", err)
			expired = append(expired, ids[i])
			continue
		}
		notifications = append(notifications, &n)
	}

	if len(expired) > 0 {
		if err := d.client.ZRem(ctx, deadLetterIndexKey, expired...).Err(); err != nil && !errors.Is(err, redis.Nil) {
			d.logger.Warn("Failed to prune dead letter index", "error", err)
		}
	}

	return notifications, nil
}

// Remove deletes a notification once it was delivered
func (d *NotificationDeadLetter) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, notificationKey(id))
		pipe.ZRem(ctx, deadLetterIndexKey, id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove parked notification %s: %w", id, err)
	}
	return nil
}
