// Package components assembles the collaborators both commands share: the
// transaction store, the audit log, the notification dispatcher, the settler
// and the sync engine. Optional backends are only dialled when enabled.
package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/offline-payment-sync/internal/config"
	"github.com/offline-payment-sync/internal/data/boltdb"
	"github.com/offline-payment-sync/internal/data/mongo"
	"github.com/offline-payment-sync/internal/data/postgres"
	"github.com/offline-payment-sync/internal/data/redis"
	"github.com/offline-payment-sync/internal/domain/audit"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/notification"
	"github.com/offline-payment-sync/internal/platform/messaging/producers"
	"github.com/offline-payment-sync/internal/platform/persistence"
	"github.com/offline-payment-sync/internal/settlement"
	"github.com/offline-payment-sync/internal/sync_engine"
)

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Components holds the wired collaborators. Close releases them in reverse
// order of creation.
type Components struct {
	Store    payment.Repository
	Audit    audit.Repository // nil when MONGO_ENABLED is false
	Notifier *notification.Dispatcher
	Settler  settlement.Settler
	Engine   *sync_engine.Engine

	logger  *slog.Logger
	closers []closer
}

// CreateComponents dials every enabled backend. On error everything opened so
// far is closed again.
func CreateComponents(ctx context.Context, logger *slog.Logger, cfg *config.Config) (_ *Components, err error) {
	c := &Components{logger: logger}
	defer func() {
		if err != nil {
			c.Close(context.WithoutCancel(ctx))
		}
	}()

	if c.Store, err = c.openStore(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.MongoDB.Enabled {
		mongoDB, err := persistence.NewMongoDB(ctx, logger, &cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		c.addCloser("mongodb", mongoDB.Close)
		c.Audit = mongo.NewAuditRepository(logger, mongoDB.Database())
	} else {
		logger.Info("Audit log disabled, sync pass reports are only logged")
	}

	if c.Notifier, err = c.createNotifier(ctx, cfg); err != nil {
		return nil, err
	}

	c.Settler = settlement.NewSettler(logger.With("component", "settlement"), &cfg.Settlement)

	engine, err := sync_engine.NewEngine(cfg, c.Store, c.Settler, c.Notifier, c.Audit, logger.With("component", "sync_engine"))
	if err != nil {
		return nil, err
	}
	c.Engine = engine
	c.addCloser("sync worker pool", func(context.Context) error {
		engine.Shutdown()
		return nil
	})

	logger.Info("Components created",
		"store", cfg.Store.Driver,
		"audit", c.Audit != nil,
		"notifications", cfg.Notification.Enabled,
		"dead_letter", cfg.Redis.Enabled,
		"settlement_mode", cfg.Settlement.Mode,
		"pool_size", cfg.WorkerPool.Size,
	)
	return c, nil
}

func (c *Components) openStore(ctx context.Context, cfg *config.Config) (payment.Repository, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverBolt:
		boltDB, err := persistence.NewBoltDB(c.logger, &cfg.Bolt)
		if err != nil {
			return nil, err
		}
		c.addCloser("bolt", func(context.Context) error { return boltDB.Close() })
		return boltdb.NewPaymentRepository(c.logger, boltDB)

	case config.StoreDriverPostgres:
		if cfg.Postgres.MigrationsPath != "" {
			if err := persistence.RunMigrations(c.logger, cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
				return nil, err
			}
		}
		postgresDB, err := persistence.NewPostgresDB(ctx, c.logger, &cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		c.addCloser("postgres", func(context.Context) error {
			postgresDB.Close()
			return nil
		})
		return postgres.NewPaymentRepository(c.logger, postgresDB), nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func (c *Components) createNotifier(ctx context.Context, cfg *config.Config) (*notification.Dispatcher, error) {
	var publisher notification.Publisher
	if cfg.Notification.Enabled {
		producer, err := producers.NewNotificationProducer(c.logger, &cfg.Kafka, &cfg.Notification)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notification producer: %w", err)
		}
		c.addCloser("notification producer", func(context.Context) error { return producer.Close() })
		publisher = producer
	} else {
		publisher = notification.NewLogPublisher(c.logger.With("component", "notifications"))
	}

	var deadLetter notification.DeadLetter
	if cfg.Redis.Enabled {
		client, err := persistence.NewRedisClient(ctx, c.logger, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		c.addCloser("redis", func(context.Context) error { return client.Close() })
		deadLetter = redis.NewNotificationDeadLetter(c.logger, client, cfg.Redis.KeyTTL)
	}

	return notification.NewDispatcher(c.logger.With("component", "notifications"), publisher, deadLetter), nil
}

func (c *Components) addCloser(name string, fn func(ctx context.Context) error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// Close releases everything CreateComponents opened. Errors are logged.
func (c *Components) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(ctx); err != nil {
			c.logger.Error("Error closing component", "component", cl.name, "error", err)
		}
	}
	c.closers = nil
}
