package persistence

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"github.com/offline-payment-sync/internal/config"
)

// BoltDB wraps the embedded store used when the service runs on the payment
// terminal itself and no database server is available.
type BoltDB struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBoltDB opens (or creates) the database file at cfg.Path.
func NewBoltDB(logger *slog.Logger, cfg *config.BoltConfig) (*BoltDB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create bolt directory: %w", err)
		}
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", cfg.Path, err)
	}

	logger.Info("Opened bolt database", "path", cfg.Path)

	return &BoltDB{db: db, logger: logger}, nil
}

func (b *BoltDB) DB() *bolt.DB {
	return b.db
}

func (b *BoltDB) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close bolt database: %w", err)
	}
	b.logger.Info("Closed bolt database")
	return nil
}
