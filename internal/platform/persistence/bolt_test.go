package persistence

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offline-payment-sync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoltDB(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	path := filepath.Join(t.TempDir(), "nested", "payments.db")

	db, err := NewBoltDB(logger, &config.BoltConfig{Path: path, OpenTimeout: time.Second})
	require.NoError(t, err)
	require.NotNil(t, db.DB())

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist")

	assert.NoError(t, db.Close())
}
