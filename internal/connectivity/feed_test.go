package connectivity

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := NewOracle(30)
	handle := FeedHandler(logger, o)

	observed := Snapshot{Reachable: true, Strength: 55, ObservedAt: time.Now().UTC()}
	value, err := json.Marshal(observed)
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), nil, value))
	assert.True(t, o.CanSettle())
	assert.Equal(t, 55, o.Observe().Strength)

	select {
	case <-o.Restored():
	default:
		t.Fatal("expected restored signal from feed observation")
	}

	assert.Error(t, handle(context.Background(), nil, []byte("{not json")))
}
