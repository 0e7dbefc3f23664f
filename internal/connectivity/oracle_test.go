package connectivity

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOracle_StartsUnreachable(t *testing.T) {
	o := NewOracle(30)

	s := o.Observe()
	assert.False(t, s.Reachable)
	assert.True(t, s.ObservedAt.IsZero())
	assert.False(t, o.CanSettle())
}

func TestOracle_SetReachableEmitsOnRisingEdgeOnly(t *testing.T) {
	o := NewOracle(30)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	assert.True(t, o.SetReachable(true), "false to true is an edge")
	assert.Equal(t, Snapshot{Reachable: true, Strength: FullStrength, ObservedAt: fixed}, o.Observe())

	select {
	case <-o.Restored():
	default:
		t.Fatal("expected restored signal")
	}

	assert.False(t, o.SetReachable(true), "true to true is not an edge")
	select {
	case <-o.Restored():
		t.Fatal("unexpected restored signal")
	default:
	}

	assert.False(t, o.SetReachable(false))
	assert.False(t, o.Observe().Reachable)
	assert.True(t, o.SetReachable(true))
}

func TestOracle_RestoredSignalsCoalesce(t *testing.T) {
	o := NewOracle(0)

	for i := 0; i < 3; i++ {
		o.SetReachable(true)
		o.SetReachable(false)
	}

	<-o.Restored()
	select {
	case <-o.Restored():
		t.Fatal("signals should have been merged")
	default:
	}
}

func TestOracle_CanSettleHonoursThreshold(t *testing.T) {
	tests := []struct {
		name      string
		reachable bool
		strength  int
		want      bool
	}{
		{"ReachableStrong", true, 80, true},
		{"ReachableAtThreshold", true, 30, true},
		{"ReachableWeak", true, 29, false},
		{"Unreachable", false, 100, false},
		{"NegativeClampedToZero", true, -10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOracle(30)
			o.Update(tt.reachable, tt.strength)
			assert.Equal(t, tt.want, o.CanSettle())
		})
	}
}

func TestOracle_StrengthIsClamped(t *testing.T) {
	o := NewOracle(30)
	o.Update(true, 250)
	assert.Equal(t, FullStrength, o.Observe().Strength)
}

func TestOracle_ConcurrentUpdates(t *testing.T) {
	o := NewOracle(30)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			o.Update(i%2 == 0, i)
		}(i)
		go func() {
			defer wg.Done()
			_ = o.CanSettle()
		}()
	}
	wg.Wait()

	s := o.Observe()
	require.False(t, s.ObservedAt.IsZero())
}

func TestOracle_ApplyKeepsLastObservation(t *testing.T) {
	o := NewOracle(30)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	restored, applied := o.Apply(Snapshot{Reachable: true, Strength: 70, ObservedAt: base})
	assert.True(t, restored)
	assert.True(t, applied)

	restored, applied = o.Apply(Snapshot{Reachable: false, ObservedAt: base.Add(-time.Second)})
	assert.False(t, restored)
	assert.False(t, applied, "older observations are dropped")
	assert.True(t, o.Observe().Reachable)

	_, applied = o.Apply(Snapshot{Reachable: false, ObservedAt: base.Add(time.Second)})
	assert.True(t, applied)
	assert.False(t, o.CanSettle())
}
