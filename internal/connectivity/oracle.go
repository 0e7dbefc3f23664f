// Package connectivity tracks whether the payment processor is currently reachable.
//
// The oracle keeps a single process-wide snapshot. The last observation wins and
// no history is kept; callers that need an audit trail record observations
// themselves.
package connectivity

import (
	"sync"
	"time"
)

// FullStrength is assumed when an observation carries no link quality measurement.
const FullStrength = 100

// Snapshot is the current reachability belief
type Snapshot struct {
	Reachable  bool      `json:"reachable"`
	Strength   int       `json:"strength"`
	ObservedAt time.Time `json:"observed_at"`
}

// Oracle answers "can we currently reach the processor"
type Oracle struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	threshold int
	restored  chan struct{}
	now       func() time.Time
}

// NewOracle starts unreachable until the first observation arrives.
// strengthThreshold is the minimum link strength at which CanSettle reports true.
func NewOracle(strengthThreshold int) *Oracle {
	return &Oracle{
		threshold: strengthThreshold,
		restored:  make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Observe returns the current snapshot
func (o *Oracle) Observe() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// SetReachable records an observation at full strength. It reports whether the
// observation was a false to true edge.
func (o *Oracle) SetReachable(reachable bool) bool {
	return o.Update(reachable, FullStrength)
}

// Update records an observation with a measured link strength (0-100). On a
// false to true edge a restored signal is queued for Restored listeners.
func (o *Oracle) Update(reachable bool, strength int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set(Snapshot{Reachable: reachable, Strength: strength, ObservedAt: o.now().UTC()})
}

// Apply records an observation made by another process, keeping its timestamp.
// An observation older than the current snapshot is dropped and applied is false.
func (o *Oracle) Apply(s Snapshot) (restored, applied bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s.ObservedAt.Before(o.snapshot.ObservedAt) {
		return false, false
	}
	return o.set(s), true
}

// set must be called with mu held
func (o *Oracle) set(s Snapshot) bool {
	s.Strength = clampStrength(s.Strength)
	wasReachable := o.snapshot.Reachable
	o.snapshot = s

	restored := !wasReachable && s.Reachable
	if restored {
		// Coalesce: one pending signal is enough to trigger a pass.
		select {
		case o.restored <- struct{}{}:
		default:
		}
	}
	return restored
}

// CanSettle reports whether immediate settlement should be attempted: the
// processor is reachable and the link is at or above the configured threshold.
func (o *Oracle) CanSettle() bool {
	s := o.Observe()
	return s.Reachable && s.Strength >= o.threshold
}

// Restored delivers a value after connectivity comes back. Signals that arrive
// while one is still pending are merged.
func (o *Oracle) Restored() <-chan struct{} {
	return o.restored
}

// Threshold returns the configured strength threshold
func (o *Oracle) Threshold() int {
	return o.threshold
}

func clampStrength(s int) int {
	if s < 0 {
		return 0
	}
	if s > FullStrength {
		return FullStrength
	}
	return s
}
