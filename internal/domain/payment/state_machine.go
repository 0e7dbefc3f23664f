package payment

import (
	"time"

	"github.com/offline-payment-sync/internal/domain/shared"
)

// Event is an input to the status state machine
type Event string

const (
	EventClaim            Event = "claim"
	EventSettled          Event = "settlement_succeeded"
	EventSettlementFailed Event = "settlement_failed"
	EventRelease          Event = "release"
	EventManualRetry      Event = "manual_retry"
)

// Next returns the status reached from current on event. retryCount is the value
// before the event is applied. ok is false when the transition is not defined.
func Next(current shared.TransactionStatus, event Event, retryCount, maxRetries int) (next shared.TransactionStatus, ok bool) {
	switch current {
	case shared.TransactionStatusPending:
		if event == EventClaim {
			return shared.TransactionStatusProcessing, true
		}
	case shared.TransactionStatusProcessing:
		switch event {
		case EventSettled:
			return shared.TransactionStatusCompleted, true
		case EventSettlementFailed:
			if retryCount+1 >= maxRetries {
				return shared.TransactionStatusFailed, true
			}
			return shared.TransactionStatusPending, true
		case EventRelease:
			return shared.TransactionStatusPending, true
		}
	case shared.TransactionStatusFailed:
		if event == EventManualRetry {
			return shared.TransactionStatusPending, true
		}
	}
	// completed has no exits
	return current, false
}

func (t *Transaction) apply(event Event, maxRetries int) (shared.TransactionStatus, error) {
	next, ok := Next(t.Status, event, t.RetryCount, maxRetries)
	if !ok {
		return t.Status, ErrInvalidState{TransactionID: t.ID, From: t.Status, Event: event}
	}
	return next, nil
}

// Claim moves a pending transaction into processing for a single settlement attempt
func (t *Transaction) Claim(now time.Time) error {
	next, err := t.apply(EventClaim, 0)
	if err != nil {
		return err
	}
	t.Status = next
	t.ClaimedAt = &now
	return nil
}

// Complete records a successful settlement
func (t *Transaction) Complete(providerReference string, now time.Time) error {
	next, err := t.apply(EventSettled, 0)
	if err != nil {
		return err
	}
	t.Status = next
	t.SyncedAt = &now
	t.ClaimedAt = nil
	t.ProviderReference = providerReference
	t.LastError = ""
	return nil
}

// Fail records a failed settlement attempt. exhausted is true when the attempt
// moved the transaction into failed.
func (t *Transaction) Fail(reason string, maxRetries int) (exhausted bool, err error) {
	next, err := t.apply(EventSettlementFailed, maxRetries)
	if err != nil {
		return false, err
	}
	t.Status = next
	t.RetryCount++
	t.ClaimedAt = nil
	t.LastError = reason
	return next == shared.TransactionStatusFailed, nil
}

// Release hands a claimed transaction back to pending without consuming an attempt.
// Used when a pass is cancelled mid-attempt and for orphaned claims.
func (t *Transaction) Release() error {
	next, err := t.apply(EventRelease, 0)
	if err != nil {
		return err
	}
	t.Status = next
	t.ClaimedAt = nil
	return nil
}

// ManualRetry is the operator reset of a failed transaction
func (t *Transaction) ManualRetry() error {
	next, err := t.apply(EventManualRetry, 0)
	if err != nil {
		return err
	}
	t.Status = next
	t.RetryCount = 0
	t.LastError = ""
	return nil
}
