package payment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/domain/shared"
)

// ValidationError indicates a missing or malformed field on a candidate transaction
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrTransactionNotFound indicates an unknown transaction id
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// Is matches any ErrTransactionNotFound when the target carries no id.
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// ErrInvalidState indicates a transition the state machine does not define
type ErrInvalidState struct {
	TransactionID uuid.UUID
	From          shared.TransactionStatus
	Event         Event
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("transaction %s: %s not allowed from status %s", e.TransactionID, e.Event, e.From)
}

// Is matches any ErrInvalidState when the target is the zero value.
func (e ErrInvalidState) Is(target error) bool {
	t, ok := target.(ErrInvalidState)
	if !ok {
		return false
	}
	return t == ErrInvalidState{} || t == e
}

// ErrStatusConflict indicates the stored status no longer matches the expected one.
// For a claim this means another pass already owns the record.
type ErrStatusConflict struct {
	TransactionID uuid.UUID
	Expected      shared.TransactionStatus
}

func (e ErrStatusConflict) Error() string {
	return fmt.Sprintf("transaction %s is no longer %s", e.TransactionID, e.Expected)
}

// Is matches any ErrStatusConflict when the target carries no id.
func (e ErrStatusConflict) Is(target error) bool {
	t, ok := target.(ErrStatusConflict)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// SettlementFailure indicates the remote processor rejected the charge or did not answer in time
type SettlementFailure struct {
	Reason string
	Err    error
}

func (e *SettlementFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("settlement failed: %s: %v", e.Reason, e.Err)
	}
	return "settlement failed: " + e.Reason
}

func (e *SettlementFailure) Unwrap() error {
	return e.Err
}

// StoreFailure indicates the persistence layer could not complete an operation
type StoreFailure struct {
	Op  string
	Err error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreFailure) Unwrap() error {
	return e.Err
}
