package shared

// TransactionStatus defines payment reconciliation states
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}

// NotificationChannel defines where a notification is routed
type NotificationChannel string

const (
	NotificationChannelSMS   NotificationChannel = "sms"   // customer facing
	NotificationChannelAlert NotificationChannel = "alert" // operator facing
)

// SyncTrigger records what started a sync pass
type SyncTrigger string

const (
	SyncTriggerManual               SyncTrigger = "manual"
	SyncTriggerScheduled            SyncTrigger = "scheduled"
	SyncTriggerConnectivityRestored SyncTrigger = "connectivity_restored"
)
