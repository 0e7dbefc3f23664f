package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/domain/shared"
	"golang.org/x/text/currency"
)

const maxDescriptionLength = 500

// Transaction represents a payment intent tracked from intake to its terminal outcome
type Transaction struct {
	ID          uuid.UUID                `json:"id"`
	Amount      int64                    `json:"amount"` // Stored in cents/minor units
	Currency    string                   `json:"currency"`
	MerchantID  string                   `json:"merchant_id"`
	CustomerID  string                   `json:"customer_id"`
	Description string                   `json:"description,omitempty"`
	Status      shared.TransactionStatus `json:"status"`
	RetryCount  int                      `json:"retry_count"`
	CreatedAt   time.Time                `json:"created_at"`
	SyncedAt    *time.Time               `json:"synced_at,omitempty"`

	// ClaimedAt is set while the record is held in processing by a sync attempt.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	// ProviderReference is the processor's id for a settled charge.
	ProviderReference string `json:"provider_reference,omitempty"`
	// LastError keeps the reason of the most recent failed attempt for operators.
	LastError string `json:"last_error,omitempty"`
}

// NewTransaction validates the candidate fields and creates a pending transaction
func NewTransaction(amount int64, currency, merchantID, customerID, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ValidationError{Field: "amount", Reason: "must be a positive number of minor units"}
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !isCurrencyCode(currency) {
		return nil, ValidationError{Field: "currency", Reason: "must be a 3-letter code"}
	}

	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return nil, ValidationError{Field: "merchant_id", Reason: "cannot be empty"}
	}

	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ValidationError{Field: "customer_id", Reason: "cannot be empty"}
	}

	if len(description) > maxDescriptionLength {
		return nil, ValidationError{Field: "description", Reason: fmt.Sprintf("cannot exceed %d characters", maxDescriptionLength)}
	}

	return &Transaction{
		ID:          uuid.New(),
		Amount:      amount,
		Currency:    currency,
		MerchantID:  merchantID,
		CustomerID:  customerID,
		Description: description,
		Status:      shared.TransactionStatusPending,
		RetryCount:  0,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// SettlementDescription returns the description sent to the processor
func (t *Transaction) SettlementDescription() string {
	if t.Description != "" {
		return t.Description
	}
	return "Payment to " + t.MerchantID
}

// FormattedAmount renders the amount in major units using the currency's
// ISO 4217 minor digits, e.g. "10.00 USD", "1000 JPY" or "1.000 KWD".
// Codes unknown to the currency tables are rendered with two digits.
func (t *Transaction) FormattedAmount() string {
	digits := 2
	if unit, err := currency.ParseISO(t.Currency); err == nil {
		digits, _ = currency.Standard.Rounding(unit)
	}
	if digits == 0 {
		return fmt.Sprintf("%d %s", t.Amount, t.Currency)
	}

	scale := int64(1)
	for i := 0; i < digits; i++ {
		scale *= 10
	}
	return fmt.Sprintf("%d.%0*d %s", t.Amount/scale, digits, t.Amount%scale, t.Currency)
}

// IsEligibleForSync reports whether a sync pass may attempt this record
func (t *Transaction) IsEligibleForSync(maxRetries int) bool {
	return t.Status == shared.TransactionStatusPending && t.RetryCount < maxRetries
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
