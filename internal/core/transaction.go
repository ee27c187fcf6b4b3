package core

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the status of an external payment attempt
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusSuccess    TransactionStatus = "SUCCESS"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// ExternalTransaction represents a mobile-money or card payment attempt
// initiated against a lease, resolved later by a provider callback.
type ExternalTransaction struct {
	ID                uuid.UUID
	ExternalRef       string
	AgencyID          uuid.UUID
	LeaseID           uuid.UUID
	InvoiceID         *uuid.UUID
	Amount            int64
	Status            TransactionStatus
	ResultCode        string
	ResultDescription string
	Metadata          map[string]interface{}
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminal checks if the transaction is in a terminal state
func (t *ExternalTransaction) IsTerminal() bool {
	return t.Status.Terminal()
}

// Terminal reports whether a status admits no further transitions.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

var validTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:    {TransactionStatusProcessing, TransactionStatusFailed},
	TransactionStatusProcessing: {TransactionStatusSuccess, TransactionStatusFailed},
	// No transitions allowed from terminal states
	TransactionStatusSuccess: {},
	TransactionStatusFailed:  {},
}

// ValidTransition checks if a status transition is allowed
func ValidTransition(from, to TransactionStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
