package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payment represents a payment domain entity. Amounts are integers in minor
// currency units.
type Payment struct {
	ID              uuid.UUID
	InvoiceID       *uuid.UUID
	LeaseID         uuid.UUID
	AgencyID        uuid.UUID
	Amount          int64
	Method          string
	ReferenceNumber string
	PaidAt          time.Time
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PaymentData carries everything the recorder needs to create one payment.
// ReferenceNumber is optional; when present it is the external dedupe key
// scoped to the agency.
type PaymentData struct {
	InvoiceID       *uuid.UUID
	LeaseID         uuid.UUID
	AgencyID        uuid.UUID
	Amount          int64
	Method          string
	ReferenceNumber string
	PaidAt          time.Time
	Notes           string
}

// Validate checks the structural requirements of a payment submission.
func (d PaymentData) Validate() error {
	if d.Amount <= 0 {
		return NewError(KindValidation, "amount must be greater than zero")
	}
	if d.LeaseID == uuid.Nil {
		return NewError(KindValidation, "lease id is required")
	}
	if d.AgencyID == uuid.Nil {
		return NewError(KindValidation, "agency id is required")
	}
	if d.Method == "" {
		return NewError(KindValidation, "payment method is required")
	}
	return nil
}

// LockKey derives the serialization key for a payment: all mutations against
// the same invoice (or, for invoice-less payments, the same lease) contend on
// the same key.
func (d PaymentData) LockKey() string {
	if d.InvoiceID != nil {
		return fmt.Sprintf("invoice:%s", d.InvoiceID)
	}
	return fmt.Sprintf("lease:%s", d.LeaseID)
}
