package core

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// Invoice represents an invoice domain entity. TotalPaid is mutated only by
// the payment recorder; Version is the monotonic counter compared and swapped
// on every update.
type Invoice struct {
	ID        uuid.UUID
	AgencyID  uuid.UUID
	LeaseID   uuid.UUID
	Amount    int64
	TotalPaid int64
	LateFee   int64
	Status    InvoiceStatus
	Version   int64
	DueDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeriveStatus computes invoice status purely from amount and totalPaid:
// PENDING when nothing is paid, PARTIAL when partially paid, PAID when
// covered. OVERDUE is assigned separately by the overdue sweep and is
// replaced by the derived status as soon as a payment lands.
func DeriveStatus(amount, totalPaid int64) InvoiceStatus {
	switch {
	case totalPaid >= amount:
		return InvoiceStatusPaid
	case totalPaid > 0:
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}

// IsSettled reports whether the invoice needs no further payment.
func (i *Invoice) IsSettled() bool {
	return i.TotalPaid >= i.Amount
}

// LateFee computes a late fee as rateBps basis points of amount, floored by
// integer division and clamped to [minFee, maxFee]. The same clamp applies
// wherever a derived percentage of an amount is computed.
func LateFee(amount, rateBps, minFee, maxFee int64) int64 {
	fee := amount * rateBps / 10000
	if fee < minFee {
		fee = minFee
	}
	if fee > maxFee {
		fee = maxFee
	}
	return fee
}
