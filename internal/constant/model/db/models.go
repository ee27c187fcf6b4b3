package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// TransactionStatus represents the status of an external payment attempt
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusSuccess    TransactionStatus = "SUCCESS"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// Invoice represents an invoice entity in the database.
// Amounts are integers in minor currency units. Version is a monotonic
// counter used for compare-and-swap updates; it is only ever incremented
// inside the payment recorder's transaction.
type Invoice struct {
	ID        uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	AgencyID  uuid.UUID     `gorm:"type:uuid;not null;index" json:"agency_id"`
	LeaseID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"lease_id"`
	Amount    int64         `gorm:"not null" json:"amount"`
	TotalPaid int64         `gorm:"not null;default:0" json:"total_paid"`
	LateFee   int64         `gorm:"not null;default:0" json:"late_fee"`
	Status    InvoiceStatus `gorm:"type:varchar(20);not null" json:"status"`
	Version   int64         `gorm:"not null;default:0" json:"version"`
	DueDate   *time.Time    `gorm:"index" json:"due_date"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	now := time.Now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	if i.UpdatedAt.IsZero() {
		i.UpdatedAt = now
	}
	return nil
}

// Payment represents money received against a lease, optionally linked to an
// invoice. ReferenceNumber is the external dedupe key: the composite unique
// index makes a replayed reference fail at insert time even if two writers
// race past the pre-insert check.
type Payment struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID       *uuid.UUID `gorm:"type:uuid;index" json:"invoice_id"`
	LeaseID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"lease_id"`
	AgencyID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_agency_reference" json:"agency_id"`
	Amount          int64      `gorm:"not null" json:"amount"`
	Method          string     `gorm:"type:varchar(40);not null" json:"method"`
	ReferenceNumber *string    `gorm:"type:varchar(255);uniqueIndex:idx_agency_reference" json:"reference_number"`
	PaidAt          time.Time  `gorm:"not null" json:"paid_at"`
	Notes           string     `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = now
	}
	return nil
}

// ExternalTransaction represents a mobile-money or card payment attempt.
// SUCCESS and FAILED are terminal; the PENDING->PROCESSING flip is the claim
// taken by the callback processor before any side effect.
type ExternalTransaction struct {
	ID                uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	ExternalRef       string            `gorm:"type:varchar(255);not null;uniqueIndex" json:"external_ref"`
	AgencyID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"agency_id"`
	LeaseID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"lease_id"`
	InvoiceID         *uuid.UUID        `gorm:"type:uuid;index" json:"invoice_id"`
	Amount            int64             `gorm:"not null" json:"amount"`
	Status            TransactionStatus `gorm:"type:varchar(20);not null" json:"status"`
	ResultCode        string            `gorm:"type:varchar(40)" json:"result_code"`
	ResultDescription string            `gorm:"type:varchar(255)" json:"result_description"`
	Metadata          datatypes.JSON    `json:"metadata"`
	CompletedAt       *time.Time        `json:"completed_at"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ExternalTransaction) TableName() string {
	return "external_transactions"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (t *ExternalTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	return nil
}

// CallbackRecord is the idempotency ledger. Rows are append-only and never
// mutated; the unique (external_ref, callback_id) index is what makes two
// racing identical deliveries collapse to one effect.
type CallbackRecord struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CallbackID      string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_ref_callback" json:"callback_id"`
	ExternalRef     string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_ref_callback" json:"external_ref"`
	OutcomeType     string         `gorm:"type:varchar(20);not null" json:"outcome_type"`
	Processed       bool           `gorm:"not null;default:true" json:"processed"`
	LinkedPaymentID *uuid.UUID     `gorm:"type:uuid" json:"linked_payment_id"`
	Metadata        datatypes.JSON `json:"metadata"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CallbackRecord) TableName() string {
	return "callback_records"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (r *CallbackRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}
