package input

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/core/lock"
)

// PaymentService is an input port (primary port) for payment operations
// Primary adapters (HTTP handlers) will use this
type PaymentService interface {
	// ProcessPayment records one payment submission (manual entry or batch
	// item) against its invoice/lease.
	ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)

	// ProcessCallback applies one provider callback. Safe to invoke any
	// number of times with the same payload; always returns a definitive
	// outcome synchronously.
	ProcessCallback(ctx context.Context, externalRef string, payload []byte) (*CallbackResult, error)

	// ProcessBatch submits many payments with bounded concurrency and
	// partial-failure semantics.
	ProcessBatch(ctx context.Context, reqs []PaymentRequest, opts BatchOptions) (*BatchResult, error)

	// ListActiveLocks exposes held lock keys for diagnostics.
	ListActiveLocks() []lock.Info

	// CreateInvoice creates an invoice at billing time.
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResponse, error)

	// GetInvoice retrieves an invoice by ID.
	GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error)

	// GetPayment retrieves a payment by ID.
	GetPayment(ctx context.Context, id uuid.UUID) (*PaymentResponse, error)

	// InitiateTransaction registers a pending external payment attempt that
	// a later provider callback resolves.
	InitiateTransaction(ctx context.Context, req TransactionRequest) (*TransactionResponse, error)
}

// PaymentRequest represents the request to record a payment
type PaymentRequest struct {
	InvoiceID       *uuid.UUID
	LeaseID         uuid.UUID
	AgencyID        uuid.UUID
	Amount          int64
	Method          string
	ReferenceNumber string
	Notes           string
}

// PaymentResponse represents the response for a payment
type PaymentResponse struct {
	ID              uuid.UUID
	InvoiceID       *uuid.UUID
	LeaseID         uuid.UUID
	AgencyID        uuid.UUID
	Amount          int64
	Method          string
	ReferenceNumber string
	PaidAt          time.Time
	CreatedAt       time.Time
}

// CallbackResult is the synchronous acknowledgment of a provider callback.
type CallbackResult struct {
	Success       bool
	Duplicate     bool
	Message       string
	ReceiptNumber string
}

// BatchOptions bounds batch concurrency.
type BatchOptions struct {
	BatchSize int
}

// BatchItem identifies one successfully processed batch entry by its
// position in the submitted list.
type BatchItem struct {
	Index     int
	PaymentID uuid.UUID
}

// BatchFailure identifies one failed batch entry and why it failed.
type BatchFailure struct {
	Index   int
	Message string
}

// BatchSummary aggregates a batch outcome.
type BatchSummary struct {
	Total       int
	Successful  int
	Failed      int
	SuccessRate float64
}

// BatchResult accumulates per-item outcomes keyed by original index.
type BatchResult struct {
	Successful []BatchItem
	Failed     []BatchFailure
	Summary    BatchSummary
}

// InvoiceRequest represents the request to create an invoice
type InvoiceRequest struct {
	AgencyID uuid.UUID
	LeaseID  uuid.UUID
	Amount   int64
	DueDate  *time.Time
}

// InvoiceResponse represents the response for an invoice
type InvoiceResponse struct {
	ID        uuid.UUID
	AgencyID  uuid.UUID
	LeaseID   uuid.UUID
	Amount    int64
	TotalPaid int64
	LateFee   int64
	Status    core.InvoiceStatus
	Version   int64
	DueDate   *time.Time
	CreatedAt time.Time
}

// TransactionRequest represents the request to initiate an external payment
type TransactionRequest struct {
	ExternalRef string
	AgencyID    uuid.UUID
	LeaseID     uuid.UUID
	InvoiceID   *uuid.UUID
	Amount      int64
}

// TransactionResponse represents the response for an external payment attempt
type TransactionResponse struct {
	ID          uuid.UUID
	ExternalRef string
	Status      core.TransactionStatus
	Amount      int64
	CreatedAt   time.Time
}
