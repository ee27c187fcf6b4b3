package output

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentflow/payment-gateway/internal/core"
)

// ApplySuccess bundles everything the repository writes when a provider
// callback reports success: the payment, the transaction flip and the ledger
// entry, all in one transaction.
type ApplySuccess struct {
	TransactionID     uuid.UUID
	ExternalRef       string
	CallbackID        string
	Payment           core.PaymentData
	ResultCode        string
	ResultDescription string
	Metadata          map[string]interface{}
}

// ApplyFailure bundles the failed-callback write: transaction flip to FAILED
// plus the ledger entry.
type ApplyFailure struct {
	TransactionID     uuid.UUID
	ExternalRef       string
	CallbackID        string
	ResultCode        string
	ResultDescription string
	Metadata          map[string]interface{}
}

// LeaseActivity summarizes a lease's payment history for score recompute.
type LeaseActivity struct {
	Payments     int64
	Transactions int64
	TotalPaid    int64
}

// PaymentRepository is an output port (secondary port) for payment data access.
// Secondary adapters (database implementations) implement this. All write
// methods run inside a single transaction and honor the caller's context
// deadline.
type PaymentRepository interface {
	// CreateInvoice creates a new invoice at billing time.
	CreateInvoice(ctx context.Context, invoice *core.Invoice) error

	// GetInvoice retrieves an invoice by its ID.
	GetInvoice(ctx context.Context, id uuid.UUID) (*core.Invoice, error)

	// GetPayment retrieves a payment by its ID.
	GetPayment(ctx context.Context, id uuid.UUID) (*core.Payment, error)

	// RecordPayment atomically inserts a payment and, when the payment is
	// linked to an invoice, updates the invoice's paid total and status via
	// a version compare-and-swap. Duplicate (agency, reference) pairs abort
	// with a DUPLICATE_PAYMENT error; a lost CAS aborts with
	// RETRYABLE_CONFLICT.
	RecordPayment(ctx context.Context, data core.PaymentData) (*core.Payment, error)

	// CreateTransaction records a new external payment attempt in PENDING.
	CreateTransaction(ctx context.Context, txn *core.ExternalTransaction) error

	// GetTransactionByRef retrieves an external transaction by provider ref.
	GetTransactionByRef(ctx context.Context, externalRef string) (*core.ExternalTransaction, error)

	// ClaimTransaction conditionally flips PENDING->PROCESSING and reports
	// whether this caller won the claim. With allowReclaim a PROCESSING row
	// may be claimed again (used by retries of the same logical callback).
	ClaimTransaction(ctx context.Context, id uuid.UUID, allowReclaim bool) (bool, error)

	// ApplyCallbackSuccess writes the payment, moves the transaction to
	// SUCCESS and appends the callback record in one transaction.
	ApplyCallbackSuccess(ctx context.Context, apply ApplySuccess) (*core.Payment, error)

	// ApplyCallbackFailure moves the transaction to FAILED and appends the
	// callback record in one transaction.
	ApplyCallbackFailure(ctx context.Context, apply ApplyFailure) error

	// MarkOverdue flips past-due PENDING/PARTIAL invoices to OVERDUE and
	// assesses the clamped late fee, returning how many rows changed.
	MarkOverdue(ctx context.Context, now time.Time, rateBps, minFee, maxFee int64) (int64, error)

	// LeaseActivity summarizes payments and attempts for one lease.
	LeaseActivity(ctx context.Context, leaseID uuid.UUID) (*LeaseActivity, error)
}

// LedgerRepository is the read side of the idempotency ledger. Writes happen
// only inside ApplyCallbackSuccess/ApplyCallbackFailure transactions.
type LedgerRepository interface {
	// IsCallbackProcessed reports whether a ledger entry exists for the pair.
	IsCallbackProcessed(ctx context.Context, externalRef, callbackID string) (bool, error)
}
