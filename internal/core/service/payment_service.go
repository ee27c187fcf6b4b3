package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/core/lock"
	"github.com/rentflow/payment-gateway/internal/port/input"
	"github.com/rentflow/payment-gateway/internal/port/output"
)

// PaymentServiceImpl implements the PaymentService input port by composing
// the recorder, the callback processor and the batch orchestrator over one
// shared lock manager.
type PaymentServiceImpl struct {
	repo      output.PaymentRepository
	recorder  *Recorder
	processor *CallbackProcessor
	batch     *BatchOrchestrator
	locks     *lock.Manager
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	repo output.PaymentRepository,
	recorder *Recorder,
	processor *CallbackProcessor,
	batch *BatchOrchestrator,
	locks *lock.Manager,
) input.PaymentService {
	return &PaymentServiceImpl{
		repo:      repo,
		recorder:  recorder,
		processor: processor,
		batch:     batch,
		locks:     locks,
	}
}

func toPaymentData(req input.PaymentRequest) core.PaymentData {
	return core.PaymentData{
		InvoiceID:       req.InvoiceID,
		LeaseID:         req.LeaseID,
		AgencyID:        req.AgencyID,
		Amount:          req.Amount,
		Method:          req.Method,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}
}

func toPaymentResponse(p *core.Payment) *input.PaymentResponse {
	return &input.PaymentResponse{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		LeaseID:         p.LeaseID,
		AgencyID:        p.AgencyID,
		Amount:          p.Amount,
		Method:          p.Method,
		ReferenceNumber: p.ReferenceNumber,
		PaidAt:          p.PaidAt,
		CreatedAt:       p.CreatedAt,
	}
}

// ProcessPayment records one direct payment submission
func (s *PaymentServiceImpl) ProcessPayment(ctx context.Context, req input.PaymentRequest) (*input.PaymentResponse, error) {
	payment, err := s.recorder.ProcessPayment(ctx, toPaymentData(req))
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

// ProcessCallback applies one provider callback
func (s *PaymentServiceImpl) ProcessCallback(ctx context.Context, externalRef string, payload []byte) (*input.CallbackResult, error) {
	return s.processor.ProcessCallback(ctx, externalRef, payload)
}

// ProcessBatch submits many payments with bounded concurrency
func (s *PaymentServiceImpl) ProcessBatch(ctx context.Context, reqs []input.PaymentRequest, opts input.BatchOptions) (*input.BatchResult, error) {
	items := make([]core.PaymentData, len(reqs))
	for i, req := range reqs {
		items[i] = toPaymentData(req)
	}
	return s.batch.ProcessBatch(ctx, items, opts.BatchSize), nil
}

// ListActiveLocks exposes held lock keys for diagnostics
func (s *PaymentServiceImpl) ListActiveLocks() []lock.Info {
	return s.locks.ListActive()
}

// CreateInvoice creates an invoice at billing time
func (s *PaymentServiceImpl) CreateInvoice(ctx context.Context, req input.InvoiceRequest) (*input.InvoiceResponse, error) {
	if req.Amount <= 0 {
		return nil, core.NewError(core.KindValidation, "amount must be greater than zero")
	}
	if req.LeaseID == uuid.Nil {
		return nil, core.NewError(core.KindValidation, "lease id is required")
	}
	if req.AgencyID == uuid.Nil {
		return nil, core.NewError(core.KindValidation, "agency id is required")
	}

	invoice := &core.Invoice{
		AgencyID: req.AgencyID,
		LeaseID:  req.LeaseID,
		Amount:   req.Amount,
		Status:   core.DeriveStatus(req.Amount, 0),
		DueDate:  req.DueDate,
	}
	if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// GetInvoice retrieves an invoice by ID
func (s *PaymentServiceImpl) GetInvoice(ctx context.Context, id uuid.UUID) (*input.InvoiceResponse, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(invoice), nil
}

// GetPayment retrieves a payment by ID
func (s *PaymentServiceImpl) GetPayment(ctx context.Context, id uuid.UUID) (*input.PaymentResponse, error) {
	payment, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	return toPaymentResponse(payment), nil
}

// InitiateTransaction registers a pending external payment attempt
func (s *PaymentServiceImpl) InitiateTransaction(ctx context.Context, req input.TransactionRequest) (*input.TransactionResponse, error) {
	if req.ExternalRef == "" {
		return nil, core.NewError(core.KindValidation, "external reference is required")
	}
	if req.Amount <= 0 {
		return nil, core.NewError(core.KindValidation, "amount must be greater than zero")
	}
	if req.LeaseID == uuid.Nil {
		return nil, core.NewError(core.KindValidation, "lease id is required")
	}
	if req.AgencyID == uuid.Nil {
		return nil, core.NewError(core.KindValidation, "agency id is required")
	}

	txn := &core.ExternalTransaction{
		ExternalRef: req.ExternalRef,
		AgencyID:    req.AgencyID,
		LeaseID:     req.LeaseID,
		InvoiceID:   req.InvoiceID,
		Amount:      req.Amount,
	}
	if err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return &input.TransactionResponse{
		ID:          txn.ID,
		ExternalRef: txn.ExternalRef,
		Status:      txn.Status,
		Amount:      txn.Amount,
		CreatedAt:   txn.CreatedAt,
	}, nil
}

func toInvoiceResponse(i *core.Invoice) *input.InvoiceResponse {
	return &input.InvoiceResponse{
		ID:        i.ID,
		AgencyID:  i.AgencyID,
		LeaseID:   i.LeaseID,
		Amount:    i.Amount,
		TotalPaid: i.TotalPaid,
		LateFee:   i.LateFee,
		Status:    i.Status,
		Version:   i.Version,
		DueDate:   i.DueDate,
		CreatedAt: i.CreatedAt,
	}
}
