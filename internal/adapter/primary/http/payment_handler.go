package http

import (
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/port/input"
)

// PaymentHandler is a primary adapter (HTTP handler)
type PaymentHandler struct {
	paymentService input.PaymentService
	validate       *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService input.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		validate:       validator.New(),
	}
}

// CreatePaymentRequest represents the HTTP request to record a payment
type CreatePaymentRequest struct {
	InvoiceID       string `json:"invoice_id" validate:"omitempty,uuid"`
	LeaseID         string `json:"lease_id" validate:"required,uuid"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	Method          string `json:"method" validate:"required"`
	ReferenceNumber string `json:"reference_number"`
	Notes           string `json:"notes"`
}

// PaymentResponse represents the HTTP response for a payment
type PaymentResponse struct {
	ID              string `json:"id"`
	InvoiceID       string `json:"invoice_id,omitempty"`
	LeaseID         string `json:"lease_id"`
	Amount          int64  `json:"amount"`
	Method          string `json:"method"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	PaidAt          string `json:"paid_at"`
	CreatedAt       string `json:"created_at"`
}

// CreateInvoiceRequest represents the HTTP request to create an invoice
type CreateInvoiceRequest struct {
	LeaseID string `json:"lease_id" validate:"required,uuid"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	DueDate string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// InvoiceResponse represents the HTTP response for an invoice
type InvoiceResponse struct {
	ID        string `json:"id"`
	LeaseID   string `json:"lease_id"`
	Amount    int64  `json:"amount"`
	TotalPaid int64  `json:"total_paid"`
	LateFee   int64  `json:"late_fee"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
	DueDate   string `json:"due_date,omitempty"`
	CreatedAt string `json:"created_at"`
}

// InitiateTransactionRequest represents the HTTP request to start an
// external payment attempt
type InitiateTransactionRequest struct {
	ExternalRef string `json:"external_ref" validate:"required"`
	LeaseID     string `json:"lease_id" validate:"required,uuid"`
	InvoiceID   string `json:"invoice_id" validate:"omitempty,uuid"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

// BatchRequest represents the HTTP request to submit many payments
type BatchRequest struct {
	Payments  []CreatePaymentRequest `json:"payments" validate:"required,min=1,dive"`
	BatchSize int                    `json:"batch_size" validate:"omitempty,gt=0"`
}

// CallbackResponse is the synchronous acknowledgment of a provider callback
type CallbackResponse struct {
	Success       bool   `json:"success"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	Message       string `json:"message"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
}

// errorStatus maps the error taxonomy onto HTTP statuses.
func errorStatus(err error) int {
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindDuplicatePayment, core.KindLockBusy, core.KindRetryableConflict:
		return http.StatusConflict
	case core.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), map[string]string{
		"error": err.Error(),
	})
}

// CreatePayment handles direct payment submission
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var req CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	serviceReq, err := h.toServiceRequest(c, req)
	if err != nil {
		return errorJSON(c, err)
	}

	response, err := h.paymentService.ProcessPayment(c.Request().Context(), serviceReq)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, toHTTPPayment(response))
}

func (h *PaymentHandler) toServiceRequest(c echo.Context, req CreatePaymentRequest) (input.PaymentRequest, error) {
	leaseID, err := uuid.Parse(req.LeaseID)
	if err != nil {
		return input.PaymentRequest{}, core.NewError(core.KindValidation, "invalid lease id")
	}
	serviceReq := input.PaymentRequest{
		LeaseID:         leaseID,
		AgencyID:        agencyID(c),
		Amount:          req.Amount,
		Method:          req.Method,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}
	if req.InvoiceID != "" {
		invoiceID, err := uuid.Parse(req.InvoiceID)
		if err != nil {
			return input.PaymentRequest{}, core.NewError(core.KindValidation, "invalid invoice id")
		}
		serviceReq.InvoiceID = &invoiceID
	}
	return serviceReq, nil
}

// GetPayment handles payment retrieval by ID
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid payment ID"})
	}
	response, err := h.paymentService.GetPayment(c.Request().Context(), id)
	if err != nil {
		if core.IsKind(err, core.KindValidation) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Payment not found"})
		}
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toHTTPPayment(response))
}

// ProcessCallback handles a provider callback delivery. It is safe to call
// any number of times with the same payload and always answers synchronously.
func (h *PaymentHandler) ProcessCallback(c echo.Context) error {
	externalRef := c.Param("ref")
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unreadable request body"})
	}

	result, err := h.paymentService.ProcessCallback(c.Request().Context(), externalRef, body)
	if err != nil {
		if core.IsKind(err, core.KindValidation) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return errorJSON(c, err)
	}

	status := http.StatusOK
	if !result.Success {
		// Transient failure with a retry scheduled: acknowledged, not done.
		status = http.StatusAccepted
	}
	return c.JSON(status, CallbackResponse{
		Success:       result.Success,
		Duplicate:     result.Duplicate,
		Message:       result.Message,
		ReceiptNumber: result.ReceiptNumber,
	})
}

// ProcessBatch handles bounded-concurrency batch submission
func (h *PaymentHandler) ProcessBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	serviceReqs := make([]input.PaymentRequest, len(req.Payments))
	for i, item := range req.Payments {
		serviceReq, err := h.toServiceRequest(c, item)
		if err != nil {
			return errorJSON(c, err)
		}
		serviceReqs[i] = serviceReq
	}

	result, err := h.paymentService.ProcessBatch(c.Request().Context(), serviceReqs,
		input.BatchOptions{BatchSize: req.BatchSize})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListLocks exposes the currently held lock keys for diagnostics
func (h *PaymentHandler) ListLocks(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"locks": h.paymentService.ListActiveLocks(),
	})
}

// CreateInvoice handles invoice creation at billing time
func (h *PaymentHandler) CreateInvoice(c echo.Context) error {
	var req CreateInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	leaseID, err := uuid.Parse(req.LeaseID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid lease id"})
	}
	serviceReq := input.InvoiceRequest{
		AgencyID: agencyID(c),
		LeaseID:  leaseID,
		Amount:   req.Amount,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid due date"})
		}
		serviceReq.DueDate = &due
	}

	response, err := h.paymentService.CreateInvoice(c.Request().Context(), serviceReq)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, toHTTPInvoice(response))
}

// GetInvoice handles invoice retrieval by ID
func (h *PaymentHandler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid invoice ID"})
	}
	response, err := h.paymentService.GetInvoice(c.Request().Context(), id)
	if err != nil {
		if core.IsKind(err, core.KindValidation) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Invoice not found"})
		}
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, toHTTPInvoice(response))
}

// InitiateTransaction registers a pending external payment attempt
func (h *PaymentHandler) InitiateTransaction(c echo.Context) error {
	var req InitiateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	leaseID, err := uuid.Parse(req.LeaseID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid lease id"})
	}
	serviceReq := input.TransactionRequest{
		ExternalRef: req.ExternalRef,
		AgencyID:    agencyID(c),
		LeaseID:     leaseID,
		Amount:      req.Amount,
	}
	if req.InvoiceID != "" {
		invoiceID, err := uuid.Parse(req.InvoiceID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid invoice id"})
		}
		serviceReq.InvoiceID = &invoiceID
	}

	response, err := h.paymentService.InitiateTransaction(c.Request().Context(), serviceReq)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":           response.ID.String(),
		"external_ref": response.ExternalRef,
		"status":       string(response.Status),
		"amount":       response.Amount,
		"created_at":   response.CreatedAt.Format(time.RFC3339),
	})
}

func toHTTPPayment(p *input.PaymentResponse) PaymentResponse {
	resp := PaymentResponse{
		ID:              p.ID.String(),
		LeaseID:         p.LeaseID.String(),
		Amount:          p.Amount,
		Method:          p.Method,
		ReferenceNumber: p.ReferenceNumber,
		PaidAt:          p.PaidAt.Format(time.RFC3339),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
	if p.InvoiceID != nil {
		resp.InvoiceID = p.InvoiceID.String()
	}
	return resp
}

func toHTTPInvoice(i *input.InvoiceResponse) InvoiceResponse {
	resp := InvoiceResponse{
		ID:        i.ID.String(),
		LeaseID:   i.LeaseID.String(),
		Amount:    i.Amount,
		TotalPaid: i.TotalPaid,
		LateFee:   i.LateFee,
		Status:    string(i.Status),
		Version:   i.Version,
		CreatedAt: i.CreatedAt.Format(time.RFC3339),
	}
	if i.DueDate != nil {
		resp.DueDate = i.DueDate.Format("2006-01-02")
	}
	return resp
}
