package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/core/lock"
	"github.com/rentflow/payment-gateway/internal/port/input"
)

// stubService implements input.PaymentService with pluggable behavior.
type stubService struct {
	processPayment  func(req input.PaymentRequest) (*input.PaymentResponse, error)
	processCallback func(ref string, payload []byte) (*input.CallbackResult, error)
	getPayment      func(id uuid.UUID) (*input.PaymentResponse, error)
}

func (s *stubService) ProcessPayment(_ context.Context, req input.PaymentRequest) (*input.PaymentResponse, error) {
	return s.processPayment(req)
}

func (s *stubService) ProcessCallback(_ context.Context, ref string, payload []byte) (*input.CallbackResult, error) {
	return s.processCallback(ref, payload)
}

func (s *stubService) ProcessBatch(_ context.Context, reqs []input.PaymentRequest, opts input.BatchOptions) (*input.BatchResult, error) {
	return &input.BatchResult{Summary: input.BatchSummary{Total: len(reqs)}}, nil
}

func (s *stubService) ListActiveLocks() []lock.Info { return nil }

func (s *stubService) CreateInvoice(_ context.Context, req input.InvoiceRequest) (*input.InvoiceResponse, error) {
	return &input.InvoiceResponse{ID: uuid.New(), LeaseID: req.LeaseID, Amount: req.Amount,
		Status: core.InvoiceStatusPending, CreatedAt: time.Now()}, nil
}

func (s *stubService) GetInvoice(_ context.Context, id uuid.UUID) (*input.InvoiceResponse, error) {
	return nil, core.NewError(core.KindValidation, "invoice not found")
}

func (s *stubService) GetPayment(_ context.Context, id uuid.UUID) (*input.PaymentResponse, error) {
	return s.getPayment(id)
}

func (s *stubService) InitiateTransaction(_ context.Context, req input.TransactionRequest) (*input.TransactionResponse, error) {
	return &input.TransactionResponse{ID: uuid.New(), ExternalRef: req.ExternalRef,
		Status: core.TransactionStatusPending, Amount: req.Amount, CreatedAt: time.Now()}, nil
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind core.ErrorKind
		want int
	}{
		{core.KindValidation, http.StatusBadRequest},
		{core.KindDuplicatePayment, http.StatusConflict},
		{core.KindLockBusy, http.StatusConflict},
		{core.KindRetryableConflict, http.StatusConflict},
		{core.KindTransient, http.StatusServiceUnavailable},
		{core.KindTerminal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := errorStatus(core.NewError(tc.kind, "x")); got != tc.want {
			t.Errorf("errorStatus(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestCreatePayment(t *testing.T) {
	leaseID := uuid.New()
	svc := &stubService{
		processPayment: func(req input.PaymentRequest) (*input.PaymentResponse, error) {
			return &input.PaymentResponse{ID: uuid.New(), LeaseID: req.LeaseID,
				Amount: req.Amount, Method: req.Method,
				PaidAt: time.Now(), CreatedAt: time.Now()}, nil
		},
	}
	h := NewPaymentHandler(svc)

	c, rec := newContext(http.MethodPost, "/api/v1/payments",
		`{"lease_id":"`+leaseID.String()+`","amount":1500,"method":"CASH"}`)
	if err := h.CreatePayment(c); err != nil {
		t.Fatalf("handler errored: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var resp PaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Amount != 1500 || resp.LeaseID != leaseID.String() {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreatePaymentRejectsBadInput(t *testing.T) {
	h := NewPaymentHandler(&stubService{})
	cases := []struct {
		name string
		body string
	}{
		{"missing lease", `{"amount":1500,"method":"CASH"}`},
		{"zero amount", `{"lease_id":"` + uuid.NewString() + `","amount":0,"method":"CASH"}`},
		{"bad lease uuid", `{"lease_id":"nope","amount":100,"method":"CASH"}`},
		{"missing method", `{"lease_id":"` + uuid.NewString() + `","amount":100}`},
	}
	for _, tc := range cases {
		c, rec := newContext(http.MethodPost, "/api/v1/payments", tc.body)
		if err := h.CreatePayment(c); err != nil {
			t.Fatalf("%s: handler errored: %v", tc.name, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestCreatePaymentConflictStatuses(t *testing.T) {
	for _, tc := range []struct {
		kind core.ErrorKind
		want int
	}{
		{core.KindDuplicatePayment, http.StatusConflict},
		{core.KindLockBusy, http.StatusConflict},
		{core.KindTransient, http.StatusServiceUnavailable},
	} {
		svc := &stubService{
			processPayment: func(req input.PaymentRequest) (*input.PaymentResponse, error) {
				return nil, core.NewError(tc.kind, "nope")
			},
		}
		h := NewPaymentHandler(svc)
		c, rec := newContext(http.MethodPost, "/api/v1/payments",
			`{"lease_id":"`+uuid.NewString()+`","amount":100,"method":"CASH"}`)
		if err := h.CreatePayment(c); err != nil {
			t.Fatalf("handler errored: %v", err)
		}
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.kind, rec.Code, tc.want)
		}
	}
}

func TestProcessCallbackStatuses(t *testing.T) {
	cases := []struct {
		name   string
		result *input.CallbackResult
		err    error
		want   int
	}{
		{"fresh success", &input.CallbackResult{Success: true, ReceiptNumber: "R1"}, nil, http.StatusOK},
		{"duplicate", &input.CallbackResult{Success: true, Duplicate: true}, nil, http.StatusOK},
		{"retry scheduled", &input.CallbackResult{Success: false, Message: "transient failure, retry scheduled"}, nil, http.StatusAccepted},
		{"unknown reference", nil, core.NewError(core.KindValidation, "no transaction"), http.StatusNotFound},
		{"terminal", nil, core.NewError(core.KindTerminal, "budget exhausted"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &stubService{
			processCallback: func(ref string, payload []byte) (*input.CallbackResult, error) {
				return tc.result, tc.err
			},
		}
		h := NewPaymentHandler(svc)
		c, rec := newContext(http.MethodPost, "/api/v1/callbacks/CO123", `{"result_code":"0"}`)
		c.SetParamNames("ref")
		c.SetParamValues("CO123")
		if err := h.ProcessCallback(c); err != nil {
			t.Fatalf("%s: handler errored: %v", tc.name, err)
		}
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	svc := &stubService{
		getPayment: func(id uuid.UUID) (*input.PaymentResponse, error) {
			return nil, core.NewError(core.KindValidation, "payment not found")
		},
	}
	h := NewPaymentHandler(svc)
	c, rec := newContext(http.MethodGet, "/api/v1/payments/x", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	if err := h.GetPayment(c); err != nil {
		t.Fatalf("handler errored: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestProcessBatchRejectsEmptyList(t *testing.T) {
	h := NewPaymentHandler(&stubService{})
	c, rec := newContext(http.MethodPost, "/api/v1/payments/batch", `{"payments":[]}`)
	if err := h.ProcessBatch(c); err != nil {
		t.Fatalf("handler errored: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
