package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/core/ledger"
	"github.com/rentflow/payment-gateway/internal/core/lock"
	"github.com/rentflow/payment-gateway/internal/port/input"
	"github.com/rentflow/payment-gateway/internal/port/output"
)

// callbackPayload is the provider-agnostic shape of a normalized callback.
// Result code "0" means success, anything else is a provider-side failure.
type callbackPayload struct {
	ResultCode        string `json:"result_code"`
	ResultDescription string `json:"result_description"`
	Amount            int64  `json:"amount"`
	ReceiptNumber     string `json:"receipt_number"`
	Method            string `json:"method"`
}

func (p callbackPayload) successful() bool {
	return p.ResultCode == "0"
}

// CallbackProcessor turns one external provider callback into at most one
// payment. Dedupe runs against the ledger and the transaction's terminal
// state; the PENDING->PROCESSING claim excludes concurrent deliveries; the
// success path composes the payment write, the transaction flip and the
// ledger entry in one repository transaction. Transient failures are handed
// to the retry scheduler, and the synchronous acknowledgment never waits on
// post-commit side effects.
type CallbackProcessor struct {
	repo    output.PaymentRepository
	ledger  *ledger.Ledger
	locks   *lock.Manager
	msg     output.PaymentMessaging
	retry   *RetryScheduler
	metrics *MetricsCollector
	cfg     Config
	logger  *log.Logger
}

// NewCallbackProcessor creates a new callback processor.
func NewCallbackProcessor(
	repo output.PaymentRepository,
	ldg *ledger.Ledger,
	locks *lock.Manager,
	msg output.PaymentMessaging,
	retry *RetryScheduler,
	metrics *MetricsCollector,
	cfg Config,
	logger *log.Logger,
) *CallbackProcessor {
	if logger == nil {
		logger = log.Default()
	}
	return &CallbackProcessor{
		repo:    repo,
		ledger:  ldg,
		locks:   locks,
		msg:     msg,
		retry:   retry,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}
}

// ProcessCallback handles a fresh delivery from the provider.
func (p *CallbackProcessor) ProcessCallback(ctx context.Context, externalRef string, payload []byte) (*input.CallbackResult, error) {
	return p.process(ctx, externalRef, payload, 1)
}

// ProcessRetry re-runs a transiently failed callback from the retry queue.
func (p *CallbackProcessor) ProcessRetry(ctx context.Context, task output.RetryTask) (*input.CallbackResult, error) {
	return p.process(ctx, task.ExternalRef, task.Payload, task.Attempt)
}

func (p *CallbackProcessor) process(ctx context.Context, externalRef string, raw []byte, attempt int) (*input.CallbackResult, error) {
	start := time.Now()
	callbackID := ledger.CallbackID(raw)

	processed, err := p.ledger.IsProcessed(ctx, externalRef, callbackID)
	if err != nil {
		return p.reschedule(externalRef, raw, attempt, start,
			core.WrapError(core.KindTransient, "ledger lookup failed", err))
	}
	if processed {
		p.metrics.Observe(OutcomeDuplicate, time.Since(start))
		return &input.CallbackResult{Success: true, Duplicate: true,
			Message: "callback already processed"}, nil
	}

	txn, err := p.repo.GetTransactionByRef(ctx, externalRef)
	if err != nil {
		if core.IsKind(err, core.KindValidation) {
			return nil, err
		}
		return p.reschedule(externalRef, raw, attempt, start,
			core.WrapError(core.KindTransient, "transaction lookup failed", err))
	}
	if txn.IsTerminal() {
		p.metrics.Observe(OutcomeDuplicate, time.Since(start))
		return &input.CallbackResult{Success: true, Duplicate: true,
			Message: fmt.Sprintf("transaction already %s", txn.Status)}, nil
	}

	var payload callbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, core.WrapError(core.KindValidation, "malformed callback payload", err)
	}

	// A retry of this same logical callback may reclaim a PROCESSING row it
	// claimed before failing; a first delivery that finds the row claimed
	// has lost to a concurrent delivery and reports duplicate.
	claimed, err := p.repo.ClaimTransaction(ctx, txn.ID, attempt > 1)
	if err != nil {
		return p.reschedule(externalRef, raw, attempt, start,
			core.WrapError(core.KindTransient, "claim failed", err))
	}
	if !claimed {
		p.metrics.Observe(OutcomeDuplicate, time.Since(start))
		return &input.CallbackResult{Success: true, Duplicate: true,
			Message: "callback already in progress"}, nil
	}

	if payload.successful() {
		return p.applySuccess(ctx, txn, payload, raw, callbackID, attempt, start)
	}
	return p.applyFailure(ctx, txn, payload, raw, callbackID, attempt, start)
}

func (p *CallbackProcessor) applySuccess(ctx context.Context, txn *core.ExternalTransaction, payload callbackPayload, raw []byte, callbackID string, attempt int, start time.Time) (*input.CallbackResult, error) {
	amount := payload.Amount
	if amount == 0 {
		amount = txn.Amount
	}
	method := payload.Method
	if method == "" {
		method = "MOBILE_MONEY"
	}
	reference := payload.ReceiptNumber
	if reference == "" {
		reference = txn.ExternalRef
	}
	data := core.PaymentData{
		InvoiceID:       txn.InvoiceID,
		LeaseID:         txn.LeaseID,
		AgencyID:        txn.AgencyID,
		Amount:          amount,
		Method:          method,
		ReferenceNumber: reference,
		PaidAt:          time.Now(),
		Notes:           fmt.Sprintf("provider callback %s", txn.ExternalRef),
	}

	// Invoice-level serialization against direct payment submissions. The
	// transaction claim alone does not cover those.
	key := data.LockKey()
	if !p.locks.Acquire(key, p.cfg.LockTTL) {
		return p.reschedule(txn.ExternalRef, raw, attempt, start,
			core.NewError(core.KindLockBusy, fmt.Sprintf("%s is locked", key)))
	}
	defer p.locks.Release(key)

	txCtx, cancel := context.WithTimeout(ctx, p.cfg.TxTimeout)
	defer cancel()

	payment, err := p.repo.ApplyCallbackSuccess(txCtx, output.ApplySuccess{
		TransactionID:     txn.ID,
		ExternalRef:       txn.ExternalRef,
		CallbackID:        callbackID,
		Payment:           data,
		ResultCode:        payload.ResultCode,
		ResultDescription: payload.ResultDescription,
		Metadata: map[string]interface{}{
			"receipt_number": payload.ReceiptNumber,
			"result_code":    payload.ResultCode,
		},
	})
	if err != nil {
		if core.IsKind(err, core.KindDuplicatePayment) {
			p.metrics.Observe(OutcomeDuplicate, time.Since(start))
			return &input.CallbackResult{Success: true, Duplicate: true,
				Message: "payment already recorded"}, nil
		}
		if p.retry.Retryable(err) {
			return p.reschedule(txn.ExternalRef, raw, attempt, start, err)
		}
		p.metrics.Observe(OutcomeFailure, time.Since(start))
		return nil, err
	}

	// Post-commit side effects ride the queue; a publish failure is logged
	// and never rolls back or delays the acknowledgment.
	if err := p.msg.PublishNotification(output.NotificationMessage{
		PaymentID: payment.ID,
		AgencyID:  payment.AgencyID,
		LeaseID:   payment.LeaseID,
		Amount:    payment.Amount,
		Receipt:   payment.ReferenceNumber,
		Timestamp: time.Now(),
	}); err != nil {
		p.logger.Printf("notification publish failed for %s: %v", txn.ExternalRef, err)
	}
	if err := p.msg.PublishScoreRecompute(output.ScoreRecomputeMessage{
		LeaseID:   payment.LeaseID,
		AgencyID:  payment.AgencyID,
		Timestamp: time.Now(),
	}); err != nil {
		p.logger.Printf("score recompute publish failed for %s: %v", txn.ExternalRef, err)
	}

	p.metrics.Observe(OutcomeSuccess, time.Since(start))
	return &input.CallbackResult{
		Success:       true,
		Message:       "payment recorded",
		ReceiptNumber: payment.ReferenceNumber,
	}, nil
}

func (p *CallbackProcessor) applyFailure(ctx context.Context, txn *core.ExternalTransaction, payload callbackPayload, raw []byte, callbackID string, attempt int, start time.Time) (*input.CallbackResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, p.cfg.TxTimeout)
	defer cancel()

	desc := payload.ResultDescription
	if desc == "" {
		desc = "provider reported failure"
	}
	err := p.repo.ApplyCallbackFailure(txCtx, output.ApplyFailure{
		TransactionID:     txn.ID,
		ExternalRef:       txn.ExternalRef,
		CallbackID:        callbackID,
		ResultCode:        payload.ResultCode,
		ResultDescription: desc,
		Metadata: map[string]interface{}{
			"result_code": payload.ResultCode,
		},
	})
	if err != nil {
		if core.IsKind(err, core.KindDuplicatePayment) {
			p.metrics.Observe(OutcomeDuplicate, time.Since(start))
			return &input.CallbackResult{Success: true, Duplicate: true,
				Message: "callback already recorded"}, nil
		}
		if p.retry.Retryable(err) {
			return p.reschedule(txn.ExternalRef, raw, attempt, start, err)
		}
		p.metrics.Observe(OutcomeFailure, time.Since(start))
		return nil, err
	}

	p.metrics.Observe(OutcomeFailure, time.Since(start))
	return &input.CallbackResult{
		Success: true,
		Message: fmt.Sprintf("transaction failed: %s", desc),
	}, nil
}

// reschedule hands a transient failure to the retry scheduler and still
// returns a definitive synchronous acknowledgment. A terminal scheduling
// outcome (budget exhausted, non-retryable cause) surfaces as the error.
func (p *CallbackProcessor) reschedule(externalRef string, raw []byte, attempt int, start time.Time, cause error) (*input.CallbackResult, error) {
	p.metrics.Observe(OutcomeFailure, time.Since(start))
	task := output.RetryTask{
		ExternalRef: externalRef,
		Payload:     raw,
		Attempt:     attempt,
	}
	if err := p.retry.Schedule(task, cause); err != nil {
		return nil, err
	}
	return &input.CallbackResult{
		Success: false,
		Message: "transient failure, retry scheduled",
	}, nil
}
