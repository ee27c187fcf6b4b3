package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/core/lock"
	"github.com/rentflow/payment-gateway/internal/port/output"
)

// Recorder is the transactional payment recorder: the single writer path
// that creates a Payment and updates its Invoice's paid total and status
// atomically. All financial mutations for one invoice/lease serialize
// through the lock key; the acquire never blocks.
type Recorder struct {
	repo    output.PaymentRepository
	locks   *lock.Manager
	metrics *MetricsCollector
	cfg     Config
}

// NewRecorder creates a new payment recorder.
func NewRecorder(repo output.PaymentRepository, locks *lock.Manager, metrics *MetricsCollector, cfg Config) *Recorder {
	return &Recorder{repo: repo, locks: locks, metrics: metrics, cfg: cfg}
}

// ProcessPayment records one payment. It returns LOCK_BUSY immediately when
// another operation holds the key (callers report "try again shortly", they
// do not spin), DUPLICATE_PAYMENT on a replayed reference, and
// RETRYABLE_CONFLICT when the invoice moved between read and write.
func (r *Recorder) ProcessPayment(ctx context.Context, data core.PaymentData) (*core.Payment, error) {
	start := time.Now()
	if err := data.Validate(); err != nil {
		return nil, err
	}

	key := data.LockKey()
	if !r.locks.Acquire(key, r.cfg.LockTTL) {
		r.metrics.Observe(OutcomeFailure, time.Since(start))
		return nil, core.NewError(core.KindLockBusy,
			fmt.Sprintf("another payment for %s is in progress, try again shortly", key))
	}
	defer r.locks.Release(key)

	if data.PaidAt.IsZero() {
		data.PaidAt = time.Now()
	}

	txCtx, cancel := context.WithTimeout(ctx, r.cfg.TxTimeout)
	defer cancel()

	payment, err := r.repo.RecordPayment(txCtx, data)
	if err != nil {
		if core.IsKind(err, core.KindDuplicatePayment) {
			r.metrics.Observe(OutcomeDuplicate, time.Since(start))
		} else {
			r.metrics.Observe(OutcomeFailure, time.Since(start))
		}
		return nil, err
	}

	r.metrics.Observe(OutcomeSuccess, time.Since(start))
	return payment, nil
}
