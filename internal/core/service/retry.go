package service

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/port/output"
)

// RetryScheduler classifies failures and re-enqueues retryable operations
// with exponential backoff. Retries are durable queue messages, not
// in-memory timers, so they survive a process restart.
type RetryScheduler struct {
	msg         output.PaymentMessaging
	baseDelay   time.Duration
	maxAttempts int
	logger      *log.Logger
}

// NewRetryScheduler creates a scheduler with the given backoff policy.
func NewRetryScheduler(msg output.PaymentMessaging, baseDelay time.Duration, maxAttempts int, logger *log.Logger) *RetryScheduler {
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RetryScheduler{msg: msg, baseDelay: baseDelay, maxAttempts: maxAttempts, logger: logger}
}

// MaxAttempts exposes the retry ceiling.
func (s *RetryScheduler) MaxAttempts() int {
	return s.maxAttempts
}

// Retryable reports whether an error is worth re-attempting. Classified
// errors decide by kind; unclassified ones are matched against transient
// infrastructure signatures.
func (s *RetryScheduler) Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch core.KindOf(err) {
	case core.KindTransient, core.KindRetryableConflict, core.KindLockBusy:
		return true
	case core.KindDuplicatePayment, core.KindValidation, core.KindTerminal:
		return false
	}
	return hasTransientSignature(err)
}

func hasTransientSignature(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, sig := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
		"timed out",
		"deadlock",
		"temporar",
		"database is locked",
		"too many connections",
	} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// Delay computes the backoff before the attempt following the given one:
// baseDelay * 2^(attempt-1).
func (s *RetryScheduler) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return s.baseDelay << uint(attempt-1)
}

// Schedule enqueues the next attempt of a failed task. task.Attempt is the
// number of attempts already made. A non-retryable cause is returned
// unchanged; exceeding the ceiling returns a TERMINAL error that the caller
// must surface, never swallow.
func (s *RetryScheduler) Schedule(task output.RetryTask, cause error) error {
	if !s.Retryable(cause) {
		return cause
	}
	next := task.Attempt + 1
	if next > s.maxAttempts {
		s.logger.Printf("retry budget exhausted for %s after %d attempts: %v",
			task.ExternalRef, task.Attempt, cause)
		return core.WrapError(core.KindTerminal,
			fmt.Sprintf("retry budget exhausted after %d attempts", task.Attempt), cause)
	}
	delay := s.Delay(task.Attempt)
	task.Attempt = next
	task.NotBefore = time.Now().Add(delay)
	task.LastError = cause.Error()
	if err := s.msg.PublishRetryTask(task); err != nil {
		return core.WrapError(core.KindTransient, "failed to enqueue retry task", err)
	}
	s.logger.Printf("scheduled retry %d/%d for %s in %s", next, s.maxAttempts, task.ExternalRef, delay)
	return nil
}
