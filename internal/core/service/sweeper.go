package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rentflow/payment-gateway/internal/port/output"
)

// OverdueSweeper marks past-due unpaid invoices OVERDUE and assesses the
// clamped late fee. Scheduled from the worker.
type OverdueSweeper struct {
	repo   output.PaymentRepository
	cfg    Config
	logger *log.Logger
}

// NewOverdueSweeper creates a new sweeper.
func NewOverdueSweeper(repo output.PaymentRepository, cfg Config, logger *log.Logger) *OverdueSweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &OverdueSweeper{repo: repo, cfg: cfg, logger: logger}
}

// Sweep runs one pass and returns how many invoices were marked.
func (s *OverdueSweeper) Sweep(ctx context.Context) (int64, error) {
	marked, err := s.repo.MarkOverdue(ctx, time.Now(),
		s.cfg.LateFeeRateBps, s.cfg.LateFeeMin, s.cfg.LateFeeMax)
	if err != nil {
		return marked, fmt.Errorf("overdue sweep failed: %w", err)
	}
	if marked > 0 {
		s.logger.Printf("marked %d invoices overdue", marked)
	}
	return marked, nil
}
