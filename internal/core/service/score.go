package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/rentflow/payment-gateway/internal/port/output"
)

// ScoreRecomputer derives a payer-reliability score for a lease from its
// payment history. It runs post-commit off the queue; its failure is logged
// by the consumer and never affects the payment that triggered it.
type ScoreRecomputer struct {
	repo   output.PaymentRepository
	logger *log.Logger
}

// NewScoreRecomputer creates a new score recomputer.
func NewScoreRecomputer(repo output.PaymentRepository, logger *log.Logger) *ScoreRecomputer {
	if logger == nil {
		logger = log.Default()
	}
	return &ScoreRecomputer{repo: repo, logger: logger}
}

// Recompute returns the share of payment attempts that produced a payment,
// on a 0-100 scale. A lease with no attempts scores 100.
func (r *ScoreRecomputer) Recompute(ctx context.Context, leaseID uuid.UUID) (int64, error) {
	activity, err := r.repo.LeaseActivity(ctx, leaseID)
	if err != nil {
		return 0, fmt.Errorf("failed to load lease activity: %w", err)
	}
	score := int64(100)
	if activity.Transactions > 0 {
		score = activity.Payments * 100 / activity.Transactions
		if score > 100 {
			score = 100
		}
		if score < 0 {
			score = 0
		}
	}
	r.logger.Printf("payer score for lease %s: %d (%d payments over %d attempts)",
		leaseID, score, activity.Payments, activity.Transactions)
	return score, nil
}
