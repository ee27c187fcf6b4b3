package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rentflow/payment-gateway/internal/core"
)

func TestProcessBatchPartialFailure(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	batch := NewBatchOrchestrator(rec, testConfig())
	agencyID := uuid.New()

	items := make([]core.PaymentData, 10)
	for i := range items {
		items[i] = core.PaymentData{
			LeaseID:         uuid.New(),
			AgencyID:        agencyID,
			Amount:          1000,
			Method:          "CASH",
			ReferenceNumber: fmt.Sprintf("BATCH-%d", i),
		}
	}
	// Two bad entries must fail without aborting the rest.
	items[3].Amount = 0
	items[7].Method = ""

	result := batch.ProcessBatch(context.Background(), items, 1)

	if result.Summary.Total != 10 {
		t.Errorf("total = %d, want 10", result.Summary.Total)
	}
	if result.Summary.Successful != 8 || len(result.Successful) != 8 {
		t.Errorf("successful = %d/%d, want 8", result.Summary.Successful, len(result.Successful))
	}
	if result.Summary.Failed != 2 || len(result.Failed) != 2 {
		t.Errorf("failed = %d/%d, want 2", result.Summary.Failed, len(result.Failed))
	}
	if result.Summary.SuccessRate != 0.8 {
		t.Errorf("success rate = %v, want 0.8", result.Summary.SuccessRate)
	}

	failedIdx := map[int]bool{}
	for _, f := range result.Failed {
		failedIdx[f.Index] = true
		if f.Message == "" {
			t.Errorf("failure at index %d carries no message", f.Index)
		}
	}
	if !failedIdx[3] || !failedIdx[7] {
		t.Errorf("failed indices = %v, want {3, 7}", failedIdx)
	}

	seen := map[int]bool{}
	for _, s := range result.Successful {
		if s.PaymentID == uuid.Nil {
			t.Errorf("success at index %d has no payment id", s.Index)
		}
		if failedIdx[s.Index] || seen[s.Index] {
			t.Errorf("index %d reported twice", s.Index)
		}
		seen[s.Index] = true
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	batch := NewBatchOrchestrator(rec, testConfig())

	result := batch.ProcessBatch(context.Background(), nil, 0)
	if result.Summary.Total != 0 || result.Summary.SuccessRate != 0 {
		t.Fatalf("empty batch summary = %+v", result.Summary)
	}
}

func TestProcessBatchDefaultsSize(t *testing.T) {
	rec, _, _ := newTestRecorder(t)
	cfg := testConfig()
	cfg.DefaultBatchSize = 1
	batch := NewBatchOrchestrator(rec, cfg)
	agencyID := uuid.New()

	items := make([]core.PaymentData, 25)
	for i := range items {
		items[i] = core.PaymentData{
			LeaseID:         uuid.New(),
			AgencyID:        agencyID,
			Amount:          500,
			Method:          "CASH",
			ReferenceNumber: fmt.Sprintf("DEF-%d", i),
		}
	}
	result := batch.ProcessBatch(context.Background(), items, 0)
	if result.Summary.Successful != 25 {
		t.Fatalf("successful = %d, want 25", result.Summary.Successful)
	}
}

// All batch items against one invoice: everything still lands exactly once
// even though every item contends on the same lock key.
func TestProcessBatchSameInvoiceSerializes(t *testing.T) {
	rec, repo, _ := newTestRecorder(t)
	cfg := testConfig()
	cfg.DefaultBatchSize = 1 // serialize chunks so no item loses the lock outright
	batch := NewBatchOrchestrator(rec, cfg)
	agencyID, leaseID := uuid.New(), uuid.New()
	inv := mustCreateInvoice(t, repo, agencyID, leaseID, 4000)

	items := make([]core.PaymentData, 4)
	for i := range items {
		items[i] = core.PaymentData{
			InvoiceID:       &inv.ID,
			LeaseID:         leaseID,
			AgencyID:        agencyID,
			Amount:          1000,
			Method:          "CASH",
			ReferenceNumber: fmt.Sprintf("SER-%d", i),
		}
	}
	result := batch.ProcessBatch(context.Background(), items, 1)
	if result.Summary.Successful != 4 {
		t.Fatalf("successful = %d, want 4 (failures: %+v)", result.Summary.Successful, result.Failed)
	}

	got, err := repo.GetInvoice(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if got.TotalPaid != 4000 || got.Status != core.InvoiceStatusPaid {
		t.Fatalf("invoice = total %d status %s, want 4000 PAID", got.TotalPaid, got.Status)
	}
}
