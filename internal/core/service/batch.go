package service

import (
	"context"
	"sync"
	"time"

	"github.com/rentflow/payment-gateway/internal/core"
	"github.com/rentflow/payment-gateway/internal/port/input"
)

// BatchOrchestrator fans a list of payments out through the recorder with
// bounded parallelism. Items within a chunk run concurrently; a chunk is
// dispatched only after the previous one finished, with a small delay in
// between to bound load on shared resources. One item's failure never aborts
// the batch.
type BatchOrchestrator struct {
	recorder    *Recorder
	chunkDelay  time.Duration
	defaultSize int
}

// NewBatchOrchestrator creates a new batch orchestrator.
func NewBatchOrchestrator(recorder *Recorder, cfg Config) *BatchOrchestrator {
	size := cfg.DefaultBatchSize
	if size <= 0 {
		size = 10
	}
	return &BatchOrchestrator{
		recorder:    recorder,
		chunkDelay:  cfg.ChunkDelay,
		defaultSize: size,
	}
}

type batchOutcome struct {
	payment *core.Payment
	err     error
}

// ProcessBatch runs the items and accumulates per-index outcomes.
func (b *BatchOrchestrator) ProcessBatch(ctx context.Context, items []core.PaymentData, batchSize int) *input.BatchResult {
	if batchSize <= 0 {
		batchSize = b.defaultSize
	}

	outcomes := make([]batchOutcome, len(items))
	for startIdx := 0; startIdx < len(items); startIdx += batchSize {
		end := startIdx + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := startIdx; i < end; i++ {
			wg.Add(1)
			go func(idx int, data core.PaymentData) {
				defer wg.Done()
				payment, err := b.recorder.ProcessPayment(ctx, data)
				outcomes[idx] = batchOutcome{payment: payment, err: err}
			}(i, items[i])
		}
		wg.Wait()

		if end < len(items) && b.chunkDelay > 0 {
			time.Sleep(b.chunkDelay)
		}
	}

	result := &input.BatchResult{}
	for idx, out := range outcomes {
		if out.err != nil {
			result.Failed = append(result.Failed, input.BatchFailure{
				Index:   idx,
				Message: out.err.Error(),
			})
			continue
		}
		result.Successful = append(result.Successful, input.BatchItem{
			Index:     idx,
			PaymentID: out.payment.ID,
		})
	}
	result.Summary = input.BatchSummary{
		Total:      len(items),
		Successful: len(result.Successful),
		Failed:     len(result.Failed),
	}
	if result.Summary.Total > 0 {
		result.Summary.SuccessRate = float64(result.Summary.Successful) / float64(result.Summary.Total)
	}
	return result
}
