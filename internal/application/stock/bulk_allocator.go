package stock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultBulkConcurrency bounds how many SKU groups allocate in parallel
const DefaultBulkConcurrency = 8

// BulkAllocator processes allocation batches. Requests for the same SKU run
// sequentially in input order, so earlier orders win the stock; distinct
// SKUs run in parallel up to the concurrency bound. Partial failure is
// normal: each request succeeds or fails on its own and nothing above the
// per-request command retries.
type BulkAllocator struct {
	commands    *CommandService
	concurrency int
	logger      *zap.Logger
}

// NewBulkAllocator creates a new BulkAllocator
func NewBulkAllocator(commands *CommandService, concurrency int, logger *zap.Logger) *BulkAllocator {
	if concurrency < 1 {
		concurrency = DefaultBulkConcurrency
	}
	return &BulkAllocator{
		commands:    commands,
		concurrency: concurrency,
		logger:      logger,
	}
}

// AllocateBulk runs the batch and reports one outcome per request, in the
// order the requests came in.
func (a *BulkAllocator) AllocateBulk(ctx context.Context, req BulkAllocationRequest) *BulkAllocationResult {
	started := time.Now()
	requests := req.Allocations
	outcomes := make([]AllocationOutcome, len(requests))

	// Group request indices by SKU, keeping first-seen order.
	groups := make(map[string][]int, len(requests))
	skus := make([]string, 0, len(requests))
	for i, r := range requests {
		if _, seen := groups[r.Sku]; !seen {
			skus = append(skus, r.Sku)
		}
		groups[r.Sku] = append(groups[r.Sku], i)
	}

	sem := make(chan struct{}, a.concurrency)
	var wg sync.WaitGroup
	for _, sku := range skus {
		indices := groups[sku]
		wg.Add(1)
		sem <- struct{}{}
		go func(indices []int) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, i := range indices {
				outcomes[i] = a.allocateOne(ctx, requests[i])
			}
		}(indices)
	}
	wg.Wait()

	result := &BulkAllocationResult{
		ProcessingMs: time.Since(started).Milliseconds(),
		Results:      outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}

	a.logger.Info("bulk allocation finished",
		zap.Int("requests", len(requests)),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailureCount),
		zap.Int64("processing_ms", result.ProcessingMs))
	return result
}

func (a *BulkAllocator) allocateOne(ctx context.Context, r AllocationRequest) AllocationOutcome {
	_, err := a.commands.Allocate(ctx, AllocateStockRequest{
		Sku:      r.Sku,
		Quantity: r.Quantity,
		OrderID:  r.OrderID,
	})
	if err != nil {
		return AllocationOutcome{
			Sku:          r.Sku,
			OrderID:      r.OrderID,
			Success:      false,
			ErrorMessage: err.Error(),
		}
	}
	return AllocationOutcome{
		Sku:               r.Sku,
		OrderID:           r.OrderID,
		Success:           true,
		AllocatedQuantity: r.Quantity,
	}
}
