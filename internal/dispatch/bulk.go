package dispatch

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"notify-gateway/internal/notifications"
)

// bulkBatchSize bounds how many submissions run concurrently; each batch
// completes before the next starts.
const bulkBatchSize = 50

// BulkItem is the per-request outcome of a bulk submission.
type BulkItem struct {
	Success       bool       `json:"success"`
	TransactionID *uuid.UUID `json:"transactionId,omitempty"`
	UserID        string     `json:"userId"`
	Error         string     `json:"error,omitempty"`
}

// BulkResult aggregates a bulk submission. Per-item failures do not fail
// the call.
type BulkResult struct {
	Total   int        `json:"total"`
	Queued  int        `json:"queued"`
	Failed  int        `json:"failed"`
	Results []BulkItem `json:"results"`
}

// SubmitBulk submits every request, preserving input order in the
// results.
func (d *Dispatcher) SubmitBulk(ctx context.Context, reqs []*notifications.CreateRequest) *BulkResult {
	results := make([]BulkItem, len(reqs))

	for start := 0; start < len(reqs); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(reqs) {
			end = len(reqs)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				item := BulkItem{}
				if reqs[i] != nil {
					item.UserID = reqs[i].UserID
				}

				receipt, err := d.Submit(ctx, reqs[i])
				if err != nil {
					item.Error = err.Error()
					if receipt != nil {
						item.TransactionID = &receipt.TransactionID
					}
				} else {
					item.Success = true
					item.TransactionID = &receipt.TransactionID
				}
				results[i] = item
				return nil
			})
		}
		// per-item errors land in results; Wait is only the batch barrier
		_ = g.Wait()
	}

	res := &BulkResult{Total: len(reqs), Results: results}
	for _, item := range results {
		if item.Success {
			res.Queued++
		} else {
			res.Failed++
		}
	}
	return res
}
