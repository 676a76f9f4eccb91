package matching

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/product-match/internal/model"
)

// BatchItem is the outcome for one competitor record of a batch.
type BatchItem struct {
	Index    int                     `json:"index"`
	Response *model.MatchingResponse `json:"response,omitempty"`
	Err      error                   `json:"-"`
	Error    string                  `json:"error,omitempty"`
}

// BatchResult is the outcome of MatchBatch, in input order.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int64       `json:"succeeded"`
	Failed    int64       `json:"failed"`
	Duration  string      `json:"duration"`
}

// MatchBatch matches every record concurrently, bounded by the engine's
// batch concurrency. A failing item is recorded in its BatchItem and does
// not stop the batch; only context cancellation does.
func (e *Engine) MatchBatch(ctx context.Context, items []model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions) (*BatchResult, error) {
	start := e.now()
	result := &BatchResult{Items: make([]BatchItem, len(items))}
	for i := range result.Items {
		result.Items[i].Index = i
	}

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchConcurrency)

	for i := range items {
		// Cooperative yield point between items.
		runtime.Gosched()
		if err := gctx.Err(); err != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := e.Match(gctx, items[i], catalog, opts)
			item := BatchItem{Index: i, Response: resp, Err: err}
			if err != nil {
				item.Error = err.Error()
				failed.Add(1)
				zap.L().Debug("matching: batch item failed",
					zap.Int("index", i),
					zap.String("competitor_sku", items[i].SKU),
					zap.Error(err),
				)
			} else {
				succeeded.Add(1)
			}
			result.Items[i] = item
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	// Items cancellation kept from running are failures, not gaps.
	if err != nil {
		for i := range result.Items {
			item := &result.Items[i]
			if item.Response != nil || item.Err != nil {
				continue
			}
			item.Err = err
			item.Error = err.Error()
			failed.Add(1)
		}
	}

	result.Succeeded = succeeded.Load()
	result.Failed = failed.Load()
	result.Duration = e.now().Sub(start).Round(time.Millisecond).String()

	zap.L().Info("matching: batch complete",
		zap.Int("items", len(items)),
		zap.Int64("succeeded", result.Succeeded),
		zap.Int64("failed", result.Failed),
		zap.String("duration", result.Duration),
	)
	return result, err
}
