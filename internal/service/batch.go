package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// BatchResult aggregates a batch of captures.
type BatchResult struct {
	Results   []*Result `json:"results"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
}

// RunBatch captures each text with a pool of workers. Results keep the order
// of texts. Texts not started before ctx is done are reported as failed.
func (p *Pipeline) RunBatch(ctx context.Context, texts []string, concurrency int, opts RunOptions) *BatchResult {
	if concurrency <= 0 {
		concurrency = 4
	}
	p.logger.Info("starting batch capture", "texts", len(texts), "concurrency", concurrency)

	results := make([]*Result, len(texts))
	var (
		processed atomic.Int32
		wg        sync.WaitGroup
	)

	indexes := make(chan int, len(texts))
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range indexes {
				if err := ctx.Err(); err != nil {
					results[idx] = &Result{
						Stage:       StageFailed,
						FailedStage: FailClassification,
						Input:       texts[idx],
						Error:       err.Error(),
					}
					continue
				}
				n := processed.Add(1)
				p.logger.Debug("capturing", "worker", workerID, "progress", fmt.Sprintf("%d/%d", n, len(texts)))
				results[idx] = p.Run(ctx, texts[idx], opts)
			}
		}(i)
	}

	for i := range texts {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	out := &BatchResult{Results: results}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	p.logger.Info("batch capture complete", "succeeded", out.Succeeded, "failed", out.Failed)
	return out
}
