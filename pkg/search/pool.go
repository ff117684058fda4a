package search

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

// workerPool evaluates batches of rules with bounded parallelism. A
// semaphore caps outstanding oracle calls; an optional rate limiter
// paces them so a shared database is not saturated by count queries.
type workerPool struct {
	workers int
	limiter *rate.Limiter
}

func newWorkerPool(cfg Config) *workerPool {
	p := &workerPool{workers: cfg.Workers}
	if cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return p
}

type poolResult struct {
	index int
	eval  Evaluation
	err   error
}

// evaluateBatch runs the oracle over every rule in the batch and
// returns verdicts in batch order. The first evaluation error cancels
// the rest of the batch and is returned.
func (p *workerPool) evaluateBatch(ctx context.Context, req *Request, batch []*graph.CandidateRule) ([]scoredRule, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultsChan := make(chan poolResult, len(batch))
	sem := make(chan struct{}, p.workers)

	var wg sync.WaitGroup
	for i, rule := range batch {
		wg.Add(1)
		go func(index int, rule *graph.CandidateRule) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- poolResult{index: index, err: ctx.Err()}
				return
			}

			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					resultsChan <- poolResult{index: index, err: err}
					return
				}
			}

			ev, err := evaluate(ctx, req, rule)
			resultsChan <- poolResult{index: index, eval: ev, err: err}
		}(i, rule)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	out := make([]scoredRule, len(batch))
	var firstErr error
	for res := range resultsChan {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		out[res.index] = scoredRule{rule: batch[res.index], eval: res.eval}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
