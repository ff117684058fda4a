package search

import (
	"container/heap"
	"context"
	"time"

	"go.uber.org/zap"
)

const astarName = "astar"

const (
	// astarOptimism is the per-remaining-step bonus added to a node's
	// score to form its priority. Small enough that real score dominates,
	// large enough that shallow nodes with room to grow are tried before
	// exhausted ones.
	astarOptimism = 0.05

	// astarBoundFactor prunes frontier nodes whose optimistic priority
	// falls below this fraction of the best accepted score. Rules are
	// emitted as found, not just the single best, so the bound trims
	// hopeless regions without suppressing competitive ones.
	astarBoundFactor = 0.5
)

func init() {
	Register(astarName, func() Strategy { return &astarStrategy{} })
}

// astarStrategy explores best-first by optimistic score, pruning
// branch-and-bound style against the best accepted rule seen so far.
type astarStrategy struct{}

func (s *astarStrategy) Name() string { return astarName }

type astarItem struct {
	rule     scoredRule
	priority float64
}

type astarQueue []astarItem

func (q astarQueue) Len() int { return len(q) }

func (q astarQueue) Less(i, j int) bool { return q[i].priority > q[j].priority }

func (q astarQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *astarQueue) Push(x any) { *q = append(*q, x.(astarItem)) }

func (q *astarQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func (s *astarStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()
	logger := req.logger().Named(astarName)

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(astarName).Observe(time.Since(start).Seconds())
		}()

		priority := func(sr scoredRule) float64 {
			remaining := cfg.Limits.MaxVars - sr.rule.Len()
			if remaining < 0 {
				remaining = 0
			}
			return sr.eval.Score() + astarOptimism*float64(remaining)
		}

		visited := make(map[string]struct{})
		evaluated := 0
		accepted := 0
		bestScore := 0.0
		pruned := 0

		queue := &astarQueue{}
		heap.Init(queue)

		admit := func(sr scoredRule) {
			heap.Push(queue, astarItem{rule: sr, priority: priority(sr)})
		}

		for _, rule := range seeds(req) {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := rule.CanonicalKey()
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}

			ev, err := evaluate(ctx, req, rule)
			if err != nil {
				return err
			}
			evaluated++
			rulesEvaluated.WithLabelValues(astarName).Inc()
			if ev.Accept {
				accepted++
				rulesAccepted.WithLabelValues(astarName).Inc()
				if ev.Score() > bestScore {
					bestScore = ev.Score()
				}
				if !emit(rule) {
					return nil
				}
			}
			admit(scoredRule{rule: rule, eval: ev})
		}

		for queue.Len() > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := heap.Pop(queue).(astarItem)
			if bestScore > 0 && item.priority < bestScore*astarBoundFactor {
				pruned++
				continue
			}

			for _, id := range expansions(req.Graph, item.rule.rule, cfg.Limits) {
				child := item.rule.rule.Extend(id)
				key := child.CanonicalKey()
				if _, seen := visited[key]; seen {
					continue
				}
				visited[key] = struct{}{}

				ev, err := evaluate(ctx, req, child)
				if err != nil {
					return err
				}
				evaluated++
				rulesEvaluated.WithLabelValues(astarName).Inc()
				if ev.Accept {
					accepted++
					rulesAccepted.WithLabelValues(astarName).Inc()
					if ev.Score() > bestScore {
						bestScore = ev.Score()
					}
					if !emit(child) {
						return nil
					}
				}
				admit(scoredRule{rule: child, eval: ev})
			}
		}

		logger.Info("A* search finished",
			zap.Int("evaluated", evaluated),
			zap.Int("accepted", accepted),
			zap.Int("pruned", pruned),
			zap.Float64("best_score", bestScore))
		return nil
	}), nil
}
