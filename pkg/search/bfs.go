package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

const bfsName = "bfs"

func init() {
	Register(bfsName, func() Strategy { return &bfsStrategy{} })
}

// bfsStrategy explores the graph level by level: all length-n candidates
// are evaluated before any length-n+1 candidate. Short rules surface
// first, which matters when the caller stops after enough results.
type bfsStrategy struct{}

func (s *bfsStrategy) Name() string { return bfsName }

func (s *bfsStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()
	logger := req.logger().Named(bfsName)

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(bfsName).Observe(time.Since(start).Seconds())
		}()

		level := seeds(req)
		visited := make(map[string]struct{})
		evaluated := 0
		accepted := 0
		depth := 0

		for len(level) > 0 {
			var next []*graph.CandidateRule
			for _, rule := range level {
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
				rulesEvaluated.WithLabelValues(bfsName).Inc()
				if ev.Accept {
					accepted++
					rulesAccepted.WithLabelValues(bfsName).Inc()
					if !emit(rule) {
						return nil
					}
				}

				for _, id := range expansions(req.Graph, rule, cfg.Limits) {
					next = append(next, rule.Extend(id))
				}
			}
			level = next
			depth++
		}

		logger.Info("breadth-first search finished",
			zap.Int("evaluated", evaluated),
			zap.Int("accepted", accepted),
			zap.Int("levels", depth))
		return nil
	}), nil
}
