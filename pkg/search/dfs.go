package search

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const dfsName = "dfs"

func init() {
	Register(dfsName, func() Strategy { return &dfsStrategy{} })
}

// dfsStrategy explores the graph depth-first with an explicit stack.
// Each popped candidate is evaluated before its extensions are pushed,
// so a rejected interior rule still lets deeper rules be reached; the
// oracle prunes by verdict, the limits prune by size.
type dfsStrategy struct{}

func (s *dfsStrategy) Name() string { return dfsName }

func (s *dfsStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()
	logger := req.logger().Named(dfsName)

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(dfsName).Observe(time.Since(start).Seconds())
		}()

		stack := seeds(req)
		// Reverse so the lowest-numbered seed is explored first.
		for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
			stack[i], stack[j] = stack[j], stack[i]
		}

		visited := make(map[string]struct{})
		evaluated := 0
		accepted := 0
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			rule := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

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
			rulesEvaluated.WithLabelValues(dfsName).Inc()
			if ev.Accept {
				accepted++
				rulesAccepted.WithLabelValues(dfsName).Inc()
				if !emit(rule) {
					return nil
				}
			}

			next := expansions(req.Graph, rule, cfg.Limits)
			for i := len(next) - 1; i >= 0; i-- {
				stack = append(stack, rule.Extend(next[i]))
			}
		}

		logger.Info("depth-first search finished",
			zap.Int("evaluated", evaluated),
			zap.Int("accepted", accepted),
			zap.Int("visited", len(visited)))
		return nil
	}), nil
}
