package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

const hybridName = "hybrid"

// hybridBreadthDepth is how many levels the breadth phase explores
// before handing the best frontier rules to the depth phase.
const hybridBreadthDepth = 2

func init() {
	Register(hybridName, func() Strategy { return &hybridStrategy{} })
}

// hybridStrategy runs two phases: a shallow breadth-first sweep scores
// the whole frontier, then depth-first search continues from the
// BeamWidth best rules found. The sweep finds the promising regions,
// the dives mine them.
type hybridStrategy struct{}

func (s *hybridStrategy) Name() string { return hybridName }

func (s *hybridStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()
	logger := req.logger().Named(hybridName)

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(hybridName).Observe(time.Since(start).Seconds())
		}()

		visited := make(map[string]struct{})
		evaluated := 0
		accepted := 0

		judge := func(rule *graph.CandidateRule) (Evaluation, bool, error) {
			key := rule.CanonicalKey()
			if _, seen := visited[key]; seen {
				return Evaluation{}, false, nil
			}
			visited[key] = struct{}{}

			ev, err := evaluate(ctx, req, rule)
			if err != nil {
				return Evaluation{}, false, err
			}
			evaluated++
			rulesEvaluated.WithLabelValues(hybridName).Inc()
			if ev.Accept {
				accepted++
				rulesAccepted.WithLabelValues(hybridName).Inc()
				if !emit(rule) {
					return Evaluation{}, false, context.Canceled
				}
			}
			return ev, true, nil
		}

		// Breadth phase.
		var frontier []scoredRule
		level := seeds(req)
		for depth := 0; depth < hybridBreadthDepth && len(level) > 0; depth++ {
			var next []*graph.CandidateRule
			for _, rule := range level {
				if err := ctx.Err(); err != nil {
					return err
				}
				ev, fresh, err := judge(rule)
				if err != nil {
					return err
				}
				if !fresh {
					continue
				}
				frontier = append(frontier, scoredRule{rule: rule, eval: ev})
				for _, id := range expansions(req.Graph, rule, cfg.Limits) {
					next = append(next, rule.Extend(id))
				}
			}
			level = next
		}

		sortByScore(frontier)
		seedCount := cfg.BeamWidth
		if seedCount > len(frontier) {
			seedCount = len(frontier)
		}

		// Depth phase from the best breadth-phase rules.
		stack := make([]*graph.CandidateRule, 0, seedCount)
		for i := seedCount - 1; i >= 0; i-- {
			stack = append(stack, frontier[i].rule)
		}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			rule := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			for _, id := range expansions(req.Graph, rule, cfg.Limits) {
				child := rule.Extend(id)
				_, fresh, err := judge(child)
				if err != nil {
					return err
				}
				if fresh {
					stack = append(stack, child)
				}
			}
		}

		logger.Info("hybrid search finished",
			zap.Int("evaluated", evaluated),
			zap.Int("accepted", accepted),
			zap.Int("depth_seeds", seedCount))
		return nil
	}), nil
}
