package search

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const beamName = "beam"

func init() {
	Register(beamName, func() Strategy { return &beamStrategy{} })
}

// beamStrategy is breadth-first search that keeps only the BeamWidth
// best-scoring candidates per level. Everything below the cut is
// discarded unexpanded, trading completeness for a bounded frontier on
// dense graphs.
type beamStrategy struct{}

func (s *beamStrategy) Name() string { return beamName }

func (s *beamStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()
	logger := req.logger().Named(beamName)

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(beamName).Observe(time.Since(start).Seconds())
		}()

		visited := make(map[string]struct{})
		evaluated := 0
		accepted := 0

		beam := make([]scoredRule, 0, len(seeds(req)))
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
			rulesEvaluated.WithLabelValues(beamName).Inc()
			if ev.Accept {
				accepted++
				rulesAccepted.WithLabelValues(beamName).Inc()
				if !emit(rule) {
					return nil
				}
			}
			beam = append(beam, scoredRule{rule: rule, eval: ev})
		}

		for len(beam) > 0 {
			sortByScore(beam)
			if len(beam) > cfg.BeamWidth {
				beam = beam[:cfg.BeamWidth]
			}

			var next []scoredRule
			for _, sr := range beam {
				for _, id := range expansions(req.Graph, sr.rule, cfg.Limits) {
					if err := ctx.Err(); err != nil {
						return err
					}
					child := sr.rule.Extend(id)
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
					rulesEvaluated.WithLabelValues(beamName).Inc()
					if ev.Accept {
						accepted++
						rulesAccepted.WithLabelValues(beamName).Inc()
						if !emit(child) {
							return nil
						}
					}
					next = append(next, scoredRule{rule: child, eval: ev})
				}
			}
			beam = next
		}

		logger.Info("beam search finished",
			zap.Int("evaluated", evaluated),
			zap.Int("accepted", accepted),
			zap.Int("beam_width", cfg.BeamWidth))
		return nil
	}), nil
}
