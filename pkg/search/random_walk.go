package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
	"github.com/sievedata/sieve-engine/pkg/graph"
)

const randomWalkName = "random_walk"

func init() {
	Register(randomWalkName, func() Strategy { return &randomWalkStrategy{} })
}

// randomWalkStrategy samples the graph with restarting random walks.
// Every prefix of a walk is evaluated, so an accepted sub-path is
// emitted even when the full walk is not. Cheap, unguided, and useful
// as a baseline or on graphs too large for exhaustive search.
type randomWalkStrategy struct{}

func (s *randomWalkStrategy) Name() string { return randomWalkName }

func (s *randomWalkStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()
	logger := req.logger().Named(randomWalkName)

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(randomWalkName).Observe(time.Since(start).Seconds())
		}()

		rng := newRand(cfg.Seed)
		emitted := make(map[string]struct{})
		evaluated := 0
		accepted := 0

		var deadline time.Time
		if cfg.TimeBudget > 0 {
			deadline = time.Now().Add(cfg.TimeBudget)
		}

		for walk := 0; walk < cfg.Iterations; walk++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				logger.Info("random walk stopped on time budget",
					zap.Int("walks", walk),
					zap.Int("evaluated", evaluated),
					zap.Int("accepted", accepted))
				return apperrors.ErrBudgetExhausted
			}

			var rule *graph.CandidateRule
			if req.Start != nil {
				rule = graph.NewCandidateRule(*req.Start)
			} else {
				rule = graph.NewCandidateRule(graph.NodeID(rng.Intn(req.Graph.NodeCount())))
			}

			for {
				ev, err := evaluate(ctx, req, rule)
				if err != nil {
					return err
				}
				evaluated++
				rulesEvaluated.WithLabelValues(randomWalkName).Inc()
				if ev.Accept {
					key := rule.CanonicalKey()
					if _, dup := emitted[key]; !dup {
						emitted[key] = struct{}{}
						accepted++
						rulesAccepted.WithLabelValues(randomWalkName).Inc()
						if !emit(rule) {
							return nil
						}
					}
				}

				if rng.Float64() < cfg.RestartProbability {
					break
				}
				next := expansions(req.Graph, rule, cfg.Limits)
				if len(next) == 0 {
					break
				}
				rule = rule.Extend(next[rng.Intn(len(next))])
			}
		}

		logger.Info("random walk finished",
			zap.Int("walks", cfg.Iterations),
			zap.Int("evaluated", evaluated),
			zap.Int("accepted", accepted))
		return nil
	}), nil
}
