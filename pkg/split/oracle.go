package split

import (
	"context"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/models"
	"github.com/sievedata/sieve-engine/pkg/search"
)

// ScoredSplit is one split with its measured verdict.
type ScoredSplit struct {
	Split      Split
	Accept     bool
	Support    float64
	Confidence float64
}

// PruningOracle judges candidate rules for the search strategies: a
// rule is worth what its best split is worth. Splits that score
// perfectly are additionally vetted before they may count as accepted.
type PruningOracle struct {
	splitter  *Splitter
	validator *Validator
	kind      models.DependencyKind
	logger    *zap.Logger
}

var _ search.Oracle = (*PruningOracle)(nil)

// NewPruningOracle wires a splitter and validator into a search oracle.
func NewPruningOracle(splitter *Splitter, validator *Validator, kind models.DependencyKind, logger *zap.Logger) *PruningOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PruningOracle{
		splitter:  splitter,
		validator: validator,
		kind:      kind,
		logger:    logger.Named("oracle"),
	}
}

// Evaluate implements search.Oracle. The returned evaluation carries the
// best split's scores; Accept is true when at least one split passed.
func (o *PruningOracle) Evaluate(ctx context.Context, rule *graph.CandidateRule) (search.Evaluation, error) {
	scored, err := o.ScoreSplits(ctx, rule)
	if err != nil {
		return search.Evaluation{}, err
	}

	var best search.Evaluation
	bestScore := -1.0
	for _, ss := range scored {
		ev := search.Evaluation{
			Accept:     ss.Accept,
			Support:    ss.Support,
			Confidence: ss.Confidence,
		}
		// An accepted split always outranks a rejected one.
		score := ev.Score()
		if ev.Accept {
			score += 1
		}
		if score > bestScore {
			bestScore = score
			best = ev
		}
	}
	return best, nil
}

// ScoreSplits measures every split of a rule. Perfect-confidence splits
// must also pass the perfect-rule check to stay accepted; the scores are
// kept either way so strategies can still rank the rule.
func (o *PruningOracle) ScoreSplits(ctx context.Context, rule *graph.CandidateRule) ([]ScoredSplit, error) {
	splits := o.splitter.SplitCandidate(rule, o.kind)
	scored := make([]ScoredSplit, 0, len(splits))
	for _, s := range splits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		accept, support, confidence := o.validator.EvaluatePruning(ctx, s)
		if accept && confidence >= 1 && !o.validator.ValidatePerfectRule(ctx, s) {
			o.logger.Debug("perfect split failed vetting",
				zap.String("kind", string(s.Kind)),
				zap.Float64("support", support))
			accept = false
		}
		scored = append(scored, ScoredSplit{
			Split:      s,
			Accept:     accept,
			Support:    support,
			Confidence: confidence,
		})
	}
	return scored, nil
}

// AcceptedSplits filters ScoreSplits down to the splits that passed.
func (o *PruningOracle) AcceptedSplits(ctx context.Context, rule *graph.CandidateRule) ([]ScoredSplit, error) {
	scored, err := o.ScoreSplits(ctx, rule)
	if err != nil {
		return nil, err
	}
	out := scored[:0]
	for _, ss := range scored {
		if ss.Accept {
			out = append(out, ss)
		}
	}
	return out, nil
}
