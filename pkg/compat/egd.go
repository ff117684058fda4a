package compat

import (
	"context"

	"github.com/sievedata/sieve-engine/pkg/models"
)

// Component weights of the equality-oriented score. They sum to 1; the
// combined score must reach egdAcceptThreshold for the pair to count as
// equality-compatible.
const (
	egdWeightSampledEquality = 0.40
	egdWeightCardinality     = 0.25
	egdWeightUniqueRatio     = 0.15
	egdWeightKeyCandidacy    = 0.10
	egdWeightTypeClass       = 0.10

	egdAcceptThreshold   = 0.70
	keyCandidacyMinRatio = 0.95
)

// egdChecker combines five lightweight equality signals into one score:
// how often sampled values match, how close the cardinalities are, how
// similar the unique-value ratios are, whether either side looks like a
// key, and whether the type classes agree.
type egdChecker struct {
	deps Deps
}

func newEGDChecker(deps Deps) *egdChecker {
	return &egdChecker{deps: deps}
}

func (c *egdChecker) Mode() Mode { return ModeEGD }

func (c *egdChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	equality, err := sampledMatchRate(ctx, c.deps, pair)
	if err != nil {
		return c.deps.degrade(ctx, ModeEGD, pair, err)
	}

	leftStats, err := c.deps.Stats.ColumnStats(ctx, pair.Left)
	if err != nil {
		return c.deps.degrade(ctx, ModeEGD, pair, err)
	}
	rightStats, err := c.deps.Stats.ColumnStats(ctx, pair.Right)
	if err != nil {
		return c.deps.degrade(ctx, ModeEGD, pair, err)
	}

	cardinality := cardinalityRatio(leftStats.DistinctCount, rightStats.DistinctCount)

	leftUnique := leftStats.UniqueFraction()
	rightUnique := rightStats.UniqueFraction()
	uniqueSim := 1 - absFloat(leftUnique-rightUnique)

	keyScore := 0.0
	if leftUnique >= keyCandidacyMinRatio || rightUnique >= keyCandidacyMinRatio {
		keyScore = 1.0
	}

	typeScore := 0.0
	leftClass, err := columnClass(ctx, c.deps.Schema, pair.Left)
	if err != nil {
		return c.deps.degrade(ctx, ModeEGD, pair, err)
	}
	rightClass, err := columnClass(ctx, c.deps.Schema, pair.Right)
	if err != nil {
		return c.deps.degrade(ctx, ModeEGD, pair, err)
	}
	if leftClass != classOther && leftClass == rightClass {
		typeScore = 1.0
	}

	combined := egdWeightSampledEquality*equality +
		egdWeightCardinality*cardinality +
		egdWeightUniqueRatio*uniqueSim +
		egdWeightKeyCandidacy*keyScore +
		egdWeightTypeClass*typeScore

	return Result{
		Compatible: combined >= egdAcceptThreshold,
		Score:      combined,
		Scores: map[string]float64{
			"sampled_equality": equality,
			"cardinality":      cardinality,
			"unique_ratio":     uniqueSim,
			"key_candidacy":    keyScore,
			"type_class":       typeScore,
		},
	}, nil
}

func cardinalityRatio(a, b int64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
