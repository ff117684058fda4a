package compat

import (
	"context"

	"github.com/sievedata/sieve-engine/pkg/models"
)

const (
	sampledOverlapThreshold = 0.80
	setOverlapThreshold     = 0.50
	subsetMissingThreshold  = 0.05
)

// containmentChecker accepts a pair only when the value sets contain
// each other exactly: both anti-join counts must be zero.
type containmentChecker struct {
	deps Deps
}

func (c *containmentChecker) Mode() Mode { return ModeContainment }

func (c *containmentChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	leftMissing, err := c.deps.Stats.AntiJoinCount(ctx, pair.Left, pair.Right)
	if err != nil {
		return c.deps.degrade(ctx, ModeContainment, pair, err)
	}
	if leftMissing > 0 {
		return Result{Compatible: false}, nil
	}
	rightMissing, err := c.deps.Stats.AntiJoinCount(ctx, pair.Right, pair.Left)
	if err != nil {
		return c.deps.degrade(ctx, ModeContainment, pair, err)
	}
	return boolResult(rightMissing == 0), nil
}

// sampledOverlapChecker samples both columns and accepts when at least
// 80% of the left sample appears in the right sample.
type sampledOverlapChecker struct {
	deps Deps
}

func (c *sampledOverlapChecker) Mode() Mode { return ModeSampledOverlap }

func (c *sampledOverlapChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	rate, err := sampledMatchRate(ctx, c.deps, pair)
	if err != nil {
		return c.deps.degrade(ctx, ModeSampledOverlap, pair, err)
	}
	return Result{
		Compatible: rate >= sampledOverlapThreshold,
		Score:      rate,
	}, nil
}

// sampledMatchRate returns the fraction of the left sample present in
// the right sample. An empty left sample scores zero.
func sampledMatchRate(ctx context.Context, deps Deps, pair models.ColumnPair) (float64, error) {
	left, err := deps.Stats.SampleValues(ctx, pair.Left, deps.SampleSize)
	if err != nil {
		return 0, err
	}
	if len(left) == 0 {
		return 0, nil
	}
	right, err := deps.Stats.SampleValues(ctx, pair.Right, deps.SampleSize)
	if err != nil {
		return 0, err
	}

	rightSet := make(map[string]struct{}, len(right))
	for _, v := range right {
		rightSet[v] = struct{}{}
	}
	matched := 0
	for _, v := range left {
		if _, ok := rightSet[v]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(left)), nil
}

// setOverlapChecker accepts when the distinct-value intersection covers
// at least half of the smaller side.
type setOverlapChecker struct {
	deps Deps
}

func (c *setOverlapChecker) Mode() Mode { return ModeSetOverlap }

func (c *setOverlapChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	overlap, err := c.deps.Stats.OverlapStats(ctx, pair.Left, pair.Right)
	if err != nil {
		return c.deps.degrade(ctx, ModeSetOverlap, pair, err)
	}
	rate := overlap.SmallerSideRate()
	return Result{
		Compatible: rate >= setOverlapThreshold,
		Score:      rate,
		Scores: map[string]float64{
			"left_distinct":  float64(overlap.LeftDistinct),
			"right_distinct": float64(overlap.RightDistinct),
			"shared":         float64(overlap.Shared),
		},
	}, nil
}

// subsetChecker accepts when at most 5% of the left distinct values are
// missing from the right column.
type subsetChecker struct {
	deps Deps
}

func (c *subsetChecker) Mode() Mode { return ModeSubset }

func (c *subsetChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	stats, err := c.deps.Stats.ColumnStats(ctx, pair.Left)
	if err != nil {
		return c.deps.degrade(ctx, ModeSubset, pair, err)
	}
	if stats.DistinctCount == 0 {
		return Result{Compatible: false}, nil
	}
	missing, err := c.deps.Stats.AntiJoinCount(ctx, pair.Left, pair.Right)
	if err != nil {
		return c.deps.degrade(ctx, ModeSubset, pair, err)
	}
	missingRate := float64(missing) / float64(stats.DistinctCount)
	return Result{
		Compatible: missingRate <= subsetMissingThreshold,
		Score:      1 - missingRate,
	}, nil
}
