package compat

import (
	"context"
	"math"
	"strconv"
	"time"
	"unicode"

	"github.com/sievedata/sieve-engine/pkg/models"
)

const (
	patternThreshold         = 0.70
	distributionCVDelta      = 0.50
	distributionSkewDelta    = 1.00
	distributionNumericMin   = 0.90
	temporalOverlapThreshold = 0.30
)

// patternChecker compares the shape of sampled values: which character
// classes they use and how long they are. Two columns holding the same
// kind of identifier score high even when their value sets differ.
type patternChecker struct {
	deps Deps
}

func (c *patternChecker) Mode() Mode { return ModePattern }

func (c *patternChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	left, err := c.deps.Stats.SampleValues(ctx, pair.Left, c.deps.SampleSize)
	if err != nil {
		return c.deps.degrade(ctx, ModePattern, pair, err)
	}
	right, err := c.deps.Stats.SampleValues(ctx, pair.Right, c.deps.SampleSize)
	if err != nil {
		return c.deps.degrade(ctx, ModePattern, pair, err)
	}
	if len(left) == 0 || len(right) == 0 {
		return Result{Compatible: false}, nil
	}

	classScore := histogramSimilarity(charClassHistogram(left), charClassHistogram(right))
	lengthScore := histogramSimilarity(lengthHistogram(left), lengthHistogram(right))
	score := (classScore + lengthScore) / 2

	return Result{
		Compatible: score >= patternThreshold,
		Score:      score,
		Scores: map[string]float64{
			"char_class": classScore,
			"length":     lengthScore,
		},
	}, nil
}

// charClassHistogram returns the fraction of characters falling in each
// of four classes: digit, letter, space, other.
func charClassHistogram(values []string) []float64 {
	counts := make([]float64, 4)
	var total float64
	for _, v := range values {
		for _, r := range v {
			switch {
			case unicode.IsDigit(r):
				counts[0]++
			case unicode.IsLetter(r):
				counts[1]++
			case unicode.IsSpace(r):
				counts[2]++
			default:
				counts[3]++
			}
			total++
		}
	}
	if total == 0 {
		return counts
	}
	for i := range counts {
		counts[i] /= total
	}
	return counts
}

// lengthHistogram buckets value lengths into 8 exponential bins.
func lengthHistogram(values []string) []float64 {
	counts := make([]float64, 8)
	for _, v := range values {
		bin := 0
		for l := len(v); l > 1 && bin < len(counts)-1; l /= 2 {
			bin++
		}
		counts[bin]++
	}
	total := float64(len(values))
	if total == 0 {
		return counts
	}
	for i := range counts {
		counts[i] /= total
	}
	return counts
}

// histogramSimilarity is the histogram intersection of two equal-length
// normalized histograms, in [0,1].
func histogramSimilarity(a, b []float64) float64 {
	var sim float64
	for i := range a {
		sim += math.Min(a[i], b[i])
	}
	return sim
}

// distributionChecker compares numeric columns by coefficient of
// variation and skewness computed over samples. Columns that are not
// predominantly numeric are incompatible.
type distributionChecker struct {
	deps Deps
}

func (c *distributionChecker) Mode() Mode { return ModeDistribution }

func (c *distributionChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	left, err := c.numericMoments(ctx, pair.Left)
	if err != nil {
		return c.deps.degrade(ctx, ModeDistribution, pair, err)
	}
	right, err := c.numericMoments(ctx, pair.Right)
	if err != nil {
		return c.deps.degrade(ctx, ModeDistribution, pair, err)
	}
	if left == nil || right == nil {
		return Result{Compatible: false}, nil
	}

	cvDelta := math.Abs(left.cv - right.cv)
	skewDelta := math.Abs(left.skewness - right.skewness)
	ok := cvDelta <= distributionCVDelta && skewDelta <= distributionSkewDelta

	score := 0.0
	if ok {
		score = 1 - (cvDelta/distributionCVDelta+skewDelta/distributionSkewDelta)/2
	}
	return Result{
		Compatible: ok,
		Score:      score,
		Scores: map[string]float64{
			"cv_delta":   cvDelta,
			"skew_delta": skewDelta,
		},
	}, nil
}

type moments struct {
	cv       float64
	skewness float64
}

// numericMoments samples a column and computes its moments. Returns nil
// when too few values parse as numbers.
func (c *distributionChecker) numericMoments(ctx context.Context, attr models.Attribute) (*moments, error) {
	values, err := c.deps.Stats.SampleValues(ctx, attr, c.deps.SampleSize)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) {
			nums = append(nums, f)
		}
	}
	if float64(len(nums))/float64(len(values)) < distributionNumericMin || len(nums) < 2 {
		return nil, nil
	}

	var mean float64
	for _, f := range nums {
		mean += f
	}
	mean /= float64(len(nums))

	var m2, m3 float64
	for _, f := range nums {
		d := f - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= float64(len(nums))
	m3 /= float64(len(nums))

	std := math.Sqrt(m2)
	if std == 0 {
		return &moments{}, nil
	}

	m := &moments{skewness: m3 / (std * std * std)}
	if mean != 0 {
		m.cv = std / math.Abs(mean)
	}
	return m, nil
}

// temporalChecker compares time columns by how much their value ranges
// overlap. The range comes from the textual min/max in column stats.
type temporalChecker struct {
	deps Deps
}

func (c *temporalChecker) Mode() Mode { return ModeTemporal }

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeValue(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (c *temporalChecker) timeRange(ctx context.Context, attr models.Attribute) (time.Time, time.Time, bool, error) {
	stats, err := c.deps.Stats.ColumnStats(ctx, attr)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if stats.MinValue == nil || stats.MaxValue == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	lo, ok1 := parseTimeValue(*stats.MinValue)
	hi, ok2 := parseTimeValue(*stats.MaxValue)
	return lo, hi, ok1 && ok2, nil
}

func (c *temporalChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	lo1, hi1, ok, err := c.timeRange(ctx, pair.Left)
	if err != nil {
		return c.deps.degrade(ctx, ModeTemporal, pair, err)
	}
	if !ok {
		return Result{Compatible: false}, nil
	}
	lo2, hi2, ok, err := c.timeRange(ctx, pair.Right)
	if err != nil {
		return c.deps.degrade(ctx, ModeTemporal, pair, err)
	}
	if !ok {
		return Result{Compatible: false}, nil
	}

	overlap := rangeOverlap(lo1, hi1, lo2, hi2)
	return Result{
		Compatible: overlap >= temporalOverlapThreshold,
		Score:      overlap,
	}, nil
}

// rangeOverlap returns the overlap length relative to the shorter of
// the two ranges. Instant ranges overlap fully or not at all.
func rangeOverlap(lo1, hi1, lo2, hi2 time.Time) float64 {
	start := lo1
	if lo2.After(start) {
		start = lo2
	}
	end := hi1
	if hi2.Before(end) {
		end = hi2
	}
	if end.Before(start) {
		return 0
	}

	span1 := hi1.Sub(lo1)
	span2 := hi2.Sub(lo2)
	shorter := span1
	if span2 < shorter {
		shorter = span2
	}
	if shorter <= 0 {
		return 1
	}
	return float64(end.Sub(start)) / float64(shorter)
}
