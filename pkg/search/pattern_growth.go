package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

const patternGrowthName = "pattern_growth"

func init() {
	Register(patternGrowthName, func() Strategy { return &patternGrowthStrategy{} })
}

// patternGrowthStrategy mines rules the way frequent-itemset miners mine
// patterns: size-k node sets with satisfiable bodies are joined pairwise
// into size-k+1 candidates. A body with zero support stays unsatisfiable
// under any extension, so infrequent patterns prune their whole subtree.
type patternGrowthStrategy struct{}

func (s *patternGrowthStrategy) Name() string { return patternGrowthName }

type pattern struct {
	ids  []graph.NodeID // sorted
	rule *graph.CandidateRule
}

func (s *patternGrowthStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()
	logger := req.logger().Named(patternGrowthName)

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(patternGrowthName).Observe(time.Since(start).Seconds())
		}()

		evaluated := 0
		accepted := 0

		judge := func(p pattern) (keep bool, err error) {
			ev, err := evaluate(ctx, req, p.rule)
			if err != nil {
				return false, err
			}
			evaluated++
			rulesEvaluated.WithLabelValues(patternGrowthName).Inc()
			if ev.Accept {
				accepted++
				rulesAccepted.WithLabelValues(patternGrowthName).Inc()
				if !emit(p.rule) {
					return false, context.Canceled
				}
			}
			return ev.Support > 0, nil
		}

		var frequent []pattern
		for _, rule := range seeds(req) {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, _ := rule.Last()
			p := pattern{ids: []graph.NodeID{id}, rule: rule}
			keep, err := judge(p)
			if err != nil {
				return err
			}
			if keep {
				frequent = append(frequent, p)
			}
		}

		size := 1
		for len(frequent) > 1 && size < cfg.Limits.MaxVars {
			frequentKeys := make(map[string]struct{}, len(frequent))
			for _, p := range frequent {
				frequentKeys[p.rule.CanonicalKey()] = struct{}{}
			}

			var next []pattern
			seen := make(map[string]struct{})
			for i := 0; i < len(frequent); i++ {
				for j := i + 1; j < len(frequent); j++ {
					if err := ctx.Err(); err != nil {
						return err
					}
					merged, ok := joinPatterns(frequent[i], frequent[j])
					if !ok {
						continue
					}
					rule, ok := materialize(req.Graph, merged, cfg.Limits)
					if !ok {
						continue
					}
					key := rule.CanonicalKey()
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					if !subsetsFrequent(merged, frequentKeys) {
						continue
					}

					p := pattern{ids: merged, rule: rule}
					keep, err := judge(p)
					if err != nil {
						return err
					}
					if keep {
						next = append(next, p)
					}
				}
			}
			frequent = next
			size++
		}

		logger.Info("pattern growth finished",
			zap.Int("evaluated", evaluated),
			zap.Int("accepted", accepted),
			zap.Int("max_size", size))
		return nil
	}), nil
}

// joinPatterns merges two size-k patterns that agree on their first k-1
// ids into one size-k+1 id set.
func joinPatterns(a, b pattern) ([]graph.NodeID, bool) {
	k := len(a.ids)
	if k != len(b.ids) {
		return nil, false
	}
	for i := 0; i < k-1; i++ {
		if a.ids[i] != b.ids[i] {
			return nil, false
		}
	}
	lastA := a.ids[k-1]
	lastB := b.ids[k-1]
	if lastA == lastB {
		return nil, false
	}
	merged := make([]graph.NodeID, k+1)
	copy(merged, a.ids[:k-1])
	if lastA < lastB {
		merged[k-1], merged[k] = lastA, lastB
	} else {
		merged[k-1], merged[k] = lastB, lastA
	}
	return merged, true
}

// materialize turns a sorted id set into a connected walk within the
// limits. Sets whose sorted order is not connected are dropped; the
// joinable pair will usually be regenerated through another prefix.
func materialize(g *graph.ConstraintGraph, ids []graph.NodeID, limits graph.Limits) (*graph.CandidateRule, bool) {
	if len(ids) == 0 {
		return nil, false
	}
	if !g.ConnectedPath(ids) {
		return nil, false
	}
	rule := graph.NewCandidateRule(ids[0])
	for _, id := range ids[1:] {
		rule = rule.Extend(id)
	}
	if !rule.WithinLimits(g, limits) {
		return nil, false
	}
	return rule, true
}

// subsetsFrequent applies the apriori prune: every size-k subset of a
// size-k+1 candidate must itself be frequent.
func subsetsFrequent(ids []graph.NodeID, frequentKeys map[string]struct{}) bool {
	sub := make([]graph.NodeID, 0, len(ids)-1)
	for drop := range ids {
		sub = sub[:0]
		for i, id := range ids {
			if i != drop {
				sub = append(sub, id)
			}
		}
		if _, ok := frequentKeys[patternKey(sub)]; !ok {
			return false
		}
	}
	return true
}

// patternKey renders sorted ids the same way CanonicalKey does.
func patternKey(ids []graph.NodeID) string {
	sorted := make([]int, len(ids))
	for i, id := range ids {
		sorted[i] = int(id)
	}
	sort.Ints(sorted)
	var sb strings.Builder
	for i, id := range sorted {
		if i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	return sb.String()
}
