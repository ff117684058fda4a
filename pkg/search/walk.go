package search

import (
	"math/rand"
	"sort"
	"time"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

// seeds returns the starting rules for a request: one rule at the pinned
// start node, or one per graph node when no start is pinned.
func seeds(req *Request) []*graph.CandidateRule {
	if req.Start != nil {
		return []*graph.CandidateRule{graph.NewCandidateRule(*req.Start)}
	}
	out := make([]*graph.CandidateRule, req.Graph.NodeCount())
	for i := range out {
		out[i] = graph.NewCandidateRule(graph.NodeID(i))
	}
	return out
}

// expansions lists the nodes a rule can legally grow by: neighbors of
// the walk's last node that pass the limit checks.
func expansions(g *graph.ConstraintGraph, rule *graph.CandidateRule, limits graph.Limits) []graph.NodeID {
	last, ok := rule.Last()
	if !ok {
		return nil
	}
	neighbors := g.Neighbors(last)
	out := make([]graph.NodeID, 0, len(neighbors))
	for _, id := range neighbors {
		if rule.CanAccept(g, id, limits) {
			out = append(out, id)
		}
	}
	return out
}

// scoredRule pairs a rule with its evaluation for ranking.
type scoredRule struct {
	rule *graph.CandidateRule
	eval Evaluation
}

// sortByScore orders rules best-first.
func sortByScore(rules []scoredRule) {
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].eval.Score() > rules[j].eval.Score()
	})
}

// newRand builds the random source for a stochastic strategy. A zero
// seed derives one from the clock so repeated runs differ.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
