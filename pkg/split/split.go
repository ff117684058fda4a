// Package split turns candidate rules into dependency readings and
// validates them against live data. A candidate rule is just a walk
// over join predicates; a Split fixes which predicates form the body
// and which constraint forms the head.
package split

import (
	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// maxTGDNodes caps subset enumeration; rules are far shorter in
// practice because MaxVars bounds the walk.
const maxTGDNodes = 16

// maxEGDHeadCombos caps how many head combinations one rule may
// produce before validation.
const maxEGDHeadCombos = 256

// Split is one dependency reading of a candidate rule: the body node
// ids plus the head equalities that must follow from them.
type Split struct {
	Kind models.DependencyKind

	// Body lists the graph nodes whose predicates form the rule body.
	Body []graph.NodeID

	// Head lists equality constraints. For functional and tuple
	// readings these are predicates of the rule itself; for equality
	// readings they are synthesized variable equalities.
	Head []graph.JoinableIndexedAttributes

	// DependentLeft is set for inclusion readings: true when the A side
	// of the single body node is the dependent (contained) side.
	DependentLeft bool
}

// Splitter enumerates the readings of a rule for one dependency kind.
type Splitter struct {
	graph *graph.ConstraintGraph
}

// NewSplitter creates a splitter over one constraint graph.
func NewSplitter(g *graph.ConstraintGraph) *Splitter {
	return &Splitter{graph: g}
}

// SplitCandidate returns every reading of rule under kind. An empty
// result means the rule has no valid reading and should be rejected.
func (s *Splitter) SplitCandidate(rule *graph.CandidateRule, kind models.DependencyKind) []Split {
	switch kind {
	case models.KindFunctional:
		return s.functionalSplits(rule)
	case models.KindInclusion:
		return s.inclusionSplits(rule)
	case models.KindTGD:
		return s.tupleSplits(rule)
	case models.KindEGD:
		return s.equalitySplits(rule)
	default:
		return nil
	}
}

// functionalSplits reads the rule as X -> Y within one relation: a head
// must equate the same attribute of one table across two occurrences,
// and the remaining predicates form the determinant.
func (s *Splitter) functionalSplits(rule *graph.CandidateRule) []Split {
	nodes := rule.Nodes()
	var splits []Split
	for i, id := range nodes {
		pred := s.graph.Node(id)
		if !isSameAttributeAcrossOccurrences(pred) {
			continue
		}
		body := make([]graph.NodeID, 0, len(nodes)-1)
		body = append(body, nodes[:i]...)
		body = append(body, nodes[i+1:]...)
		if len(body) == 0 {
			continue
		}
		splits = append(splits, Split{
			Kind: models.KindFunctional,
			Body: body,
			Head: []graph.JoinableIndexedAttributes{pred},
		})
	}
	return splits
}

func isSameAttributeAcrossOccurrences(p graph.JoinableIndexedAttributes) bool {
	return p.A.Table == p.B.Table &&
		p.A.Attribute == p.B.Attribute &&
		p.A.Occurrence != p.B.Occurrence
}

// inclusionSplits reads each predicate of the rule as a containment in
// both directions.
func (s *Splitter) inclusionSplits(rule *graph.CandidateRule) []Split {
	nodes := rule.Nodes()
	splits := make([]Split, 0, 2*len(nodes))
	for _, id := range nodes {
		splits = append(splits,
			Split{Kind: models.KindInclusion, Body: []graph.NodeID{id}, DependentLeft: true},
			Split{Kind: models.KindInclusion, Body: []graph.NodeID{id}, DependentLeft: false},
		)
	}
	return splits
}

// tupleSplits reads every proper non-empty subset of the rule as body
// with the complement as head.
func (s *Splitter) tupleSplits(rule *graph.CandidateRule) []Split {
	nodes := rule.Nodes()
	n := len(nodes)
	if n < 2 || n > maxTGDNodes {
		return nil
	}

	var splits []Split
	for mask := 1; mask < (1<<n)-1; mask++ {
		var body []graph.NodeID
		var head []graph.JoinableIndexedAttributes
		for i, id := range nodes {
			if mask&(1<<i) != 0 {
				body = append(body, id)
			} else {
				head = append(head, s.graph.Node(id))
			}
		}
		splits = append(splits, Split{
			Kind: models.KindTGD,
			Body: body,
			Head: head,
		})
	}
	return splits
}

// equalitySplits keeps the whole rule as body and enumerates head sets
// of one to three variable equalities. Head sets whose equalities are
// already implied by the body, or by each other, are dropped by the
// consistency check.
func (s *Splitter) equalitySplits(rule *graph.CandidateRule) []Split {
	nodes := rule.Nodes()
	if len(nodes) == 0 {
		return nil
	}

	bodyPreds := make([]graph.JoinableIndexedAttributes, len(nodes))
	for i, id := range nodes {
		bodyPreds[i] = s.graph.Node(id)
	}

	vars := collectVariables(bodyPreds)
	var candidates []graph.JoinableIndexedAttributes
	for i := 0; i < len(vars); i++ {
		for j := i + 1; j < len(vars); j++ {
			candidates = append(candidates, graph.NewPredicate(vars[i], vars[j]))
		}
	}

	var splits []Split
	appendIfConsistent := func(head []graph.JoinableIndexedAttributes) bool {
		if len(splits) >= maxEGDHeadCombos {
			return false
		}
		if !ConsistentHead(bodyPreds, head) {
			return true
		}
		copied := make([]graph.JoinableIndexedAttributes, len(head))
		copy(copied, head)
		splits = append(splits, Split{
			Kind: models.KindEGD,
			Body: append([]graph.NodeID(nil), nodes...),
			Head: copied,
		})
		return true
	}

	for i := 0; i < len(candidates); i++ {
		if !appendIfConsistent([]graph.JoinableIndexedAttributes{candidates[i]}) {
			return splits
		}
		for j := i + 1; j < len(candidates); j++ {
			if !appendIfConsistent([]graph.JoinableIndexedAttributes{candidates[i], candidates[j]}) {
				return splits
			}
			for k := j + 1; k < len(candidates); k++ {
				if !appendIfConsistent([]graph.JoinableIndexedAttributes{candidates[i], candidates[j], candidates[k]}) {
					return splits
				}
			}
		}
	}
	return splits
}

// collectVariables returns the distinct indexed attributes mentioned by
// the predicates, in first-appearance order.
func collectVariables(preds []graph.JoinableIndexedAttributes) []graph.IndexedAttribute {
	seen := make(map[graph.IndexedAttribute]struct{}, 2*len(preds))
	var vars []graph.IndexedAttribute
	add := func(a graph.IndexedAttribute) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		vars = append(vars, a)
	}
	for _, p := range preds {
		add(p.A)
		add(p.B)
	}
	return vars
}
