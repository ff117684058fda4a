package graph

import (
	"sort"
	"strconv"
	"strings"
)

// Limits bounds candidate growth. MaxTable caps the number of distinct
// (table, occurrence) pairs a walk may touch; MaxVars caps the walk length.
type Limits struct {
	MaxTable int
	MaxVars  int
}

// CandidateRule is an ordered walk over the constraint graph plus the set of
// nodes already used by the walk. Rules are immutable: Extend and Shrink
// return new values, so strategies can keep snapshots on a stack without
// aliasing hazards.
type CandidateRule struct {
	nodes []NodeID
	used  map[NodeID]struct{}
}

// NewCandidateRule starts a walk at the given node.
func NewCandidateRule(start NodeID) *CandidateRule {
	return &CandidateRule{
		nodes: []NodeID{start},
		used:  map[NodeID]struct{}{start: {}},
	}
}

// EmptyCandidateRule returns a zero-length walk.
func EmptyCandidateRule() *CandidateRule {
	return &CandidateRule{used: map[NodeID]struct{}{}}
}

// Len returns the number of predicates on the walk.
func (r *CandidateRule) Len() int {
	return len(r.nodes)
}

// Nodes returns the ordered node ids of the walk. The returned slice is
// shared with the rule and must not be mutated.
func (r *CandidateRule) Nodes() []NodeID {
	return r.nodes
}

// Last returns the most recently appended node.
func (r *CandidateRule) Last() (NodeID, bool) {
	if len(r.nodes) == 0 {
		return 0, false
	}
	return r.nodes[len(r.nodes)-1], true
}

// Contains reports whether the walk already uses the node.
func (r *CandidateRule) Contains(id NodeID) bool {
	_, ok := r.used[id]
	return ok
}

// Extend returns a new rule with the node appended. The receiver is not
// modified.
func (r *CandidateRule) Extend(id NodeID) *CandidateRule {
	nodes := make([]NodeID, len(r.nodes)+1)
	copy(nodes, r.nodes)
	nodes[len(r.nodes)] = id
	used := make(map[NodeID]struct{}, len(r.used)+1)
	for k := range r.used {
		used[k] = struct{}{}
	}
	used[id] = struct{}{}
	return &CandidateRule{nodes: nodes, used: used}
}

// Shrink returns a new rule with the last node removed. Shrinking an empty
// rule returns an empty rule.
func (r *CandidateRule) Shrink() *CandidateRule {
	if len(r.nodes) == 0 {
		return EmptyCandidateRule()
	}
	nodes := make([]NodeID, len(r.nodes)-1)
	copy(nodes, r.nodes[:len(r.nodes)-1])
	used := make(map[NodeID]struct{}, len(nodes))
	for _, id := range nodes {
		used[id] = struct{}{}
	}
	return &CandidateRule{nodes: nodes, used: used}
}

// ReplaceAt returns a new rule with the node at position i swapped for id.
// Used by mutation operators; callers re-validate the result.
func (r *CandidateRule) ReplaceAt(i int, id NodeID) *CandidateRule {
	if i < 0 || i >= len(r.nodes) {
		return r
	}
	nodes := make([]NodeID, len(r.nodes))
	copy(nodes, r.nodes)
	nodes[i] = id
	used := make(map[NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		used[n] = struct{}{}
	}
	return &CandidateRule{nodes: nodes, used: used}
}

// TableOccurrences counts the distinct (table, occurrence) pairs the walk
// touches across both sides of every predicate.
func (r *CandidateRule) TableOccurrences(g *ConstraintGraph) int {
	type occ struct{ table, occurrence int }
	seen := make(map[occ]struct{}, 2*len(r.nodes))
	for _, id := range r.nodes {
		p := g.Node(id)
		seen[occ{p.A.Table, p.A.Occurrence}] = struct{}{}
		seen[occ{p.B.Table, p.B.Occurrence}] = struct{}{}
	}
	return len(seen)
}

// CanAccept reports whether appending the node keeps the walk inside the
// configured limits: the node is unused, the extended length stays within
// MaxVars, and the distinct (table, occurrence) count stays within MaxTable.
func (r *CandidateRule) CanAccept(g *ConstraintGraph, id NodeID, limits Limits) bool {
	if r.Contains(id) {
		return false
	}
	if limits.MaxVars > 0 && len(r.nodes)+1 > limits.MaxVars {
		return false
	}
	if limits.MaxTable > 0 {
		type occ struct{ table, occurrence int }
		seen := make(map[occ]struct{}, 2*len(r.nodes)+2)
		for _, n := range r.nodes {
			p := g.Node(n)
			seen[occ{p.A.Table, p.A.Occurrence}] = struct{}{}
			seen[occ{p.B.Table, p.B.Occurrence}] = struct{}{}
		}
		p := g.Node(id)
		seen[occ{p.A.Table, p.A.Occurrence}] = struct{}{}
		seen[occ{p.B.Table, p.B.Occurrence}] = struct{}{}
		if len(seen) > limits.MaxTable {
			return false
		}
	}
	return true
}

// WithinLimits re-checks the whole walk against the limits. Used to
// re-validate candidates produced by crossover and mutation.
func (r *CandidateRule) WithinLimits(g *ConstraintGraph, limits Limits) bool {
	if limits.MaxVars > 0 && len(r.nodes) > limits.MaxVars {
		return false
	}
	if limits.MaxTable > 0 && r.TableOccurrences(g) > limits.MaxTable {
		return false
	}
	seen := make(map[NodeID]struct{}, len(r.nodes))
	for _, id := range r.nodes {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

// CanonicalKey returns a strategy-independent identity for the set of nodes
// on the walk: the sorted node ids joined with dashes. Two walks visiting the
// same predicates in different orders share a key. Used for deduplication and
// as the evaluation-cache key.
func (r *CandidateRule) CanonicalKey() string {
	ids := make([]int, len(r.nodes))
	for i, id := range r.nodes {
		ids[i] = int(id)
	}
	sort.Ints(ids)
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte('-')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	return sb.String()
}

// Render produces a human-readable form of the walk using the mapper.
func (r *CandidateRule) Render(g *ConstraintGraph, m *AttributeMapper) string {
	parts := make([]string, len(r.nodes))
	for i, id := range r.nodes {
		parts[i] = m.RenderPredicate(g.Node(id))
	}
	return strings.Join(parts, " AND ")
}
