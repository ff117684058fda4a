package graph

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/models"
)

// NodeID addresses a predicate in the constraint graph arena.
type NodeID int32

// ConstraintGraph holds every join predicate worth considering and the
// chaining relation between them. Nodes live in an immutable arena addressed
// by NodeID; adjacency is stored as index lists. The graph is built once per
// (database, dependency kind, compatibility mode) and never mutated during
// search, so it is safe to share across goroutines without locking.
type ConstraintGraph struct {
	nodes     []JoinableIndexedAttributes
	adjacency [][]NodeID
	index     map[JoinableIndexedAttributes]NodeID
}

// NodeCount returns the number of predicates in the graph.
func (g *ConstraintGraph) NodeCount() int {
	return len(g.nodes)
}

// Node returns the predicate stored at id. Panics on an out-of-range id;
// ids only come from the graph itself, so that is a programmer error.
func (g *ConstraintGraph) Node(id NodeID) JoinableIndexedAttributes {
	return g.nodes[id]
}

// Neighbors returns the ids of every predicate chainable with id. The
// returned slice is shared with the graph and must not be mutated.
func (g *ConstraintGraph) Neighbors(id NodeID) []NodeID {
	return g.adjacency[id]
}

// Lookup resolves a predicate back to its node id.
func (g *ConstraintGraph) Lookup(p JoinableIndexedAttributes) (NodeID, bool) {
	id, ok := g.index[p]
	return id, ok
}

// EdgeCount returns the number of undirected edges.
func (g *ConstraintGraph) EdgeCount() int {
	total := 0
	for _, adj := range g.adjacency {
		total += len(adj)
	}
	return total / 2
}

// Chainable reports whether two nodes share an attribute and can therefore
// appear adjacent on one walk.
func (g *ConstraintGraph) Chainable(a, b NodeID) bool {
	return g.nodes[a].SharesAttribute(g.nodes[b])
}

// ConnectedPath reports whether every node after the first shares an
// attribute with at least one earlier node, i.e. the walk forms one joined
// chain rather than disconnected fragments. Used by repair logic to check
// minimality of crossover children.
func (g *ConstraintGraph) ConnectedPath(nodes []NodeID) bool {
	if len(nodes) <= 1 {
		return true
	}
	for i := 1; i < len(nodes); i++ {
		linked := false
		for j := 0; j < i; j++ {
			if g.Chainable(nodes[i], nodes[j]) {
				linked = true
				break
			}
		}
		if !linked {
			return false
		}
	}
	return true
}

// Builder materializes a constraint graph from the compatible column pairs.
type Builder struct {
	Mapper        *AttributeMapper
	MaxOccurrence int // occurrences per table, minimum 1
	Logger        *zap.Logger
}

// Build creates one node per (attr1, attr2, occurrence1, occurrence2) within
// the occurrence bound and wires edges between nodes sharing an attribute.
// A pair that fails to resolve through the mapper is logged and skipped;
// construction fails only when no node could be generated at all.
func (b *Builder) Build(pairs []models.ColumnPair) (*ConstraintGraph, error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxOcc := b.MaxOccurrence
	if maxOcc < 1 {
		maxOcc = 1
	}

	g := &ConstraintGraph{index: make(map[JoinableIndexedAttributes]NodeID)}
	skipped := 0
	for _, pair := range pairs {
		lt, lc, err := b.Mapper.AttributeIndex(pair.Left.Table, pair.Left.Column)
		if err != nil {
			logger.Warn("skipping unresolvable column pair",
				zap.String("pair", pair.String()),
				zap.Error(err))
			skipped++
			continue
		}
		rt, rc, err := b.Mapper.AttributeIndex(pair.Right.Table, pair.Right.Column)
		if err != nil {
			logger.Warn("skipping unresolvable column pair",
				zap.String("pair", pair.String()),
				zap.Error(err))
			skipped++
			continue
		}
		for occ1 := 0; occ1 < maxOcc; occ1++ {
			for occ2 := 0; occ2 < maxOcc; occ2++ {
				p := NewPredicate(
					IndexedAttribute{Table: lt, Occurrence: occ1, Attribute: lc},
					IndexedAttribute{Table: rt, Occurrence: occ2, Attribute: rc},
				)
				if p.Trivial() {
					continue
				}
				if _, dup := g.index[p]; dup {
					continue
				}
				id := NodeID(len(g.nodes))
				g.nodes = append(g.nodes, p)
				g.index[p] = id
			}
		}
	}

	if len(g.nodes) == 0 {
		return nil, fmt.Errorf("no graph nodes generated from %d column pairs (%d skipped)", len(pairs), skipped)
	}

	g.adjacency = make([][]NodeID, len(g.nodes))
	for i := 0; i < len(g.nodes); i++ {
		for j := i + 1; j < len(g.nodes); j++ {
			if g.nodes[i].SharesAttribute(g.nodes[j]) {
				g.adjacency[i] = append(g.adjacency[i], NodeID(j))
				g.adjacency[j] = append(g.adjacency[j], NodeID(i))
			}
		}
	}

	logger.Info("constraint graph built",
		zap.Int("nodes", len(g.nodes)),
		zap.Int("edges", g.EdgeCount()),
		zap.Int("skipped_pairs", skipped))
	return g, nil
}
