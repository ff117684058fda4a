package split

import (
	"fmt"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/graph"
)

// ToJoinConditions renders predicates into the datasource condition
// shape, resolving indices back to names through the mapper.
func ToJoinConditions(preds []graph.JoinableIndexedAttributes, m *graph.AttributeMapper) ([]datasource.JoinCondition, error) {
	conds := make([]datasource.JoinCondition, 0, len(preds))
	for _, p := range preds {
		left, err := occurrenceColumn(p.A, m)
		if err != nil {
			return nil, err
		}
		right, err := occurrenceColumn(p.B, m)
		if err != nil {
			return nil, err
		}
		conds = append(conds, datasource.JoinCondition{Left: left, Right: right})
	}
	return conds, nil
}

func occurrenceColumn(ia graph.IndexedAttribute, m *graph.AttributeMapper) (datasource.OccurrenceColumn, error) {
	attr, err := m.ToAttribute(ia)
	if err != nil {
		return datasource.OccurrenceColumn{}, fmt.Errorf("resolve %s: %w", ia, err)
	}
	return datasource.OccurrenceColumn{
		Table:      attr.Table,
		Occurrence: ia.Occurrence,
		Column:     attr.Column,
	}, nil
}

// bodyPredicates resolves a split's body node ids into predicates.
func bodyPredicates(body []graph.NodeID, g *graph.ConstraintGraph) []graph.JoinableIndexedAttributes {
	preds := make([]graph.JoinableIndexedAttributes, len(body))
	for i, id := range body {
		preds[i] = g.Node(id)
	}
	return preds
}
