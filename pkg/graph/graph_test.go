package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/models"
)

func TestBuilder_SingleCompatiblePairYieldsOneNode(t *testing.T) {
	// Customer(id, name, city), Order(id, customer_id, amount) with the
	// single foreign-key pair Order.customer_id -> Customer.id and one
	// occurrence per table.
	m := NewAttributeMapper([]TableSchema{
		{Name: "customer", Columns: []string{"id", "name", "city"}},
		{Name: "orders", Columns: []string{"id", "customer_id", "amount"}},
	})
	b := &Builder{Mapper: m, MaxOccurrence: 1}

	g, err := b.Build([]models.ColumnPair{
		{Left: models.Attribute{Table: "orders", Column: "customer_id"}, Right: models.Attribute{Table: "customer", Column: "id"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.Neighbors(0))
}

func TestBuilder_OccurrenceBoundMultipliesNodes(t *testing.T) {
	m := NewAttributeMapper([]TableSchema{
		{Name: "customer", Columns: []string{"id"}},
		{Name: "orders", Columns: []string{"customer_id"}},
	})
	b := &Builder{Mapper: m, MaxOccurrence: 2}

	g, err := b.Build([]models.ColumnPair{
		{Left: models.Attribute{Table: "orders", Column: "customer_id"}, Right: models.Attribute{Table: "customer", Column: "id"}},
	})
	require.NoError(t, err)

	// (occ1, occ2) in {0,1}^2 gives four distinct cross-table predicates.
	assert.Equal(t, 4, g.NodeCount())
}

func TestBuilder_SelfJoinSkipsTrivialPredicates(t *testing.T) {
	m := NewAttributeMapper([]TableSchema{
		{Name: "employee", Columns: []string{"id", "manager_id"}},
	})
	b := &Builder{Mapper: m, MaxOccurrence: 2}

	g, err := b.Build([]models.ColumnPair{
		{Left: models.Attribute{Table: "employee", Column: "id"}, Right: models.Attribute{Table: "employee", Column: "id"}},
	})
	require.NoError(t, err)

	// Only the cross-occurrence predicate employee#0.id = employee#1.id
	// survives: same-occurrence comparisons are trivially true.
	assert.Equal(t, 1, g.NodeCount())
	p := g.Node(0)
	assert.NotEqual(t, p.A.Occurrence, p.B.Occurrence)
}

func TestBuilder_SkipsUnresolvablePairs(t *testing.T) {
	m := NewAttributeMapper([]TableSchema{
		{Name: "customer", Columns: []string{"id"}},
		{Name: "orders", Columns: []string{"customer_id"}},
	})
	b := &Builder{Mapper: m, MaxOccurrence: 1, Logger: zap.NewNop()}

	g, err := b.Build([]models.ColumnPair{
		{Left: models.Attribute{Table: "ghost", Column: "id"}, Right: models.Attribute{Table: "customer", Column: "id"}},
		{Left: models.Attribute{Table: "orders", Column: "customer_id"}, Right: models.Attribute{Table: "customer", Column: "id"}},
	})
	require.NoError(t, err, "one bad pair must not abort construction")
	assert.Equal(t, 1, g.NodeCount())
}

func TestBuilder_FailsWhenNothingGenerated(t *testing.T) {
	m := NewAttributeMapper([]TableSchema{{Name: "customer", Columns: []string{"id"}}})
	b := &Builder{Mapper: m, MaxOccurrence: 1}

	_, err := b.Build(nil)
	assert.Error(t, err)

	_, err = b.Build([]models.ColumnPair{
		{Left: models.Attribute{Table: "ghost", Column: "x"}, Right: models.Attribute{Table: "ghost", Column: "y"}},
	})
	assert.Error(t, err)
}

func TestBuilder_DeduplicatesMirroredPairs(t *testing.T) {
	m := NewAttributeMapper([]TableSchema{
		{Name: "customer", Columns: []string{"id"}},
		{Name: "orders", Columns: []string{"customer_id"}},
	})
	b := &Builder{Mapper: m, MaxOccurrence: 1}

	g, err := b.Build([]models.ColumnPair{
		{Left: models.Attribute{Table: "orders", Column: "customer_id"}, Right: models.Attribute{Table: "customer", Column: "id"}},
		{Left: models.Attribute{Table: "customer", Column: "id"}, Right: models.Attribute{Table: "orders", Column: "customer_id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, g.NodeCount(), "mirrored pairs collapse onto one normalized node")
}

func TestConstraintGraph_AdjacencyBySharedAttribute(t *testing.T) {
	g, _ := chainGraph(t)

	assert.ElementsMatch(t, []NodeID{1}, g.Neighbors(0))
	assert.ElementsMatch(t, []NodeID{0}, g.Neighbors(1))
	assert.Empty(t, g.Neighbors(2))
	assert.True(t, g.Chainable(0, 1))
	assert.False(t, g.Chainable(0, 2))
}

func TestConstraintGraph_ConnectedPath(t *testing.T) {
	g, _ := chainGraph(t)

	assert.True(t, g.ConnectedPath([]NodeID{0}))
	assert.True(t, g.ConnectedPath([]NodeID{0, 1}))
	assert.False(t, g.ConnectedPath([]NodeID{0, 2}), "disconnected fragments are not a chain")
}
