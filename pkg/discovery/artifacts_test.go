package discovery

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/models"
	"github.com/sievedata/sieve-engine/pkg/split"
)

// artifactFixture builds a small two-table graph:
//
//	node 0: orders#0.id = orders#1.id
//	node 1: orders#0.customer_id = orders#1.customer_id
//	node 2: orders#0.customer_id = customers#0.id
//	node 3: orders#0.customer_id = customers#1.id
//	node 4: orders#1.customer_id = customers#0.id
//	node 5: orders#1.customer_id = customers#1.id
func artifactFixture(t *testing.T) (*graph.ConstraintGraph, *graph.AttributeMapper) {
	t.Helper()
	mapper := graph.NewAttributeMapper([]graph.TableSchema{
		{Name: "orders", Columns: []string{"id", "customer_id"}},
		{Name: "customers", Columns: []string{"id", "name"}},
	})
	builder := &graph.Builder{Mapper: mapper, MaxOccurrence: 2}
	g, err := builder.Build([]models.ColumnPair{
		{
			Left:  models.Attribute{Table: "orders", Column: "id"},
			Right: models.Attribute{Table: "orders", Column: "id"},
		},
		{
			Left:  models.Attribute{Table: "orders", Column: "customer_id"},
			Right: models.Attribute{Table: "orders", Column: "customer_id"},
		},
		{
			Left:  models.Attribute{Table: "orders", Column: "customer_id"},
			Right: models.Attribute{Table: "customers", Column: "id"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 6, g.NodeCount())
	return g, mapper
}

func TestCollectorInclusion(t *testing.T) {
	g, mapper := artifactFixture(t)
	c := newCollector(g, mapper, models.KindInclusion)
	runID := uuid.New()

	ss := split.ScoredSplit{
		Split: split.Split{
			Kind:          models.KindInclusion,
			Body:          []graph.NodeID{2},
			DependentLeft: true,
		},
		Accept:     true,
		Support:    1.0,
		Confidence: 1.0,
	}

	added, err := c.Add(runID, ss)
	require.NoError(t, err)
	assert.True(t, added)

	require.Len(t, c.set.Inclusion, 1)
	ind := c.set.Inclusion[0]
	assert.Equal(t, "orders", ind.DependentTable)
	assert.Equal(t, []string{"customer_id"}, ind.DependentCols)
	assert.Equal(t, "customers", ind.ReferencedTable)
	assert.Equal(t, []string{"id"}, ind.ReferencedCols)

	// The same split from another walk is a duplicate.
	added, err = c.Add(runID, ss)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, c.set.Inclusion, 1)
	assert.Len(t, c.rows, 1)
	assert.Equal(t, runID, c.rows[0].RunID)
}

func TestCollectorFunctional(t *testing.T) {
	g, mapper := artifactFixture(t)
	c := newCollector(g, mapper, models.KindFunctional)

	ss := split.ScoredSplit{
		Split: split.Split{
			Kind: models.KindFunctional,
			Body: []graph.NodeID{1},
			Head: []graph.JoinableIndexedAttributes{g.Node(0)},
		},
		Accept:     true,
		Support:    0.4,
		Confidence: 0.97,
	}

	added, err := c.Add(uuid.New(), ss)
	require.NoError(t, err)
	assert.True(t, added)

	require.Len(t, c.set.Functional, 1)
	fd := c.set.Functional[0]
	assert.Equal(t, "orders", fd.Table)
	assert.Equal(t, []string{"customer_id"}, fd.Determinant)
	assert.Equal(t, "id", fd.Dependent)
	assert.Equal(t, "orders: customer_id -> id", fd.Display())
	assert.InDelta(t, 0.97, fd.Confidence, 1e-9)
}

func TestCollectorTGD(t *testing.T) {
	g, mapper := artifactFixture(t)
	c := newCollector(g, mapper, models.KindTGD)

	ss := split.ScoredSplit{
		Split: split.Split{
			Kind: models.KindTGD,
			Body: []graph.NodeID{2},
			Head: []graph.JoinableIndexedAttributes{g.Node(5)},
		},
		Accept:     true,
		Support:    0.2,
		Confidence: 0.93,
	}

	added, err := c.Add(uuid.New(), ss)
	require.NoError(t, err)
	assert.True(t, added)

	require.Len(t, c.set.TGDs, 1)
	tgd := c.set.TGDs[0]
	assert.Equal(t, []string{"orders.customer_id = customers.id"}, tgd.Body)
	assert.Equal(t, []string{"orders#1.customer_id = customers#1.id"}, tgd.Head)
	assert.Contains(t, tgd.Display, " => ")
	assert.InDelta(t, 0.2, tgd.Accuracy, 1e-9)
}

func TestCollectorEGD(t *testing.T) {
	g, mapper := artifactFixture(t)
	c := newCollector(g, mapper, models.KindEGD)

	head := graph.NewPredicate(
		graph.IndexedAttribute{Table: 1, Occurrence: 0, Attribute: 0},
		graph.IndexedAttribute{Table: 1, Occurrence: 1, Attribute: 0},
	)
	ss := split.ScoredSplit{
		Split: split.Split{
			Kind: models.KindEGD,
			Body: []graph.NodeID{2, 3},
			Head: []graph.JoinableIndexedAttributes{head},
		},
		Accept:     true,
		Support:    0.5,
		Confidence: 1.0,
	}

	added, err := c.Add(uuid.New(), ss)
	require.NoError(t, err)
	assert.True(t, added)

	require.Len(t, c.set.EGDs, 1)
	egd := c.set.EGDs[0]
	assert.Len(t, egd.Body, 2)
	require.Len(t, egd.HeadVariableEqualities, 1)
	eq := egd.HeadVariableEqualities[0]
	assert.Equal(t, models.Attribute{Table: "customers", Column: "id"}, eq.Left)
	assert.Equal(t, models.Attribute{Table: "customers", Column: "id"}, eq.Right)
}

func TestCollectorRejectsUnknownKind(t *testing.T) {
	g, mapper := artifactFixture(t)
	c := newCollector(g, mapper, models.KindInclusion)

	_, err := c.Add(uuid.New(), split.ScoredSplit{Split: split.Split{Kind: "nope"}})
	require.Error(t, err)
}
