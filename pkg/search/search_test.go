package search

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// buildTestGraph constructs the shared fixture:
//
//	node 0: orders#0.id = orders#1.id                (isolated)
//	node 1: orders#0.customer_id = orders#1.customer_id
//	node 2: orders#0.customer_id = customers#0.id
//	node 3: orders#0.customer_id = customers#1.id
//	node 4: orders#1.customer_id = customers#0.id
//	node 5: orders#1.customer_id = customers#1.id
//
// With MaxVars 2 the reachable node sets are the six singletons plus
// the eight chainable pairs.
func buildTestGraph(t *testing.T) (*graph.ConstraintGraph, *graph.AttributeMapper) {
	t.Helper()
	mapper := graph.NewAttributeMapper([]graph.TableSchema{
		{Name: "orders", Columns: []string{"id", "customer_id", "total"}},
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

// setOracle accepts exactly the rules whose canonical key appears in
// accept; everything else gets a mild rejection that still carries
// support so pattern growth keeps going.
type setOracle struct {
	accept map[string]Evaluation
	calls  atomic.Int64
}

func newSetOracle(keys ...string) *setOracle {
	o := &setOracle{accept: make(map[string]Evaluation, len(keys))}
	for _, key := range keys {
		o.accept[key] = Evaluation{Accept: true, Support: 0.5, Confidence: 0.95}
	}
	return o
}

func (o *setOracle) Evaluate(_ context.Context, rule *graph.CandidateRule) (Evaluation, error) {
	o.calls.Add(1)
	if ev, ok := o.accept[rule.CanonicalKey()]; ok {
		return ev, nil
	}
	return Evaluation{Support: 0.3, Confidence: 0.2}, nil
}

func testConfig() Config {
	return Config{Limits: graph.Limits{MaxTable: 4, MaxVars: 2}}
}

func collectKeys(t *testing.T, s Stream) []string {
	t.Helper()
	rules, err := Collect(context.Background(), s)
	require.NoError(t, err)
	keys := make([]string, len(rules))
	for i, rule := range rules {
		keys[i] = rule.CanonicalKey()
	}
	sort.Strings(keys)
	return keys
}

func runStrategy(t *testing.T, name string, req *Request) []string {
	t.Helper()
	strategy, err := New(name)
	require.NoError(t, err)
	stream, err := strategy.Search(context.Background(), req)
	require.NoError(t, err)
	return collectKeys(t, stream)
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{
		"astar", "beam", "bfs", "dfs", "genetic", "genetic_local", "hybrid",
		"mcts", "mcts_heuristic", "parallel_bfs", "parallel_dfs",
		"pattern_growth", "random_walk",
	} {
		strategy, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, strategy.Name())
	}
	assert.Equal(t, 13, len(Names()))

	_, err := New("simulated_annealing")
	assert.ErrorIs(t, err, apperrors.ErrUnknownStrategy)
}

func TestRequestValidation(t *testing.T) {
	g, mapper := buildTestGraph(t)
	strategy, err := New("bfs")
	require.NoError(t, err)

	_, err = strategy.Search(context.Background(), &Request{Oracle: newSetOracle()})
	assert.ErrorIs(t, err, apperrors.ErrEmptyGraph)

	_, err = strategy.Search(context.Background(), &Request{Graph: g, Mapper: mapper})
	assert.Error(t, err)

	badStart := graph.NodeID(99)
	_, err = strategy.Search(context.Background(), &Request{
		Graph: g, Mapper: mapper, Oracle: newSetOracle(), Start: &badStart,
	})
	assert.Error(t, err)
}

func TestEvaluationScore(t *testing.T) {
	ev := Evaluation{Support: 0.5, Confidence: 0.9}
	assert.InDelta(t, 0.78, ev.Score(), 1e-9)
	assert.Zero(t, Evaluation{}.Score())
}

func TestStreamCancellation(t *testing.T) {
	g, mapper := buildTestGraph(t)
	strategy, err := New("bfs")
	require.NoError(t, err)

	stream, err := strategy.Search(context.Background(), &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: newSetOracle("1", "1-2"),
		Config: testConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	first, ok := stream.Next(ctx)
	require.True(t, ok)
	require.NotNil(t, first)

	cancel()
	_, ok = stream.Next(ctx)
	assert.False(t, ok)
	assert.NoError(t, stream.Err())
}

func TestStreamClose(t *testing.T) {
	g, mapper := buildTestGraph(t)
	strategy, err := New("dfs")
	require.NoError(t, err)

	stream, err := strategy.Search(context.Background(), &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: newSetOracle("1", "1-2"),
		Config: testConfig(),
	})
	require.NoError(t, err)

	stream.Close()
	// Whatever was in flight, the stream drains promptly after Close.
	for {
		if _, ok := stream.Next(context.Background()); !ok {
			break
		}
	}
	assert.NoError(t, stream.Err())
}

func TestStartPinsSearch(t *testing.T) {
	g, mapper := buildTestGraph(t)
	start := graph.NodeID(5)

	keys := runStrategy(t, "bfs", &Request{
		Graph:  g,
		Mapper: mapper,
		Start:  &start,
		Oracle: newSetOracle("1", "1-2", "4-5"),
		Config: testConfig(),
	})
	// Only sets reachable from node 5 qualify: {5}, {1,5}, {3,5}, {4,5}.
	assert.Equal(t, []string{"4-5"}, keys)
}
