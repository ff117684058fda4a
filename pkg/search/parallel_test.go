package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
	"github.com/sievedata/sieve-engine/pkg/graph"
)

func TestParallelStrategiesFindAllAccepted(t *testing.T) {
	for _, name := range []string{"parallel_bfs", "parallel_dfs"} {
		t.Run(name, func(t *testing.T) {
			g, mapper := buildTestGraph(t)

			cfg := testConfig()
			cfg.Workers = 4
			cfg.BatchSize = 3
			keys := runStrategy(t, name, &Request{
				Graph:  g,
				Mapper: mapper,
				Oracle: newSetOracle("1", "1-2"),
				Config: cfg,
			})
			assert.Equal(t, []string{"1", "1-2"}, keys)
		})
	}
}

func TestParallelPropagatesOracleError(t *testing.T) {
	g, mapper := buildTestGraph(t)

	boom := errors.New("database went away")
	oracle := OracleFunc(func(context.Context, *graph.CandidateRule) (Evaluation, error) {
		return Evaluation{}, boom
	})

	strategy, err := New("parallel_bfs")
	require.NoError(t, err)
	stream, err := strategy.Search(context.Background(), &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: oracle,
		Config: testConfig(),
	})
	require.NoError(t, err)

	_, collectErr := Collect(context.Background(), stream)
	assert.ErrorIs(t, collectErr, boom)
}

func TestWorkerPoolPreservesBatchOrder(t *testing.T) {
	g, mapper := buildTestGraph(t)
	req := &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: newSetOracle("1"),
		Config: testConfig(),
	}

	batch := []*graph.CandidateRule{
		graph.NewCandidateRule(0),
		graph.NewCandidateRule(1),
		graph.NewCandidateRule(2),
	}
	pool := newWorkerPool(req.Config.withDefaults())
	results, err := pool.evaluateBatch(context.Background(), req, batch)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, sr := range results {
		assert.Same(t, batch[i], sr.rule)
	}
	assert.False(t, results[0].eval.Accept)
	assert.True(t, results[1].eval.Accept)
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.checkpoint")

	saved := &Checkpoint{
		Strategy:   "parallel_bfs",
		GraphNodes: 6,
		Level:      1,
		Processed:  9,
		Frontier:   [][]graph.NodeID{{1, 2}, {4}},
		Visited:    []string{"0", "3"},
		Cache:      map[string]Evaluation{"1": {Accept: true, Support: 0.5, Confidence: 0.95}},
	}
	require.NoError(t, SaveCheckpoint(path, saved))

	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, saved.Strategy, loaded.Strategy)
	assert.Equal(t, saved.Frontier, loaded.Frontier)
	assert.Equal(t, saved.Visited, loaded.Visited)
	assert.Equal(t, saved.Cache, loaded.Cache)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestLoadCheckpointVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.checkpoint")
	require.NoError(t, SaveCheckpoint(path, &Checkpoint{Strategy: "dfs"}))

	raw, err := LoadCheckpoint(path)
	require.NoError(t, err)
	raw.Version = 99
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = LoadCheckpoint(path)
	assert.ErrorIs(t, err, apperrors.ErrCheckpointVersion)
}

func TestResumeSkipsVisited(t *testing.T) {
	g, mapper := buildTestGraph(t)

	cfg := testConfig()
	resume := &Checkpoint{
		Version:    1,
		Strategy:   "parallel_bfs",
		GraphNodes: g.NodeCount(),
		Frontier:   [][]graph.NodeID{{1}, {2}},
		Visited:    []string{"1"},
	}
	keys := runStrategy(t, "parallel_bfs", &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: newSetOracle("1", "1-2"),
		Resume: resume,
		Config: cfg,
	})
	// {1} was already processed before the checkpoint; only node 2's
	// side of the frontier may emit.
	assert.Equal(t, []string{"1-2"}, keys)
}

func TestResumeRejectsOtherStrategy(t *testing.T) {
	g, mapper := buildTestGraph(t)

	strategy, err := New("parallel_dfs")
	require.NoError(t, err)
	_, err = strategy.Search(context.Background(), &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: newSetOracle(),
		Resume: &Checkpoint{Version: 1, Strategy: "parallel_bfs", GraphNodes: g.NodeCount()},
		Config: testConfig(),
	})
	assert.ErrorIs(t, err, apperrors.ErrCheckpointStrategy)
}

func TestResumeRejectsMismatchedGraph(t *testing.T) {
	g, mapper := buildTestGraph(t)

	strategy, err := New("parallel_bfs")
	require.NoError(t, err)
	_, err = strategy.Search(context.Background(), &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: newSetOracle(),
		Resume: &Checkpoint{Version: 1, Strategy: "parallel_bfs", GraphNodes: 3},
		Config: testConfig(),
	})
	assert.ErrorIs(t, err, apperrors.ErrCheckpointVersion)
}

func TestParallelWritesCheckpoints(t *testing.T) {
	g, mapper := buildTestGraph(t)
	path := filepath.Join(t.TempDir(), "search.checkpoint")

	cfg := testConfig()
	cfg.CheckpointPath = path
	cfg.CheckpointInterval = time.Nanosecond
	runStrategy(t, "parallel_bfs", &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: newSetOracle("1"),
		Config: cfg,
	})

	cp, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, "parallel_bfs", cp.Strategy)
	// The run completed, so the terminal checkpoint has no frontier.
	assert.Empty(t, cp.Frontier)
	assert.Equal(t, int64(14), cp.Processed)
}

func TestRestoreFrontierDropsInvalidWalks(t *testing.T) {
	g, _ := buildTestGraph(t)

	cp := &Checkpoint{Frontier: [][]graph.NodeID{
		{1, 2},
		{99},
		{},
		{1, 2, 3}, // over MaxVars
	}}
	frontier := restoreFrontier(cp, g, graph.Limits{MaxTable: 4, MaxVars: 2})
	require.Len(t, frontier, 1)
	assert.Equal(t, "1-2", frontier[0].CanonicalKey())
}
