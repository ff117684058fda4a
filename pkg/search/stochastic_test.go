package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
	"github.com/sievedata/sieve-engine/pkg/graph"
)

// containsNodeOracle accepts every rule whose walk uses the given node.
// Acceptance this plentiful keeps the stochastic assertions robust.
func containsNodeOracle(id graph.NodeID) Oracle {
	return OracleFunc(func(_ context.Context, rule *graph.CandidateRule) (Evaluation, error) {
		if rule.Contains(id) {
			return Evaluation{Accept: true, Support: 0.5, Confidence: 0.9}, nil
		}
		return Evaluation{Support: 0.3, Confidence: 0.2}, nil
	})
}

// The stochastic strategies may not enumerate everything, but whatever
// they emit must be accepted, deduplicated, and error free.
func TestStochasticStrategiesEmitOnlyAccepted(t *testing.T) {
	for _, name := range []string{"genetic", "genetic_local", "random_walk", "mcts", "mcts_heuristic"} {
		t.Run(name, func(t *testing.T) {
			g, mapper := buildTestGraph(t)

			cfg := testConfig()
			cfg.Seed = 7
			strategy, err := New(name)
			require.NoError(t, err)
			stream, err := strategy.Search(context.Background(), &Request{
				Graph:  g,
				Mapper: mapper,
				Oracle: containsNodeOracle(1),
				Config: cfg,
			})
			require.NoError(t, err)

			rules, err := Collect(context.Background(), stream)
			require.NoError(t, err)
			require.NotEmpty(t, rules)

			seen := make(map[string]struct{}, len(rules))
			for _, rule := range rules {
				assert.True(t, rule.Contains(1), "emitted a rejected rule: %s", rule.CanonicalKey())
				key := rule.CanonicalKey()
				_, dup := seen[key]
				assert.False(t, dup, "duplicate emission: %s", key)
				seen[key] = struct{}{}
			}
		})
	}
}

// MCTS expands every root move before anything else, so an accepted
// singleton is always found.
func TestMCTSFindsAcceptedSingleton(t *testing.T) {
	g, mapper := buildTestGraph(t)

	cfg := testConfig()
	cfg.Seed = 11
	keys := runStrategy(t, "mcts", &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: newSetOracle("1"),
		Config: cfg,
	})
	assert.Contains(t, keys, "1")
}

func TestGeneticRespectsLimits(t *testing.T) {
	g, mapper := buildTestGraph(t)

	cfg := testConfig()
	cfg.Seed = 3
	cfg.PopulationSize = 20
	cfg.Generations = 5
	strategy, err := New("genetic")
	require.NoError(t, err)
	stream, err := strategy.Search(context.Background(), &Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: containsNodeOracle(1),
		Config: cfg,
	})
	require.NoError(t, err)

	rules, err := Collect(context.Background(), stream)
	require.NoError(t, err)
	for _, rule := range rules {
		assert.LessOrEqual(t, rule.Len(), 2)
		assert.True(t, rule.WithinLimits(g, cfg.Limits))
	}
}

// An exhausted time budget is not a silent stop: the stream ends with
// the sentinel so callers can tell a cut-short run from a complete one.
func TestTimeBudgetSurfacesSentinel(t *testing.T) {
	for _, name := range []string{"random_walk", "mcts"} {
		t.Run(name, func(t *testing.T) {
			g, mapper := buildTestGraph(t)

			cfg := testConfig()
			cfg.Seed = 7
			cfg.TimeBudget = time.Nanosecond
			strategy, err := New(name)
			require.NoError(t, err)
			stream, err := strategy.Search(context.Background(), &Request{
				Graph:  g,
				Mapper: mapper,
				Oracle: containsNodeOracle(1),
				Config: cfg,
			})
			require.NoError(t, err)

			_, err = Collect(context.Background(), stream)
			assert.ErrorIs(t, err, apperrors.ErrBudgetExhausted)
		})
	}
}

func TestGeneticFitnessTerms(t *testing.T) {
	g, mapper := buildTestGraph(t)
	eng := &geneticEngine{
		req: &Request{Graph: g, Mapper: mapper},
		cfg: testConfig().withDefaults(),
	}
	eval := Evaluation{Accept: true, Support: 0.5, Confidence: 0.9}

	// A longer walk with the same evaluation ranks below the short one:
	// the length penalty outweighs the coverage its extra node buys.
	short := scoredRule{rule: graph.NewCandidateRule(1), eval: eval}
	long := scoredRule{rule: graph.NewCandidateRule(1).Extend(2), eval: eval}
	assert.Greater(t, eng.fitness(short), eng.fitness(long))

	// At equal length, the walk spanning more table occurrences wins.
	narrow := scoredRule{rule: graph.NewCandidateRule(0).Extend(1), eval: eval}
	wide := scoredRule{rule: graph.NewCandidateRule(1).Extend(2), eval: eval}
	require.Equal(t, narrow.rule.Len(), wide.rule.Len())
	require.Greater(t, wide.rule.TableOccurrences(g), narrow.rule.TableOccurrences(g))
	assert.Greater(t, eng.fitness(wide), eng.fitness(narrow))

	// Acceptance still dominates both shaping terms.
	rejected := scoredRule{rule: graph.NewCandidateRule(1), eval: Evaluation{Support: 0.5, Confidence: 0.9}}
	assert.Greater(t, eng.fitness(long), eng.fitness(rejected))
}

// With zero generations the evolution loop never runs, so any extra
// evaluations beyond the initial population come from the closing
// refinement of the best individual. The engine is driven directly to
// keep the zero out of reach of the config defaults.
func TestGeneticLocalRefinesBestAfterLastGeneration(t *testing.T) {
	run := func(local bool) int {
		g, mapper := buildTestGraph(t)
		calls := 0
		oracle := OracleFunc(func(_ context.Context, rule *graph.CandidateRule) (Evaluation, error) {
			calls++
			if rule.Contains(1) {
				return Evaluation{Accept: true, Support: 0.5, Confidence: 0.9}, nil
			}
			return Evaluation{Support: 0.3, Confidence: 0.2}, nil
		})

		cfg := testConfig().withDefaults()
		cfg.PopulationSize = 4
		cfg.Generations = 0
		cfg.LocalSearchIterations = 10
		eng := &geneticEngine{
			name:        geneticLocalName,
			req:         &Request{Graph: g, Mapper: mapper, Oracle: oracle},
			cfg:         cfg,
			rng:         newRand(7),
			logger:      zap.NewNop(),
			emit:        func(*graph.CandidateRule) bool { return true },
			emitted:     make(map[string]struct{}),
			localSearch: local,
		}
		require.NoError(t, eng.run(context.Background()))
		return calls
	}

	plain := run(false)
	assert.Equal(t, 4, plain)
	assert.Greater(t, run(true), plain)
}

func TestRandomWalkStartPinned(t *testing.T) {
	g, mapper := buildTestGraph(t)
	start := graph.NodeID(1)

	cfg := testConfig()
	cfg.Seed = 5
	cfg.Iterations = 50
	keys := runStrategy(t, "random_walk", &Request{
		Graph:  g,
		Mapper: mapper,
		Start:  &start,
		Oracle: newSetOracle("1"),
		Config: cfg,
	})
	// Every walk begins at node 1, so its singleton is always judged.
	assert.Equal(t, []string{"1"}, keys)
}
