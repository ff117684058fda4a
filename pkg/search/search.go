// Package search explores the constraint graph for candidate rules worth
// validating. A Strategy walks the graph, consults an Oracle for each
// candidate, and streams back the candidates the oracle accepted.
//
// All strategies operate on the same contract: the graph is immutable, the
// oracle is the only source of truth about rule quality, and results are
// delivered through a pull-based Stream so callers control pacing and
// cancellation. Strategies register themselves at init time; New resolves
// them by name.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
	"github.com/sievedata/sieve-engine/pkg/graph"
)

// Evaluation is the oracle's verdict on one candidate rule.
type Evaluation struct {
	Accept     bool    `json:"accept"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
}

// Score collapses an evaluation into a single ranking value. Confidence
// dominates; support separates rules of equal confidence.
func (e Evaluation) Score() float64 {
	return 0.7*e.Confidence + 0.3*e.Support
}

// Oracle judges candidate rules. Implementations are expected to be safe
// for concurrent use; parallel strategies call Evaluate from many
// goroutines.
type Oracle interface {
	Evaluate(ctx context.Context, rule *graph.CandidateRule) (Evaluation, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, rule *graph.CandidateRule) (Evaluation, error)

// Evaluate implements Oracle.
func (f OracleFunc) Evaluate(ctx context.Context, rule *graph.CandidateRule) (Evaluation, error) {
	return f(ctx, rule)
}

// Stream delivers accepted candidates as the strategy finds them. Next
// blocks until a candidate is available, the strategy finishes, or the
// context is done; the second return is false once the stream is
// exhausted. Err reports the first failure after exhaustion, nil on a
// clean finish. Close stops the producing strategy; it is safe to call
// more than once.
type Stream interface {
	Next(ctx context.Context) (*graph.CandidateRule, bool)
	Err() error
	Close()
}

// Config carries every tunable a strategy might read. Strategies ignore
// the knobs that do not apply to them.
type Config struct {
	// Limits bounds candidate growth for every strategy.
	Limits graph.Limits

	// BeamWidth is the number of candidates kept per level by beam
	// search, and the number of seeds handed from the breadth phase to
	// the depth phase of the hybrid strategy.
	BeamWidth int

	// Genetic knobs.
	PopulationSize int
	Generations    int
	EliteSize      int
	TournamentSize int
	CrossoverRate  float64
	MutationRate   float64

	// LocalSearchIterations is the hill-climbing budget applied to each
	// elite candidate by the genetic+local strategy.
	LocalSearchIterations int

	// Iterations caps the main loop of the sampling strategies (MCTS
	// iterations, random-walk restarts).
	Iterations int

	// ExplorationWeight is the UCB1 exploration constant.
	ExplorationWeight float64

	// PlayoutDepth caps random playout length during MCTS simulation.
	PlayoutDepth int

	// TimeBudget stops budget-aware strategies early. Zero means no
	// time bound.
	TimeBudget time.Duration

	// RestartProbability makes a random walk jump back to a fresh seed
	// mid-walk.
	RestartProbability float64

	// Workers is the evaluation parallelism of the parallel strategies.
	Workers int

	// BatchSize is how many frontier candidates the parallel strategies
	// evaluate per round.
	BatchSize int

	// RateLimit caps oracle evaluations per second across all workers.
	// Zero disables limiting.
	RateLimit float64

	// CheckpointPath enables periodic checkpointing when non-empty.
	CheckpointPath     string
	CheckpointInterval time.Duration

	// Seed fixes the random source of the stochastic strategies. Zero
	// seeds from the clock.
	Seed int64
}

// withDefaults fills in the zero values a strategy cannot work with.
func (c Config) withDefaults() Config {
	if c.Limits.MaxVars <= 0 {
		c.Limits.MaxVars = 4
	}
	if c.Limits.MaxTable <= 0 {
		c.Limits.MaxTable = 4
	}
	if c.BeamWidth <= 0 {
		c.BeamWidth = 8
	}
	if c.PopulationSize <= 0 {
		c.PopulationSize = 50
	}
	if c.Generations <= 0 {
		c.Generations = 20
	}
	if c.EliteSize <= 0 {
		c.EliteSize = 2
	}
	if c.TournamentSize <= 0 {
		c.TournamentSize = 3
	}
	if c.CrossoverRate <= 0 {
		c.CrossoverRate = 0.8
	}
	if c.MutationRate <= 0 {
		c.MutationRate = 0.1
	}
	if c.LocalSearchIterations <= 0 {
		c.LocalSearchIterations = 10
	}
	if c.Iterations <= 0 {
		c.Iterations = 200
	}
	if c.ExplorationWeight <= 0 {
		c.ExplorationWeight = 1.41
	}
	if c.PlayoutDepth <= 0 {
		c.PlayoutDepth = 3
	}
	if c.RestartProbability <= 0 {
		c.RestartProbability = 0.15
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = 30 * time.Second
	}
	return c
}

// Request is one search invocation. Start narrows the search to walks
// beginning at that node; nil seeds the strategy with every node.
type Request struct {
	Graph  *graph.ConstraintGraph
	Mapper *graph.AttributeMapper
	Start  *graph.NodeID
	Oracle Oracle
	Cache  *RuleEvaluationCache
	Resume *Checkpoint
	Config Config
	Logger *zap.Logger
}

func (r *Request) validate() error {
	if r.Graph == nil || r.Graph.NodeCount() == 0 {
		return apperrors.ErrEmptyGraph
	}
	if r.Oracle == nil {
		return fmt.Errorf("search: request has no oracle")
	}
	if r.Start != nil {
		if *r.Start < 0 || int(*r.Start) >= r.Graph.NodeCount() {
			return fmt.Errorf("search: start node %d out of range [0,%d)", *r.Start, r.Graph.NodeCount())
		}
	}
	return nil
}

func (r *Request) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Strategy is one way of exploring the graph. Search returns immediately;
// exploration runs behind the returned Stream.
type Strategy interface {
	Name() string
	Search(ctx context.Context, req *Request) (Stream, error)
}
