package search

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

const (
	geneticName      = "genetic"
	geneticLocalName = "genetic_local"
)

// Fitness weights. The accept bonus lifts accepted individuals above
// every rejected one regardless of raw score, so acceptance is what
// selection breeds for. The length penalty steers selection toward
// minimal walks; the coverage bonus rewards walks spanning more table
// occurrences, so the two pull in opposite directions and only walks
// that buy coverage with their length keep their rank.
const (
	geneticAcceptBonus   = 1.0
	geneticLengthPenalty = 0.05
	geneticCoverageBonus = 0.02
)

func init() {
	Register(geneticName, func() Strategy { return &geneticStrategy{name: geneticName} })
	Register(geneticLocalName, func() Strategy { return &geneticStrategy{name: geneticLocalName, localSearch: true} })
}

// geneticStrategy evolves a population of walks: tournament selection,
// single-point crossover with repair, point mutation, elitism. The
// genetic_local variant additionally hill-climbs the elites each
// generation.
type geneticStrategy struct {
	name        string
	localSearch bool
}

func (s *geneticStrategy) Name() string { return s.name }

func (s *geneticStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		}()

		eng := &geneticEngine{
			name:        s.name,
			req:         req,
			cfg:         cfg,
			rng:         newRand(cfg.Seed),
			logger:      req.logger().Named(s.name),
			emit:        emit,
			emitted:     make(map[string]struct{}),
			localSearch: s.localSearch,
		}
		return eng.run(ctx)
	}), nil
}

type geneticEngine struct {
	name        string
	req         *Request
	cfg         Config
	rng         *rand.Rand
	logger      *zap.Logger
	emit        emitFunc
	emitted     map[string]struct{}
	localSearch bool
	stopped     bool

	evaluated int
	accepted  int
}

func (e *geneticEngine) run(ctx context.Context) error {
	population := make([]scoredRule, 0, e.cfg.PopulationSize)
	for len(population) < e.cfg.PopulationSize {
		sr, err := e.judge(ctx, e.randomWalk())
		if err != nil {
			return err
		}
		if e.stopped {
			return nil
		}
		population = append(population, sr)
	}

	for gen := 0; gen < e.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sort.Slice(population, func(i, j int) bool {
			return e.fitness(population[i]) > e.fitness(population[j])
		})

		elite := e.cfg.EliteSize
		if elite > len(population) {
			elite = len(population)
		}
		next := make([]scoredRule, 0, e.cfg.PopulationSize)
		for i := 0; i < elite; i++ {
			sr := population[i]
			if e.localSearch {
				improved, err := e.hillClimb(ctx, sr)
				if err != nil {
					return err
				}
				sr = improved
			}
			if e.stopped {
				return nil
			}
			next = append(next, sr)
		}

		for len(next) < e.cfg.PopulationSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			child := e.breed(population)
			if child == nil {
				child = e.randomWalk()
			}
			sr, err := e.judge(ctx, child)
			if err != nil {
				return err
			}
			if e.stopped {
				return nil
			}
			next = append(next, sr)
		}
		population = next
	}

	if e.localSearch && len(population) > 0 {
		sort.Slice(population, func(i, j int) bool {
			return e.fitness(population[i]) > e.fitness(population[j])
		})
		// One last, deeper climb on the best individual of the final
		// generation: evolution is over, so every remaining iteration
		// can go into polishing a single walk.
		if _, err := e.hillClimbN(ctx, population[0], finalClimbFactor*e.cfg.LocalSearchIterations); err != nil {
			return err
		}
		if e.stopped {
			return nil
		}
	}

	e.logger.Info("genetic search finished",
		zap.Int("evaluated", e.evaluated),
		zap.Int("accepted", e.accepted),
		zap.Int("generations", e.cfg.Generations),
		zap.Int("population", e.cfg.PopulationSize))
	return nil
}

// judge evaluates one individual and emits it if it is a new acceptance.
func (e *geneticEngine) judge(ctx context.Context, rule *graph.CandidateRule) (scoredRule, error) {
	ev, err := evaluate(ctx, e.req, rule)
	if err != nil {
		return scoredRule{}, err
	}
	e.evaluated++
	rulesEvaluated.WithLabelValues(e.name).Inc()
	if ev.Accept {
		key := rule.CanonicalKey()
		if _, dup := e.emitted[key]; !dup {
			e.emitted[key] = struct{}{}
			e.accepted++
			rulesAccepted.WithLabelValues(e.name).Inc()
			if !e.emit(rule) {
				e.stopped = true
			}
		}
	}
	return scoredRule{rule: rule, eval: ev}, nil
}

func (e *geneticEngine) fitness(sr scoredRule) float64 {
	f := sr.eval.Score()
	if sr.eval.Accept {
		f += geneticAcceptBonus
	}
	f -= geneticLengthPenalty * float64(sr.rule.Len())
	f += geneticCoverageBonus * float64(sr.rule.TableOccurrences(e.req.Graph))
	return f
}

// randomWalk grows a walk from a random seed until a random target
// length, the limits, or a dead end stops it.
func (e *geneticEngine) randomWalk() *graph.CandidateRule {
	var start graph.NodeID
	if e.req.Start != nil {
		start = *e.req.Start
	} else {
		start = graph.NodeID(e.rng.Intn(e.req.Graph.NodeCount()))
	}
	rule := graph.NewCandidateRule(start)

	target := 1 + e.rng.Intn(e.cfg.Limits.MaxVars)
	for rule.Len() < target {
		next := expansions(e.req.Graph, rule, e.cfg.Limits)
		if len(next) == 0 {
			break
		}
		rule = rule.Extend(next[e.rng.Intn(len(next))])
	}
	return rule
}

// breed produces one child by crossover or cloning, then mutation.
// Returns nil when repair fails; the caller substitutes a fresh walk.
func (e *geneticEngine) breed(population []scoredRule) *graph.CandidateRule {
	parentA := e.tournament(population)
	child := parentA.rule
	if e.rng.Float64() < e.cfg.CrossoverRate {
		parentB := e.tournament(population)
		child = e.crossover(parentA.rule, parentB.rule)
		if child == nil {
			return nil
		}
	}
	if e.rng.Float64() < e.cfg.MutationRate {
		child = e.mutate(child)
	}
	if !e.valid(child) {
		return nil
	}
	return child
}

// tournament picks the fittest of TournamentSize random individuals.
func (e *geneticEngine) tournament(population []scoredRule) scoredRule {
	best := population[e.rng.Intn(len(population))]
	for i := 1; i < e.cfg.TournamentSize; i++ {
		challenger := population[e.rng.Intn(len(population))]
		if e.fitness(challenger) > e.fitness(best) {
			best = challenger
		}
	}
	return best
}

// crossover splices a prefix of one parent with compatible genes of the
// other. Genes that would break the walk are skipped; an unrepairable
// child is dropped.
func (e *geneticEngine) crossover(a, b *graph.CandidateRule) *graph.CandidateRule {
	if a.Len() == 0 || b.Len() == 0 {
		return nil
	}
	cut := 1 + e.rng.Intn(a.Len())
	nodes := a.Nodes()

	child := graph.NewCandidateRule(nodes[0])
	for _, id := range nodes[1:cut] {
		if !child.CanAccept(e.req.Graph, id, e.cfg.Limits) {
			break
		}
		child = child.Extend(id)
	}
	for _, id := range b.Nodes() {
		if child.CanAccept(e.req.Graph, id, e.cfg.Limits) && e.chainableToWalk(child, id) {
			child = child.Extend(id)
		}
	}
	if !e.valid(child) {
		return nil
	}
	return child
}

// mutate swaps one gene for a random node. An invalid mutant reverts to
// the original.
func (e *geneticEngine) mutate(rule *graph.CandidateRule) *graph.CandidateRule {
	if rule.Len() == 0 {
		return rule
	}
	pos := e.rng.Intn(rule.Len())
	replacement := graph.NodeID(e.rng.Intn(e.req.Graph.NodeCount()))
	mutant := rule.ReplaceAt(pos, replacement)
	if !e.valid(mutant) {
		return rule
	}
	return mutant
}

// finalClimbFactor deepens the post-evolution climb relative to the
// per-generation one.
const finalClimbFactor = 3

// hillClimb tries local moves on an individual and keeps improvements.
func (e *geneticEngine) hillClimb(ctx context.Context, sr scoredRule) (scoredRule, error) {
	return e.hillClimbN(ctx, sr, e.cfg.LocalSearchIterations)
}

func (e *geneticEngine) hillClimbN(ctx context.Context, sr scoredRule, iterations int) (scoredRule, error) {
	current := sr
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return current, err
		}
		if e.stopped {
			return current, nil
		}
		neighbor := e.localMove(current.rule)
		if neighbor == nil {
			continue
		}
		candidate, err := e.judge(ctx, neighbor)
		if err != nil {
			return current, err
		}
		if e.fitness(candidate) > e.fitness(current) {
			current = candidate
		}
	}
	return current, nil
}

// localMove proposes one neighbor of a walk: grow, shrink, or swap.
func (e *geneticEngine) localMove(rule *graph.CandidateRule) *graph.CandidateRule {
	switch e.rng.Intn(3) {
	case 0:
		next := expansions(e.req.Graph, rule, e.cfg.Limits)
		if len(next) == 0 {
			return nil
		}
		return rule.Extend(next[e.rng.Intn(len(next))])
	case 1:
		if rule.Len() <= 1 {
			return nil
		}
		return rule.Shrink()
	default:
		mutant := e.mutate(rule)
		if mutant == rule {
			return nil
		}
		return mutant
	}
}

func (e *geneticEngine) valid(rule *graph.CandidateRule) bool {
	if rule == nil || rule.Len() == 0 {
		return false
	}
	return rule.WithinLimits(e.req.Graph, e.cfg.Limits) &&
		e.req.Graph.ConnectedPath(rule.Nodes())
}

// chainableToWalk reports whether a node links to any node already on
// the walk, keeping crossover children connected.
func (e *geneticEngine) chainableToWalk(rule *graph.CandidateRule, id graph.NodeID) bool {
	for _, n := range rule.Nodes() {
		if e.req.Graph.Chainable(n, id) {
			return true
		}
	}
	return false
}
