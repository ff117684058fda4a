package search

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
	"github.com/sievedata/sieve-engine/pkg/graph"
)

const (
	mctsName          = "mcts"
	mctsHeuristicName = "mcts_heuristic"
)

const (
	// mctsDiscount shrinks rewards as they propagate toward the root in
	// the heuristic variant, so deep wins do not dominate shallow ones.
	mctsDiscount = 0.9

	// mctsScreenFactor drops an expanded child from the tree when its
	// score falls below this fraction of its parent's. Only the
	// heuristic variant screens.
	mctsScreenFactor = 0.5
)

func init() {
	Register(mctsName, func() Strategy { return &mctsStrategy{name: mctsName} })
	Register(mctsHeuristicName, func() Strategy {
		return &mctsStrategy{name: mctsHeuristicName, heuristic: true}
	})
}

// mctsStrategy runs Monte Carlo tree search over walks: UCB1 selection,
// one-node expansion, random playout, reward backpropagation. The
// heuristic variant screens weak children out of the tree and discounts
// rewards on the way up.
type mctsStrategy struct {
	name      string
	heuristic bool
}

func (s *mctsStrategy) Name() string { return s.name }

type mctsNode struct {
	rule     *graph.CandidateRule
	eval     Evaluation
	parent   *mctsNode
	children []*mctsNode
	untried  []graph.NodeID
	visits   int
	reward   float64
}

func (s *mctsStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		}()

		eng := &mctsEngine{
			name:      s.name,
			req:       req,
			cfg:       cfg,
			rng:       newRand(cfg.Seed),
			logger:    req.logger().Named(s.name),
			emit:      emit,
			emitted:   make(map[string]struct{}),
			heuristic: s.heuristic,
		}
		return eng.run(ctx)
	}), nil
}

type mctsEngine struct {
	name      string
	req       *Request
	cfg       Config
	rng       *rand.Rand
	logger    *zap.Logger
	emit      emitFunc
	emitted   map[string]struct{}
	heuristic bool
	stopped   bool

	evaluated int
	accepted  int
}

func (e *mctsEngine) run(ctx context.Context) error {
	root := &mctsNode{
		rule:    graph.EmptyCandidateRule(),
		untried: e.rootMoves(),
	}

	var deadline time.Time
	if e.cfg.TimeBudget > 0 {
		deadline = time.Now().Add(e.cfg.TimeBudget)
	}
	// Stop early once a quarter of the budget passes without a better
	// playout.
	stallLimit := e.cfg.Iterations / 4
	if stallLimit < 25 {
		stallLimit = 25
	}

	bestReward := 0.0
	stalled := 0
	iterations := 0
	for i := 0; i < e.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.stopped {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			e.logger.Info("monte carlo search stopped on time budget",
				zap.Int("iterations", iterations),
				zap.Int("evaluated", e.evaluated),
				zap.Int("accepted", e.accepted))
			return apperrors.ErrBudgetExhausted
		}
		if stalled >= stallLimit {
			break
		}
		iterations++

		node := e.selectNode(root)
		expanded, err := e.expand(ctx, node)
		if err != nil {
			return err
		}
		if expanded != nil {
			node = expanded
		}

		reward, err := e.playout(ctx, node)
		if err != nil {
			return err
		}
		e.backpropagate(node, reward)

		if reward > bestReward {
			bestReward = reward
			stalled = 0
		} else {
			stalled++
		}
	}

	e.logger.Info("monte carlo search finished",
		zap.Int("iterations", iterations),
		zap.Int("evaluated", e.evaluated),
		zap.Int("accepted", e.accepted),
		zap.Float64("best_reward", bestReward))
	return nil
}

func (e *mctsEngine) rootMoves() []graph.NodeID {
	if e.req.Start != nil {
		return []graph.NodeID{*e.req.Start}
	}
	moves := make([]graph.NodeID, e.req.Graph.NodeCount())
	for i := range moves {
		moves[i] = graph.NodeID(i)
	}
	return moves
}

// selectNode descends through fully expanded nodes by UCB1.
func (e *mctsEngine) selectNode(root *mctsNode) *mctsNode {
	node := root
	for len(node.untried) == 0 && len(node.children) > 0 {
		node = e.bestChild(node)
	}
	return node
}

func (e *mctsEngine) bestChild(node *mctsNode) *mctsNode {
	best := node.children[0]
	bestValue := math.Inf(-1)
	for _, child := range node.children {
		if child.visits == 0 {
			return child
		}
		exploit := child.reward / float64(child.visits)
		explore := e.cfg.ExplorationWeight *
			math.Sqrt(math.Log(float64(node.visits))/float64(child.visits))
		if v := exploit + explore; v > bestValue {
			bestValue = v
			best = child
		}
	}
	return best
}

// expand realizes one untried move as a child node. The heuristic
// variant evaluates and may refuse to keep a weak child; its evaluation
// still happened and is cached either way.
func (e *mctsEngine) expand(ctx context.Context, node *mctsNode) (*mctsNode, error) {
	if len(node.untried) == 0 {
		return nil, nil
	}
	pick := e.rng.Intn(len(node.untried))
	id := node.untried[pick]
	node.untried[pick] = node.untried[len(node.untried)-1]
	node.untried = node.untried[:len(node.untried)-1]

	var rule *graph.CandidateRule
	if node.rule.Len() == 0 {
		rule = graph.NewCandidateRule(id)
	} else {
		rule = node.rule.Extend(id)
	}

	ev, err := e.judge(ctx, rule)
	if err != nil {
		return nil, err
	}
	if e.heuristic && node.rule.Len() > 0 && ev.Score() < node.eval.Score()*mctsScreenFactor {
		return nil, nil
	}

	child := &mctsNode{
		rule:    rule,
		eval:    ev,
		parent:  node,
		untried: expansions(e.req.Graph, rule, e.cfg.Limits),
	}
	node.children = append(node.children, child)
	return child, nil
}

// playout extends the node's walk at random and returns the best score
// seen along the way.
func (e *mctsEngine) playout(ctx context.Context, node *mctsNode) (float64, error) {
	best := node.eval.Score()
	rule := node.rule
	for depth := 0; depth < e.cfg.PlayoutDepth; depth++ {
		if e.stopped {
			return best, nil
		}
		next := expansions(e.req.Graph, rule, e.cfg.Limits)
		if len(next) == 0 {
			break
		}
		rule = rule.Extend(next[e.rng.Intn(len(next))])
		ev, err := e.judge(ctx, rule)
		if err != nil {
			return 0, err
		}
		if ev.Score() > best {
			best = ev.Score()
		}
	}
	return best, nil
}

func (e *mctsEngine) backpropagate(node *mctsNode, reward float64) {
	for n := node; n != nil; n = n.parent {
		n.visits++
		n.reward += reward
		if e.heuristic {
			reward *= mctsDiscount
		}
	}
}

// judge evaluates a rule, emitting it on first acceptance.
func (e *mctsEngine) judge(ctx context.Context, rule *graph.CandidateRule) (Evaluation, error) {
	ev, err := evaluate(ctx, e.req, rule)
	if err != nil {
		return Evaluation{}, err
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
	return ev, nil
}
