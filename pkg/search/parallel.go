package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

const (
	parallelBFSName = "parallel_bfs"
	parallelDFSName = "parallel_dfs"
)

func init() {
	Register(parallelBFSName, func() Strategy { return &parallelStrategy{name: parallelBFSName} })
	Register(parallelDFSName, func() Strategy {
		return &parallelStrategy{name: parallelDFSName, depthFirst: true}
	})
}

// parallelStrategy explores like BFS or DFS but evaluates frontier
// candidates in concurrent batches through a worker pool. Long runs
// checkpoint their frontier periodically and can resume from where a
// previous run stopped.
type parallelStrategy struct {
	name       string
	depthFirst bool
}

func (s *parallelStrategy) Name() string { return s.name }

func (s *parallelStrategy) Search(ctx context.Context, req *Request) (Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	cfg := req.Config.withDefaults()
	logger := req.logger().Named(s.name)

	visited := make(map[string]struct{})
	var frontier []*graph.CandidateRule
	var processed int64
	level := 0

	if req.Resume != nil {
		if err := validateResume(req.Resume, s.name, req.Graph); err != nil {
			return nil, err
		}
		frontier = restoreFrontier(req.Resume, req.Graph, cfg.Limits)
		for _, key := range req.Resume.Visited {
			visited[key] = struct{}{}
		}
		if req.Cache != nil && req.Resume.Cache != nil {
			req.Cache.Restore(req.Resume.Cache)
		}
		processed = req.Resume.Processed
		level = req.Resume.Level
		logger.Info("resuming from checkpoint",
			zap.Int("frontier", len(frontier)),
			zap.Int("visited", len(visited)),
			zap.Int64("processed", processed))
	} else {
		frontier = seeds(req)
	}

	return newStream(ctx, func(ctx context.Context, emit emitFunc) error {
		start := time.Now()
		defer func() {
			searchDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		}()

		eng := &parallelEngine{
			name:      s.name,
			req:       req,
			cfg:       cfg,
			logger:    logger,
			emit:      emit,
			pool:      newWorkerPool(cfg),
			visited:   visited,
			processed: processed,
			level:     level,
			lastSave:  time.Now(),
		}
		if s.depthFirst {
			return eng.runDepthFirst(ctx, frontier)
		}
		return eng.runBreadthFirst(ctx, frontier)
	}), nil
}

type parallelEngine struct {
	name   string
	req    *Request
	cfg    Config
	logger *zap.Logger
	emit   emitFunc
	pool   *workerPool

	visited   map[string]struct{}
	processed int64
	level     int
	accepted  int
	lastSave  time.Time
	stopped   bool
}

func (e *parallelEngine) runBreadthFirst(ctx context.Context, frontier []*graph.CandidateRule) error {
	for len(frontier) > 0 {
		pending := e.claim(frontier)
		var next []*graph.CandidateRule

		for len(pending) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch := pending
			if len(batch) > e.cfg.BatchSize {
				batch = batch[:e.cfg.BatchSize]
			}
			pending = pending[len(batch):]

			results, err := e.pool.evaluateBatch(ctx, e.req, batch)
			if err != nil {
				return err
			}
			for _, sr := range results {
				e.account(sr)
				if e.stopped {
					return nil
				}
				for _, id := range expansions(e.req.Graph, sr.rule, e.cfg.Limits) {
					next = append(next, sr.rule.Extend(id))
				}
			}
			e.maybeCheckpoint(append(append([]*graph.CandidateRule(nil), pending...), next...))
		}
		frontier = next
		e.level++
	}
	e.finish()
	return nil
}

func (e *parallelEngine) runDepthFirst(ctx context.Context, frontier []*graph.CandidateRule) error {
	stack := frontier
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := e.cfg.BatchSize
		if n > len(stack) {
			n = len(stack)
		}
		batch := e.claim(stack[len(stack)-n:])
		stack = stack[:len(stack)-n]

		results, err := e.pool.evaluateBatch(ctx, e.req, batch)
		if err != nil {
			return err
		}
		for _, sr := range results {
			e.account(sr)
			if e.stopped {
				return nil
			}
			next := expansions(e.req.Graph, sr.rule, e.cfg.Limits)
			for i := len(next) - 1; i >= 0; i-- {
				stack = append(stack, sr.rule.Extend(next[i]))
			}
		}
		e.maybeCheckpoint(stack)
	}
	e.finish()
	return nil
}

// claim filters out already-visited rules and marks the rest visited.
func (e *parallelEngine) claim(rules []*graph.CandidateRule) []*graph.CandidateRule {
	out := make([]*graph.CandidateRule, 0, len(rules))
	for _, rule := range rules {
		key := rule.CanonicalKey()
		if _, seen := e.visited[key]; seen {
			continue
		}
		e.visited[key] = struct{}{}
		out = append(out, rule)
	}
	return out
}

// account records one verdict and emits acceptances.
func (e *parallelEngine) account(sr scoredRule) {
	e.processed++
	rulesEvaluated.WithLabelValues(e.name).Inc()
	if sr.eval.Accept {
		e.accepted++
		rulesAccepted.WithLabelValues(e.name).Inc()
		if !e.emit(sr.rule) {
			e.stopped = true
		}
	}
}

// maybeCheckpoint saves the pending frontier when the interval elapsed.
// A failed save is logged and skipped; losing a checkpoint must not
// lose the search.
func (e *parallelEngine) maybeCheckpoint(pending []*graph.CandidateRule) {
	if e.cfg.CheckpointPath == "" || time.Since(e.lastSave) < e.cfg.CheckpointInterval {
		return
	}
	e.lastSave = time.Now()
	if err := SaveCheckpoint(e.cfg.CheckpointPath, e.checkpoint(pending)); err != nil {
		e.logger.Warn("checkpoint save failed",
			zap.String("path", e.cfg.CheckpointPath), zap.Error(err))
		return
	}
	checkpointSaves.Inc()
	e.logger.Debug("checkpoint saved",
		zap.Int("frontier", len(pending)),
		zap.Int64("processed", e.processed))
}

// finish writes a terminal checkpoint so a resume of a completed run
// has nothing left to do.
func (e *parallelEngine) finish() {
	if e.cfg.CheckpointPath != "" {
		if err := SaveCheckpoint(e.cfg.CheckpointPath, e.checkpoint(nil)); err != nil {
			e.logger.Warn("final checkpoint save failed",
				zap.String("path", e.cfg.CheckpointPath), zap.Error(err))
		}
	}
	e.logger.Info("parallel search finished",
		zap.Int64("processed", e.processed),
		zap.Int("accepted", e.accepted),
		zap.Int("visited", len(e.visited)))
}

func (e *parallelEngine) checkpoint(pending []*graph.CandidateRule) *Checkpoint {
	cp := &Checkpoint{
		Strategy:   e.name,
		GraphNodes: e.req.Graph.NodeCount(),
		Level:      e.level,
		Processed:  e.processed,
		Frontier:   make([][]graph.NodeID, 0, len(pending)),
		Visited:    make([]string, 0, len(e.visited)),
	}
	// Pending rules may already be claim-marked; drop their keys from
	// the visited list or the resumed run would skip them.
	pendingKeys := make(map[string]struct{}, len(pending))
	for _, rule := range pending {
		walk := make([]graph.NodeID, len(rule.Nodes()))
		copy(walk, rule.Nodes())
		cp.Frontier = append(cp.Frontier, walk)
		pendingKeys[rule.CanonicalKey()] = struct{}{}
	}
	for key := range e.visited {
		if _, claimed := pendingKeys[key]; claimed {
			continue
		}
		cp.Visited = append(cp.Visited, key)
	}
	if e.req.Cache != nil {
		cp.Cache = e.req.Cache.Snapshot()
	}
	return cp
}
