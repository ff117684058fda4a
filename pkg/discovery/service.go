// Package discovery orchestrates one mining run end to end: read the
// schema, screen column pairs for compatibility, build the constraint
// graph, explore it with a search strategy, validate the candidates it
// emits, and turn the accepted splits into dependency artifacts.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/apperrors"
	"github.com/sievedata/sieve-engine/pkg/compat"
	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/models"
	"github.com/sievedata/sieve-engine/pkg/repositories"
	"github.com/sievedata/sieve-engine/pkg/search"
	"github.com/sievedata/sieve-engine/pkg/split"
)

// screenWorkers bounds concurrent compatibility checks during graph
// construction.
const screenWorkers = 8

// Progress is a point-in-time snapshot handed to the progress callback
// after each candidate the search emits.
type Progress struct {
	Candidates   int
	Dependencies int
}

// Result is everything one run produced. A failed run still carries the
// artifacts collected before the failure.
type Result struct {
	RunID      uuid.UUID
	Set        models.DependencySet
	GraphNodes int
	GraphEdges int
	Candidates int
	OutputPath string
	Elapsed    time.Duration
}

// Service runs discovery against one datasource. Handle and Logger are
// required; the rest is optional. Catalog repositories, when present,
// record the run and its dependencies. The Progress callback is invoked
// from the run's goroutine and must be fast.
type Service struct {
	Handle       datasource.Handle
	Embedder     compat.EmbeddingProvider
	Runs         repositories.RunRepository
	Dependencies repositories.DependencyRepository
	Progress     func(Progress)
	Logger       *zap.Logger
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger.Named("discovery")
}

// Run executes one discovery run from scratch.
func (s *Service) Run(ctx context.Context, opts Options) (*Result, error) {
	return s.run(ctx, opts, nil)
}

// Resume continues a run from a checkpoint file. An unreadable or
// incompatible checkpoint degrades to a fresh run with a warning; only
// the search state is restored, the graph is rebuilt from live schema.
func (s *Service) Resume(ctx context.Context, path string, opts Options) (*Result, error) {
	logger := s.logger()
	cp, err := search.LoadCheckpoint(path)
	if err != nil {
		logger.Warn("checkpoint unavailable, starting fresh",
			zap.String("path", path), zap.Error(err))
		return s.run(ctx, opts, nil)
	}
	if cp.Strategy != opts.Strategy {
		logger.Warn("checkpoint was written by a different strategy, following the checkpoint",
			zap.String("configured", opts.Strategy),
			zap.String("checkpoint", cp.Strategy))
		opts.Strategy = cp.Strategy
	}
	return s.run(ctx, opts, cp)
}

func (s *Service) run(ctx context.Context, opts Options, resume *search.Checkpoint) (*Result, error) {
	if s.Handle == nil {
		return nil, fmt.Errorf("discovery: service has no datasource handle")
	}
	opts = opts.withDefaults()
	logger := s.logger()
	start := time.Now()

	runID := uuid.New()
	recorded := s.recordRunStart(ctx, runID, opts)

	res := &Result{RunID: runID, Set: models.DependencySet{Kind: opts.Kind}}
	fail := func(err error) (*Result, error) {
		res.Elapsed = time.Since(start)
		runsTotal.WithLabelValues("failed").Inc()
		if recorded {
			s.markFailed(ctx, runID, err)
		}
		return res, err
	}

	g, mapper, err := s.buildGraph(ctx, opts)
	if err != nil {
		return fail(err)
	}
	res.GraphNodes = g.NodeCount()
	res.GraphEdges = g.EdgeCount()

	validator := split.NewValidator(g, mapper, s.Handle, opts.Validator, logger)
	oracle := split.NewPruningOracle(split.NewSplitter(g), validator, opts.Kind, logger)

	strategy, err := search.New(opts.Strategy)
	if err != nil {
		return fail(err)
	}

	req := &search.Request{
		Graph:  g,
		Mapper: mapper,
		Oracle: oracle,
		Cache:  search.NewRuleEvaluationCache(opts.CacheSize),
		Resume: resume,
		Config: opts.Search,
		Logger: logger,
	}
	stream, err := strategy.Search(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("start %s search: %w", opts.Strategy, err))
	}
	defer stream.Close()

	coll := newCollector(g, mapper, opts.Kind)
	for {
		rule, ok := stream.Next(ctx)
		if !ok {
			break
		}
		res.Candidates++

		accepted, err := oracle.AcceptedSplits(ctx, rule)
		if err != nil {
			res.Set = coll.set
			return fail(fmt.Errorf("score candidate %s: %w", rule.CanonicalKey(), err))
		}
		for _, ss := range accepted {
			added, err := coll.Add(runID, ss)
			if err != nil {
				logger.Warn("artifact conversion failed",
					zap.String("rule", rule.Render(g, mapper)), zap.Error(err))
				continue
			}
			if added {
				dependenciesTotal.WithLabelValues(string(ss.Split.Kind)).Inc()
			}
		}
		if s.Progress != nil {
			s.Progress(Progress{Candidates: res.Candidates, Dependencies: coll.set.Len()})
		}
	}
	res.Set = coll.set

	if err := stream.Err(); err != nil {
		if errors.Is(err, apperrors.ErrBudgetExhausted) {
			logger.Info("search budget exhausted", zap.Int("candidates", res.Candidates))
		} else {
			return fail(fmt.Errorf("%s search: %w", opts.Strategy, err))
		}
	}

	if opts.OutputDir != "" {
		path, err := EmitYAML(opts.OutputDir, runID, &res.Set)
		if err != nil {
			return fail(fmt.Errorf("emit results: %w", err))
		}
		res.OutputPath = path
	}

	if recorded {
		s.persistDependencies(ctx, coll.rows)
		if err := s.Runs.MarkCompleted(ctx, runID, res.GraphNodes, res.Candidates, res.Set.Len()); err != nil {
			logger.Warn("failed to mark run completed", zap.Error(err))
		}
	}

	res.Elapsed = time.Since(start)
	runsTotal.WithLabelValues("completed").Inc()
	logger.Info("discovery run finished",
		zap.String("run_id", runID.String()),
		zap.Int("candidates", res.Candidates),
		zap.Int("dependencies", res.Set.Len()),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// BuildGraph runs the pipeline up to graph construction: schema read,
// compatibility screening, composed index creation, constraint graph.
// Exposed for graph inspection without starting a search.
func (s *Service) BuildGraph(ctx context.Context, opts Options) (*graph.ConstraintGraph, *graph.AttributeMapper, error) {
	if s.Handle == nil {
		return nil, nil, fmt.Errorf("discovery: service has no datasource handle")
	}
	return s.buildGraph(ctx, opts.withDefaults())
}

func (s *Service) buildGraph(ctx context.Context, opts Options) (*graph.ConstraintGraph, *graph.AttributeMapper, error) {
	logger := s.logger()

	mapper, err := s.readSchema(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read schema: %w", err)
	}

	pairs, err := s.screenPairs(ctx, mapper, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("screen column pairs: %w", err)
	}
	logger.Info("column pairs screened",
		zap.String("mode", string(opts.Mode)),
		zap.Int("compatible", len(pairs)))

	if err := s.Handle.CreateComposedIndexes(ctx, pairs); err != nil {
		// Missing indexes only slow the probes down.
		logger.Warn("composed index creation incomplete", zap.Error(err))
	}

	builder := graph.Builder{Mapper: mapper, MaxOccurrence: opts.MaxOccurrence, Logger: logger}
	g, err := builder.Build(pairs)
	if err != nil {
		return nil, nil, fmt.Errorf("build constraint graph: %w", err)
	}
	return g, mapper, nil
}

// readSchema loads every table with its columns into a fresh mapper.
func (s *Service) readSchema(ctx context.Context) (*graph.AttributeMapper, error) {
	tables, err := s.Handle.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("schema has no tables")
	}

	schemas := make([]graph.TableSchema, 0, len(tables))
	for _, t := range tables {
		cols, err := s.Handle.AttributeNames(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", t, err)
		}
		schemas = append(schemas, graph.TableSchema{Name: t, Columns: cols})
	}
	return graph.NewAttributeMapper(schemas), nil
}

// screenPairs enumerates every attribute pair and keeps the ones the
// compatibility checker accepts. Checks run concurrently; a checker
// error on one pair fails the screen only when the context is done,
// because checkers degrade data errors to not-compatible themselves.
func (s *Service) screenPairs(ctx context.Context, mapper *graph.AttributeMapper, opts Options) ([]models.ColumnPair, error) {
	attrs := allAttributes(mapper)
	includeSelf := opts.MaxOccurrence >= 2

	// Identity pairs skip the checker: across two occurrences they become
	// the head predicates functional and equality readings are built from,
	// and compatibility of a column with itself is vacuous.
	var candidates []models.ColumnPair
	var identity []models.ColumnPair
	for i := 0; i < len(attrs); i++ {
		if includeSelf {
			identity = append(identity, models.ColumnPair{Left: attrs[i], Right: attrs[i]})
		}
		for j := i + 1; j < len(attrs); j++ {
			candidates = append(candidates, models.ColumnPair{Left: attrs[i], Right: attrs[j]})
		}
	}

	checker := compat.New(opts.Mode, compat.Deps{
		Schema:     s.Handle,
		Stats:      s.Handle,
		Keys:       s.Handle,
		Embedder:   s.Embedder,
		Logger:     s.logger(),
		SampleSize: opts.SampleSize,
		CacheSize:  opts.CacheSize,
	})

	keep := make([]bool, len(candidates))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(screenWorkers)
	for i, pair := range candidates {
		eg.Go(func() error {
			result, err := checker.Check(egCtx, pair)
			if err != nil {
				return err
			}
			mu.Lock()
			keep[i] = result.Compatible
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	pairs := make([]models.ColumnPair, 0, len(identity)+len(candidates))
	pairs = append(pairs, identity...)
	for i, pair := range candidates {
		if keep[i] {
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

// allAttributes flattens the mapper's schema into one deterministic
// attribute list: tables in mapper order, columns in ordinal order.
func allAttributes(mapper *graph.AttributeMapper) []models.Attribute {
	var attrs []models.Attribute
	for ti := 0; ti < mapper.TableCount(); ti++ {
		name, err := mapper.TableName(ti)
		if err != nil {
			continue
		}
		cols, err := mapper.Columns(ti)
		if err != nil {
			continue
		}
		for _, c := range cols {
			attrs = append(attrs, models.Attribute{Table: name, Column: c})
		}
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		if attrs[i].Table != attrs[j].Table {
			return attrs[i].Table < attrs[j].Table
		}
		return attrs[i].Column < attrs[j].Column
	})
	return attrs
}

// recordRunStart writes the catalog row for a new run. Returns false
// when the catalog is absent or the write failed; the run proceeds
// uncatalogued either way.
func (s *Service) recordRunStart(ctx context.Context, runID uuid.UUID, opts Options) bool {
	if s.Runs == nil {
		return false
	}
	run := &models.DiscoveryRun{
		ID:                runID,
		DatasourceType:    s.Handle.Type(),
		Kind:              opts.Kind,
		Strategy:          opts.Strategy,
		CompatibilityMode: string(opts.Mode),
		Status:            models.RunStatusRunning,
		StartedAt:         time.Now().UTC(),
	}
	if err := s.Runs.Create(ctx, run); err != nil {
		s.logger().Warn("failed to record run in catalog", zap.Error(err))
		return false
	}
	return true
}

func (s *Service) markFailed(ctx context.Context, runID uuid.UUID, cause error) {
	if err := s.Runs.MarkFailed(ctx, runID, cause.Error()); err != nil {
		s.logger().Warn("failed to mark run failed", zap.Error(err))
	}
}

func (s *Service) persistDependencies(ctx context.Context, rows []*models.DiscoveredDependency) {
	if s.Dependencies == nil || len(rows) == 0 {
		return
	}
	if err := s.Dependencies.CreateBatch(ctx, rows); err != nil {
		s.logger().Warn("failed to persist dependencies", zap.Error(err))
	}
}
