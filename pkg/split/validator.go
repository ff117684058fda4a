package split

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/logging"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// DataAccess is the slice of a datasource handle the validator needs.
type DataAccess interface {
	datasource.JoinCounter
	datasource.RowCounter
	datasource.StatsAnalyzer
	datasource.ForeignKeyReader
}

// ValidatorConfig fixes the acceptance thresholds for one run.
type ValidatorConfig struct {
	// SupportThreshold is the minimum body-and-head fraction of the
	// eligible population.
	SupportThreshold float64

	// ConfidenceThreshold is the minimum body-and-head fraction of the
	// body-only count.
	ConfidenceThreshold float64

	// DisjointSemantics forces distinct occurrences of one table to
	// bind distinct rows when counting.
	DisjointSemantics bool

	// MinPerfectVolume is the smallest involved-table row count that
	// lets a perfect score stand on volume alone.
	MinPerfectVolume int64
}

// DefaultValidatorConfig mirrors the thresholds used by discovery runs
// that do not override them.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		SupportThreshold:    0.01,
		ConfidenceThreshold: 0.90,
		MinPerfectVolume:    100,
	}
}

// Validator measures splits against live data: how many rows satisfy
// the body, how many also satisfy the head, and whether an apparently
// perfect rule deserves trust.
type Validator struct {
	graph  *graph.ConstraintGraph
	mapper *graph.AttributeMapper
	data   DataAccess
	cfg    ValidatorConfig
	logger *zap.Logger

	rowsMu    sync.Mutex
	rowCounts map[string]int64

	fkOnce sync.Once
	fkErr  error
	fkSet  map[models.ColumnPair]struct{}
}

// NewValidator creates a validator bound to one graph and datasource.
// A nil logger is replaced with a no-op logger.
func NewValidator(g *graph.ConstraintGraph, m *graph.AttributeMapper, data DataAccess, cfg ValidatorConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		graph:     g,
		mapper:    m,
		data:      data,
		cfg:       cfg,
		logger:    logger.Named("validator"),
		rowCounts: make(map[string]int64),
	}
}

// EvaluatePruning measures one split. A zero body count or any query
// failure rejects with zero scores; measurement never aborts a search.
func (v *Validator) EvaluatePruning(ctx context.Context, s Split) (accept bool, support, confidence float64) {
	if s.Kind == models.KindInclusion {
		return v.evaluateInclusion(ctx, s)
	}

	bodyPreds := bodyPredicates(s.Body, v.graph)
	bodyConds, err := ToJoinConditions(bodyPreds, v.mapper)
	if err != nil {
		v.reject("resolve body", s, err)
		return false, 0, 0
	}
	allPreds := append(append([]graph.JoinableIndexedAttributes(nil), bodyPreds...), s.Head...)
	allConds, err := ToJoinConditions(allPreds, v.mapper)
	if err != nil {
		v.reject("resolve head", s, err)
		return false, 0, 0
	}

	bodyCount, err := v.data.JoinRowCount(ctx, bodyConds, v.cfg.DisjointSemantics)
	if err != nil {
		v.reject("count body", s, err)
		return false, 0, 0
	}
	if bodyCount == 0 {
		return false, 0, 0
	}

	bothCount, err := v.data.JoinRowCount(ctx, allConds, v.cfg.DisjointSemantics)
	if err != nil {
		v.reject("count body and head", s, err)
		return false, 0, 0
	}

	population, err := v.population(ctx, allPreds)
	if err != nil {
		v.reject("population", s, err)
		return false, 0, 0
	}
	if population == 0 {
		return false, 0, 0
	}

	support = float64(bothCount) / population
	confidence = float64(bothCount) / float64(bodyCount)
	accept = confidence >= v.cfg.ConfidenceThreshold && support >= v.cfg.SupportThreshold
	return accept, support, confidence
}

// evaluateInclusion measures containment at the distinct-value level:
// the fraction of dependent values present on the referenced side.
func (v *Validator) evaluateInclusion(ctx context.Context, s Split) (bool, float64, float64) {
	if len(s.Body) != 1 {
		return false, 0, 0
	}
	pred := v.graph.Node(s.Body[0])

	depSide, refSide := pred.A, pred.B
	if !s.DependentLeft {
		depSide, refSide = pred.B, pred.A
	}
	dep, err := v.mapper.ToAttribute(depSide)
	if err != nil {
		v.reject("resolve dependent", s, err)
		return false, 0, 0
	}
	ref, err := v.mapper.ToAttribute(refSide)
	if err != nil {
		v.reject("resolve referenced", s, err)
		return false, 0, 0
	}

	stats, err := v.data.ColumnStats(ctx, dep)
	if err != nil {
		v.reject("dependent stats", s, err)
		return false, 0, 0
	}
	if stats.DistinctCount == 0 {
		return false, 0, 0
	}

	missing, err := v.data.AntiJoinCount(ctx, dep, ref)
	if err != nil {
		v.reject("anti join", s, err)
		return false, 0, 0
	}

	contained := 1 - float64(missing)/float64(stats.DistinctCount)
	accept := contained >= v.cfg.ConfidenceThreshold
	return accept, contained, contained
}

// ValidatePerfectRule decides whether a perfect-scoring split reflects
// real structure. Declared foreign keys, matching attribute names, or
// enough raw volume each justify the score; a tiny sample justifies
// nothing.
func (v *Validator) ValidatePerfectRule(ctx context.Context, s Split) bool {
	if v.headMatchesForeignKey(ctx, s) {
		return true
	}
	if v.headMatchesNames(s) {
		return true
	}
	return v.meetsVolume(ctx, s)
}

func (v *Validator) headMatchesForeignKey(ctx context.Context, s Split) bool {
	v.fkOnce.Do(func() {
		fks, err := v.data.ForeignKeys(ctx)
		if err != nil {
			v.fkErr = err
			return
		}
		v.fkSet = make(map[models.ColumnPair]struct{}, 2*len(fks))
		for _, fk := range fks {
			from := models.Attribute{Table: fk.Table, Column: fk.Column}
			to := models.Attribute{Table: fk.ReferencedTable, Column: fk.ReferencedColumn}
			v.fkSet[models.ColumnPair{Left: from, Right: to}] = struct{}{}
			v.fkSet[models.ColumnPair{Left: to, Right: from}] = struct{}{}
		}
	})
	if v.fkErr != nil {
		return false
	}

	for _, pred := range v.splitPredicates(s) {
		a, errA := v.mapper.ToAttribute(pred.A)
		b, errB := v.mapper.ToAttribute(pred.B)
		if errA != nil || errB != nil {
			continue
		}
		if _, ok := v.fkSet[models.ColumnPair{Left: a, Right: b}]; ok {
			return true
		}
	}
	return false
}

func (v *Validator) headMatchesNames(s Split) bool {
	for _, pred := range v.splitPredicates(s) {
		a, errA := v.mapper.ToAttribute(pred.A)
		b, errB := v.mapper.ToAttribute(pred.B)
		if errA != nil || errB != nil {
			continue
		}
		if a.Column == b.Column {
			return true
		}
	}
	return false
}

func (v *Validator) meetsVolume(ctx context.Context, s Split) bool {
	if v.cfg.MinPerfectVolume <= 0 {
		return true
	}
	preds := append(bodyPredicates(s.Body, v.graph), s.Head...)

	seen := make(map[int]struct{})
	for _, pred := range preds {
		for _, side := range []graph.IndexedAttribute{pred.A, pred.B} {
			if _, ok := seen[side.Table]; ok {
				continue
			}
			seen[side.Table] = struct{}{}

			name, err := v.mapper.TableName(side.Table)
			if err != nil {
				return false
			}
			count, err := v.tableRows(ctx, name)
			if err != nil {
				v.logger.Warn("perfect rule volume check failed",
					zap.String("table", name), zap.Error(err))
				return false
			}
			if count < v.cfg.MinPerfectVolume {
				return false
			}
		}
	}
	return len(seen) > 0
}

// splitPredicates returns head predicates when the split has a head,
// otherwise the body, so inclusion splits are also name-checkable.
func (v *Validator) splitPredicates(s Split) []graph.JoinableIndexedAttributes {
	if len(s.Head) > 0 {
		return s.Head
	}
	return bodyPredicates(s.Body, v.graph)
}

// population is the product of per-occurrence table row counts across
// every occurrence a predicate set touches.
func (v *Validator) population(ctx context.Context, preds []graph.JoinableIndexedAttributes) (float64, error) {
	type occ struct {
		table int
		n     int
	}
	seen := make(map[occ]struct{})
	population := 1.0
	for _, pred := range preds {
		for _, side := range []graph.IndexedAttribute{pred.A, pred.B} {
			key := occ{side.Table, side.Occurrence}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			name, err := v.mapper.TableName(side.Table)
			if err != nil {
				return 0, err
			}
			count, err := v.tableRows(ctx, name)
			if err != nil {
				return 0, err
			}
			population *= float64(count)
		}
	}
	return population, nil
}

// tableRows memoizes row counts; the same tables recur across every
// split of every candidate.
func (v *Validator) tableRows(ctx context.Context, table string) (int64, error) {
	v.rowsMu.Lock()
	if n, ok := v.rowCounts[table]; ok {
		v.rowsMu.Unlock()
		return n, nil
	}
	v.rowsMu.Unlock()

	n, err := v.data.RowCount(ctx, table)
	if err != nil {
		return 0, err
	}

	v.rowsMu.Lock()
	v.rowCounts[table] = n
	v.rowsMu.Unlock()
	return n, nil
}

// reject logs a degraded verdict. Driver errors can echo the failing
// SQL back, so the message is sanitized before it reaches the log.
func (v *Validator) reject(stage string, s Split, err error) {
	v.logger.Warn("split rejected on query failure",
		zap.String("stage", stage),
		zap.String("kind", string(s.Kind)),
		zap.String("error", logging.SanitizeError(err)))
}
