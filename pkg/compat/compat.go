// Package compat decides which column pairs are worth joining. Each
// mode is one strategy for scoring a pair; the graph builder keeps only
// pairs its checker accepts.
package compat

import (
	"context"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// Mode selects a compatibility strategy.
type Mode string

const (
	ModeSameTable      Mode = "same_table"
	ModeForeignKey     Mode = "foreign_key"
	ModeType           Mode = "type"
	ModeContainment    Mode = "containment"
	ModeSampledOverlap Mode = "sampled_overlap"
	ModeSetOverlap     Mode = "set_overlap"
	ModeName           Mode = "name"
	ModePattern        Mode = "pattern"
	ModeDistribution   Mode = "distribution"
	ModeSubset         Mode = "subset"
	ModeTemporal       Mode = "temporal"
	ModeEGD            Mode = "egd"
)

// Result is the outcome of one compatibility check. Scores carries the
// per-component values for modes that combine several measurements.
type Result struct {
	Compatible bool
	Score      float64
	Scores     map[string]float64
}

// Checker scores one column pair under one mode.
//
// A failing data-access call never propagates: the checker logs it and
// reports the pair incompatible. Only context cancellation is returned
// as an error.
type Checker interface {
	Mode() Mode
	Check(ctx context.Context, pair models.ColumnPair) (Result, error)
}

// EmbeddingProvider supplies semantic vectors for column names. The
// name mode works without one; vectors only add a second signal.
type EmbeddingProvider interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// Deps carries everything a checker may need. A datasource.Handle
// satisfies Schema, Stats and Keys at once; tests stub only the fields
// a mode touches.
type Deps struct {
	Schema   datasource.SchemaReader
	Stats    datasource.StatsAnalyzer
	Keys     datasource.ForeignKeyReader
	Embedder EmbeddingProvider
	Logger   *zap.Logger

	// SampleSize bounds sampling queries. Zero means the adapter default.
	SampleSize int

	// CacheSize bounds the memo cache. Zero disables memoization.
	CacheSize int
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// degrade converts a data-access failure into an incompatible verdict,
// unless the context itself was cancelled.
func (d Deps) degrade(ctx context.Context, mode Mode, pair models.ColumnPair, err error) (Result, error) {
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	d.logger().Warn("compatibility check degraded to incompatible",
		zap.String("mode", string(mode)),
		zap.String("pair", pair.String()),
		zap.Error(err))
	return Result{Compatible: false}, nil
}

// New returns the checker for mode, wrapped in a memo cache when
// Deps.CacheSize is positive. An unknown mode falls back to type
// compatibility with a warning.
func New(mode Mode, deps Deps) Checker {
	var c Checker
	switch mode {
	case ModeSameTable:
		c = &sameTableChecker{deps: deps}
	case ModeForeignKey:
		c = newForeignKeyChecker(deps)
	case ModeType:
		c = &typeChecker{deps: deps}
	case ModeContainment:
		c = &containmentChecker{deps: deps}
	case ModeSampledOverlap:
		c = &sampledOverlapChecker{deps: deps}
	case ModeSetOverlap:
		c = &setOverlapChecker{deps: deps}
	case ModeName:
		c = &nameChecker{deps: deps}
	case ModePattern:
		c = &patternChecker{deps: deps}
	case ModeDistribution:
		c = &distributionChecker{deps: deps}
	case ModeSubset:
		c = &subsetChecker{deps: deps}
	case ModeTemporal:
		c = &temporalChecker{deps: deps}
	case ModeEGD:
		c = newEGDChecker(deps)
	default:
		deps.logger().Warn("unknown compatibility mode, falling back to type compatibility",
			zap.String("mode", string(mode)))
		c = &typeChecker{deps: deps}
	}

	if deps.CacheSize > 0 {
		c = withCache(c, deps.CacheSize)
	}
	return c
}
