package discovery

import (
	"github.com/sievedata/sieve-engine/pkg/compat"
	"github.com/sievedata/sieve-engine/pkg/config"
	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/models"
	"github.com/sievedata/sieve-engine/pkg/search"
	"github.com/sievedata/sieve-engine/pkg/split"
)

// Options fixes one discovery run: what to mine, how to explore, and how
// strictly to validate. The zero value is unusable; start from
// OptionsFromConfig or fill in at least Kind, Strategy and Mode.
type Options struct {
	// Kind is the dependency family to mine.
	Kind models.DependencyKind

	// Strategy names a registered search strategy.
	Strategy string

	// Mode screens column pairs before they become graph nodes.
	Mode compat.Mode

	// MaxOccurrence bounds per-table occurrences in the graph. Kinds
	// that equate a table with itself need at least 2.
	MaxOccurrence int

	// SampleSize and CacheSize feed the compatibility checkers.
	SampleSize int
	CacheSize  int

	// Search carries the strategy tunables, including Limits.
	Search search.Config

	// Validator carries the acceptance thresholds.
	Validator split.ValidatorConfig

	// OutputDir receives the YAML result file. Empty disables emission.
	OutputDir string
}

// OptionsFromConfig maps the configuration block onto run options.
// The kind string must already be validated by the caller.
func OptionsFromConfig(cfg *config.DiscoveryConfig, kind models.DependencyKind) Options {
	return Options{
		Kind:          kind,
		Strategy:      cfg.Strategy,
		Mode:          compat.Mode(cfg.CompatibilityMode),
		MaxOccurrence: cfg.MaxOccurrence,
		SampleSize:    cfg.SampleSize,
		CacheSize:     cfg.CacheSize,
		Search: search.Config{
			Limits: graph.Limits{
				MaxTable: cfg.MaxTable,
				MaxVars:  cfg.MaxVars,
			},
			BeamWidth:             cfg.BeamWidth,
			PopulationSize:        cfg.PopulationSize,
			Generations:           cfg.Generations,
			EliteSize:             cfg.EliteSize,
			TournamentSize:        cfg.TournamentSize,
			CrossoverRate:         cfg.CrossoverRate,
			MutationRate:          cfg.MutationRate,
			LocalSearchIterations: cfg.LocalSearchIterations,
			Iterations:            cfg.Iterations,
			ExplorationWeight:     cfg.ExplorationWeight,
			PlayoutDepth:          cfg.PlayoutDepth,
			TimeBudget:            cfg.TimeBudget(),
			RestartProbability:    cfg.RestartProbability,
			Workers:               cfg.Workers,
			BatchSize:             cfg.BatchSize,
			RateLimit:             cfg.RateLimit,
			CheckpointPath:        cfg.CheckpointPath,
			CheckpointInterval:    cfg.CheckpointInterval(),
			Seed:                  cfg.Seed,
		},
		Validator: split.ValidatorConfig{
			SupportThreshold:    cfg.SupportThreshold,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			DisjointSemantics:   cfg.DisjointSemantics,
			MinPerfectVolume:    100,
		},
		OutputDir: cfg.OutputDir,
	}
}

// withDefaults fills the zero values the service cannot work with.
// Strategy tunables have their own defaults inside pkg/search.
func (o Options) withDefaults() Options {
	if o.Kind == "" {
		o.Kind = models.KindInclusion
	}
	if o.Strategy == "" {
		o.Strategy = "bfs"
	}
	if o.Mode == "" {
		o.Mode = compat.ModeForeignKey
	}
	if o.MaxOccurrence < 1 {
		o.MaxOccurrence = 1
	}
	// Self-equating kinds are unminable with a single occurrence.
	if (o.Kind == models.KindFunctional || o.Kind == models.KindEGD) && o.MaxOccurrence < 2 {
		o.MaxOccurrence = 2
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 100
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 10000
	}
	if o.Validator.SupportThreshold <= 0 && o.Validator.ConfidenceThreshold <= 0 {
		o.Validator = split.DefaultValidatorConfig()
	}
	return o
}
