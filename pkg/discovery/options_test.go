package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sievedata/sieve-engine/pkg/compat"
	"github.com/sievedata/sieve-engine/pkg/config"
	"github.com/sievedata/sieve-engine/pkg/models"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.DiscoveryConfig{
		Strategy:                  "beam",
		CompatibilityMode:         "set_overlap",
		MaxTable:                  3,
		MaxVars:                   5,
		MaxOccurrence:             2,
		SampleSize:                50,
		CacheSize:                 2000,
		SupportThreshold:          0.02,
		ConfidenceThreshold:       0.85,
		BeamWidth:                 16,
		TimeBudgetSeconds:         90,
		CheckpointPath:            "/tmp/cp.json",
		CheckpointIntervalSeconds: 10,
		OutputDir:                 "out",
	}

	opts := OptionsFromConfig(cfg, models.KindTGD)
	assert.Equal(t, models.KindTGD, opts.Kind)
	assert.Equal(t, "beam", opts.Strategy)
	assert.Equal(t, compat.ModeSetOverlap, opts.Mode)
	assert.Equal(t, 5, opts.Search.Limits.MaxVars)
	assert.Equal(t, 16, opts.Search.BeamWidth)
	assert.Equal(t, 90*time.Second, opts.Search.TimeBudget)
	assert.Equal(t, 10*time.Second, opts.Search.CheckpointInterval)
	assert.Equal(t, "/tmp/cp.json", opts.Search.CheckpointPath)
	assert.InDelta(t, 0.85, opts.Validator.ConfidenceThreshold, 1e-9)
	assert.Equal(t, "out", opts.OutputDir)
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, models.KindInclusion, opts.Kind)
	assert.Equal(t, "bfs", opts.Strategy)
	assert.Equal(t, compat.ModeForeignKey, opts.Mode)
	assert.Equal(t, 1, opts.MaxOccurrence)
	assert.InDelta(t, 0.90, opts.Validator.ConfidenceThreshold, 1e-9)
}

func TestOptionsRaiseOccurrenceForSelfEquatingKinds(t *testing.T) {
	for _, kind := range []models.DependencyKind{models.KindFunctional, models.KindEGD} {
		opts := Options{Kind: kind}.withDefaults()
		assert.Equal(t, 2, opts.MaxOccurrence, string(kind))
	}

	opts := Options{Kind: models.KindTGD, MaxOccurrence: 1}.withDefaults()
	assert.Equal(t, 1, opts.MaxOccurrence)
}
