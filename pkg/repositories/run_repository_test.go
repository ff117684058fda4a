//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievedata/sieve-engine/pkg/models"
	"github.com/sievedata/sieve-engine/pkg/testhelpers"
)

func TestRunRepository_Lifecycle(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	runs := NewRunRepository(engineDB.DB)

	run := &models.DiscoveryRun{
		DatasourceType:    "postgres",
		Kind:              models.KindInclusion,
		Strategy:          "bfs",
		CompatibilityMode: "foreign_key",
	}
	require.NoError(t, runs.Create(ctx, run))
	require.NotEqual(t, uuid.Nil, run.ID)

	got, err := runs.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Equal(t, "bfs", got.Strategy)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, runs.MarkCompleted(ctx, run.ID, 12, 40, 3))

	got, err = runs.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 12, got.GraphNodes)
	assert.Equal(t, 40, got.CandidatesEmitted)
	assert.Equal(t, 3, got.DependenciesFound)
	assert.NotNil(t, got.FinishedAt)

	listed, err := runs.List(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, listed)
}

func TestRunRepository_MarkFailed(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	runs := NewRunRepository(engineDB.DB)

	run := &models.DiscoveryRun{
		DatasourceType:    "postgres",
		Kind:              models.KindFunctional,
		Strategy:          "dfs",
		CompatibilityMode: "type",
	}
	require.NoError(t, runs.Create(ctx, run))
	require.NoError(t, runs.MarkFailed(ctx, run.ID, "datasource unreachable"))

	got, err := runs.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, "datasource unreachable", got.Error)
}

func TestDependencyRepository_BatchRoundTrip(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	runs := NewRunRepository(engineDB.DB)
	deps := NewDependencyRepository(engineDB.DB)

	run := &models.DiscoveryRun{
		DatasourceType:    "postgres",
		Kind:              models.KindInclusion,
		Strategy:          "bfs",
		CompatibilityMode: "foreign_key",
	}
	require.NoError(t, runs.Create(ctx, run))

	batch := []*models.DiscoveredDependency{
		{
			RunID:      run.ID,
			Kind:       models.KindInclusion,
			Display:    "orders[customer_id] <= customers[id]",
			Body:       []string{"orders.customer_id"},
			Head:       []string{"customers.id"},
			Support:    1.0,
			Confidence: 1.0,
		},
		{
			RunID:      run.ID,
			Kind:       models.KindInclusion,
			Display:    "customers[id] <= orders[customer_id]",
			Body:       []string{"customers.id"},
			Head:       []string{"orders.customer_id"},
			Support:    0.75,
			Confidence: 0.75,
		},
	}
	require.NoError(t, deps.CreateBatch(ctx, batch))

	// Re-inserting the same displays upserts rather than duplicating.
	batch[1].Support = 0.8
	require.NoError(t, deps.CreateBatch(ctx, batch))

	stored, err := deps.GetByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "orders[customer_id] <= customers[id]", stored[0].Display)

	count, err := deps.CountByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
