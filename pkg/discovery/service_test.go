package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sievedata/sieve-engine/pkg/compat"
	"github.com/sievedata/sieve-engine/pkg/models"
	"github.com/sievedata/sieve-engine/pkg/split"
)

func inclusionOptions() Options {
	return Options{
		Kind:      models.KindInclusion,
		Strategy:  "dfs",
		Mode:      compat.ModeForeignKey,
		Validator: split.DefaultValidatorConfig(),
	}
}

func TestRunDiscoversForeignKeyInclusion(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Handle: demoHandle()}

	res, err := svc.Run(ctx, inclusionOptions())
	require.NoError(t, err)

	// One declared foreign key, one graph node.
	assert.Equal(t, 1, res.GraphNodes)
	assert.NotZero(t, res.Candidates)

	require.Len(t, res.Set.Inclusion, 1)
	ind := res.Set.Inclusion[0]
	assert.Equal(t, "orders", ind.DependentTable)
	assert.Equal(t, []string{"customer_id"}, ind.DependentCols)
	assert.Equal(t, "customers", ind.ReferencedTable)
	assert.Equal(t, []string{"id"}, ind.ReferencedCols)
	assert.InDelta(t, 1.0, ind.Support, 1e-9)

	// The reverse containment misses one customer and must not appear.
	assert.Empty(t, res.Set.Functional)
}

func TestRunEmitsYAMLResults(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := &Service{Handle: demoHandle()}
	opts := inclusionOptions()
	opts.OutputDir = dir

	res, err := svc.Run(ctx, opts)
	require.NoError(t, err)
	require.NotEmpty(t, res.OutputPath)
	assert.Equal(t, dir, filepath.Dir(res.OutputPath))

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)

	var set models.DependencySet
	require.NoError(t, yaml.Unmarshal(data, &set))
	assert.Equal(t, models.KindInclusion, set.Kind)
	require.Len(t, set.Inclusion, 1)
	assert.Equal(t, res.Set.Inclusion[0].Display(), set.Inclusion[0].Display())
}

func TestRunReportsProgress(t *testing.T) {
	ctx := context.Background()
	var last Progress
	calls := 0
	svc := &Service{
		Handle: demoHandle(),
		Progress: func(p Progress) {
			calls++
			last = p
		},
	}

	res, err := svc.Run(ctx, inclusionOptions())
	require.NoError(t, err)
	assert.Equal(t, res.Candidates, calls)
	assert.Equal(t, res.Candidates, last.Candidates)
	assert.Equal(t, res.Set.Len(), last.Dependencies)
}

func TestRunFunctionalMiningTerminates(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Handle: demoHandle()}
	opts := Options{
		Kind:     models.KindFunctional,
		Strategy: "bfs",
		Mode:     compat.ModeSameTable,
		Validator: split.ValidatorConfig{
			SupportThreshold:    0.01,
			ConfidenceThreshold: 0.95,
			MinPerfectVolume:    1,
		},
	}
	opts.Search.Limits.MaxVars = 2
	opts.Search.Limits.MaxTable = 2

	res, err := svc.Run(ctx, opts)
	require.NoError(t, err)

	// Occurrence bound is raised to 2 for self-equating kinds, so the
	// graph carries the cross-occurrence identity predicates.
	assert.Greater(t, res.GraphNodes, 0)
	for _, fd := range res.Set.Functional {
		assert.Contains(t, []string{"customers", "orders"}, fd.Table)
		assert.NotEmpty(t, fd.Determinant)
		assert.GreaterOrEqual(t, fd.Confidence, 0.95)
	}
}

func TestResumeWithoutCheckpointRunsFresh(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Handle: demoHandle()}

	res, err := svc.Resume(ctx, filepath.Join(t.TempDir(), "absent.json"), inclusionOptions())
	require.NoError(t, err)
	require.Len(t, res.Set.Inclusion, 1)
}

func TestRunWithoutHandleFails(t *testing.T) {
	svc := &Service{}
	_, err := svc.Run(context.Background(), inclusionOptions())
	require.Error(t, err)
}

type recordingRunRepo struct {
	created   []*models.DiscoveryRun
	completed []uuid.UUID
	failed    []uuid.UUID
}

func (r *recordingRunRepo) Create(_ context.Context, run *models.DiscoveryRun) error {
	r.created = append(r.created, run)
	return nil
}

func (r *recordingRunRepo) GetByID(context.Context, uuid.UUID) (*models.DiscoveryRun, error) {
	return nil, nil
}

func (r *recordingRunRepo) List(context.Context, int) ([]*models.DiscoveryRun, error) {
	return nil, nil
}

func (r *recordingRunRepo) MarkCompleted(_ context.Context, id uuid.UUID, _, _, _ int) error {
	r.completed = append(r.completed, id)
	return nil
}

func (r *recordingRunRepo) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	r.failed = append(r.failed, id)
	return nil
}

type recordingDepRepo struct {
	rows []*models.DiscoveredDependency
}

func (r *recordingDepRepo) CreateBatch(_ context.Context, deps []*models.DiscoveredDependency) error {
	r.rows = append(r.rows, deps...)
	return nil
}

func (r *recordingDepRepo) GetByRun(context.Context, uuid.UUID) ([]*models.DiscoveredDependency, error) {
	return nil, nil
}

func (r *recordingDepRepo) CountByRun(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}

func TestRunRecordsCatalog(t *testing.T) {
	ctx := context.Background()
	runs := &recordingRunRepo{}
	deps := &recordingDepRepo{}
	svc := &Service{Handle: demoHandle(), Runs: runs, Dependencies: deps}

	res, err := svc.Run(ctx, inclusionOptions())
	require.NoError(t, err)

	require.Len(t, runs.created, 1)
	assert.Equal(t, res.RunID, runs.created[0].ID)
	assert.Equal(t, "fake", runs.created[0].DatasourceType)
	assert.Equal(t, models.KindInclusion, runs.created[0].Kind)
	assert.Equal(t, models.RunStatusRunning, runs.created[0].Status)

	require.Len(t, runs.completed, 1)
	assert.Empty(t, runs.failed)

	require.Len(t, deps.rows, 1)
	row := deps.rows[0]
	assert.Equal(t, res.RunID, row.RunID)
	assert.Equal(t, models.KindInclusion, row.Kind)
	assert.Equal(t, res.Set.Inclusion[0].Display(), row.Display)
	assert.InDelta(t, 1.0, row.Support, 1e-9)
}
