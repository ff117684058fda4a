// Package repositories provides data access to the engine catalog:
// discovery runs and the dependencies they emitted.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sievedata/sieve-engine/pkg/database"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// RunRepository provides data access for discovery runs.
type RunRepository interface {
	Create(ctx context.Context, run *models.DiscoveryRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoveryRun, error)
	List(ctx context.Context, limit int) ([]*models.DiscoveryRun, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, graphNodes, candidates, found int) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type runRepository struct {
	db *database.DB
}

// NewRunRepository creates a RunRepository over the catalog pool.
func NewRunRepository(db *database.DB) RunRepository {
	return &runRepository{db: db}
}

var _ RunRepository = (*runRepository)(nil)

func (r *runRepository) Create(ctx context.Context, run *models.DiscoveryRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}

	query := `
		INSERT INTO engine_discovery_runs (
			id, datasource_type, kind, strategy, compatibility_mode,
			status, error, graph_nodes, candidates_emitted, dependencies_found,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		run.ID, run.DatasourceType, run.Kind, run.Strategy, run.CompatibilityMode,
		run.Status, run.Error, run.GraphNodes, run.CandidatesEmitted, run.DependenciesFound,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create discovery run: %w", err)
	}
	return nil
}

func (r *runRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoveryRun, error) {
	query := `
		SELECT id, datasource_type, kind, strategy, compatibility_mode,
		       status, error, graph_nodes, candidates_emitted, dependencies_found,
		       started_at, finished_at
		FROM engine_discovery_runs
		WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get discovery run: %w", err)
	}
	return run, nil
}

func (r *runRepository) List(ctx context.Context, limit int) ([]*models.DiscoveryRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, datasource_type, kind, strategy, compatibility_mode,
		       status, error, graph_nodes, candidates_emitted, dependencies_found,
		       started_at, finished_at
		FROM engine_discovery_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list discovery runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.DiscoveryRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discovery run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *runRepository) MarkCompleted(ctx context.Context, id uuid.UUID, graphNodes, candidates, found int) error {
	query := `
		UPDATE engine_discovery_runs
		SET status = $2, graph_nodes = $3, candidates_emitted = $4,
		    dependencies_found = $5, finished_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.RunStatusCompleted, graphNodes, candidates, found)
	if err != nil {
		return fmt.Errorf("failed to complete discovery run: %w", err)
	}
	return nil
}

func (r *runRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE engine_discovery_runs
		SET status = $2, error = $3, finished_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.RunStatusFailed, reason)
	if err != nil {
		return fmt.Errorf("failed to mark discovery run failed: %w", err)
	}
	return nil
}

func scanRun(row pgx.Row) (*models.DiscoveryRun, error) {
	var run models.DiscoveryRun
	err := row.Scan(
		&run.ID, &run.DatasourceType, &run.Kind, &run.Strategy, &run.CompatibilityMode,
		&run.Status, &run.Error, &run.GraphNodes, &run.CandidatesEmitted, &run.DependenciesFound,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
