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

// DependencyRepository provides data access for discovered dependencies.
type DependencyRepository interface {
	CreateBatch(ctx context.Context, deps []*models.DiscoveredDependency) error
	GetByRun(ctx context.Context, runID uuid.UUID) ([]*models.DiscoveredDependency, error)
	CountByRun(ctx context.Context, runID uuid.UUID) (int, error)
}

type dependencyRepository struct {
	db *database.DB
}

// NewDependencyRepository creates a DependencyRepository over the
// catalog pool.
func NewDependencyRepository(db *database.DB) DependencyRepository {
	return &dependencyRepository{db: db}
}

var _ DependencyRepository = (*dependencyRepository)(nil)

func (r *dependencyRepository) CreateBatch(ctx context.Context, deps []*models.DiscoveredDependency) error {
	if len(deps) == 0 {
		return nil
	}

	query := `
		INSERT INTO engine_discovered_dependencies (
			id, run_id, kind, display, body, head, support, confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, display) DO UPDATE
		SET support = EXCLUDED.support, confidence = EXCLUDED.confidence`

	batch := &pgx.Batch{}
	now := time.Now()
	for _, dep := range deps {
		if dep.ID == uuid.Nil {
			dep.ID = uuid.New()
		}
		if dep.CreatedAt.IsZero() {
			dep.CreatedAt = now
		}
		batch.Queue(query,
			dep.ID, dep.RunID, dep.Kind, dep.Display,
			dep.Body, dep.Head, dep.Support, dep.Confidence, dep.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range deps {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert discovered dependency: %w", err)
		}
	}
	return nil
}

func (r *dependencyRepository) GetByRun(ctx context.Context, runID uuid.UUID) ([]*models.DiscoveredDependency, error) {
	query := `
		SELECT id, run_id, kind, display, body, head, support, confidence, created_at
		FROM engine_discovered_dependencies
		WHERE run_id = $1
		ORDER BY confidence DESC, display`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovered dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*models.DiscoveredDependency
	for rows.Next() {
		var dep models.DiscoveredDependency
		err := rows.Scan(
			&dep.ID, &dep.RunID, &dep.Kind, &dep.Display,
			&dep.Body, &dep.Head, &dep.Support, &dep.Confidence, &dep.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan discovered dependency: %w", err)
		}
		deps = append(deps, &dep)
	}
	return deps, rows.Err()
}

func (r *dependencyRepository) CountByRun(ctx context.Context, runID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM engine_discovered_dependencies WHERE run_id = $1`,
		runID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count discovered dependencies: %w", err)
	}
	return count, nil
}
