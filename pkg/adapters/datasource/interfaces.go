package datasource

import (
	"context"

	"github.com/sievedata/sieve-engine/pkg/models"
)

// SchemaReader exposes the relational schema of a connected database.
type SchemaReader interface {
	// TableNames returns all base tables in the configured schema,
	// sorted alphabetically. System schemas are excluded.
	TableNames(ctx context.Context) ([]string, error)

	// AttributeNames returns the column names of a table in ordinal order.
	AttributeNames(ctx context.Context, table string) ([]string, error)

	// Columns returns full column metadata for a table, including data
	// types and primary-key membership.
	Columns(ctx context.Context, table string) ([]ColumnMetadata, error)
}

// RowCounter counts table populations.
type RowCounter interface {
	// RowCount returns the number of rows in a table.
	RowCount(ctx context.Context, table string) (int64, error)
}

// JoinCounter evaluates join predicates against live data. This is the
// measurement primitive behind rule support and confidence.
type JoinCounter interface {
	// JoinRowCount counts the rows produced by joining all table
	// occurrences referenced in conditions, with every condition applied
	// as an equality predicate. When disjoint is true, distinct
	// occurrences of the same table must bind distinct rows.
	JoinRowCount(ctx context.Context, conditions []JoinCondition, disjoint bool) (int64, error)

	// CheckThreshold reports whether the join described by conditions
	// produces at least threshold rows, without counting beyond it.
	CheckThreshold(ctx context.Context, conditions []JoinCondition, threshold int64) (bool, error)
}

// IndexManager prepares the database for repeated join probing.
type IndexManager interface {
	// CreateComposedIndexes creates single-column indexes covering every
	// attribute referenced by the given join pairs. Existing indexes are
	// left untouched. A partial failure is reported but indexes already
	// created remain in place.
	CreateComposedIndexes(ctx context.Context, pairs []models.ColumnPair) error
}

// StatsAnalyzer gathers per-column and cross-column statistics used by
// attribute compatibility checks.
type StatsAnalyzer interface {
	// ColumnStats returns counting statistics and the textual min/max
	// for a single column.
	ColumnStats(ctx context.Context, attr models.Attribute) (*ColumnStats, error)

	// SampleValues returns up to limit distinct non-null values of a
	// column rendered as strings, sorted alphabetically.
	SampleValues(ctx context.Context, attr models.Attribute, limit int) ([]string, error)

	// OverlapStats computes distinct-value counts for both columns and
	// the size of their distinct-value intersection.
	OverlapStats(ctx context.Context, left, right models.Attribute) (*OverlapStats, error)

	// AntiJoinCount counts distinct non-null values of left that have no
	// match in right.
	AntiJoinCount(ctx context.Context, left, right models.Attribute) (int64, error)
}

// ForeignKeyReader lists declared referential constraints.
type ForeignKeyReader interface {
	// ForeignKeys returns every foreign key in the configured schema.
	// Composite keys are returned as one entry per column pair.
	ForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)
}

// Handle is a live connection to one datasource. Implementations own
// their connection pool and must be closed when done. All methods are
// safe for concurrent use.
type Handle interface {
	SchemaReader
	RowCounter
	JoinCounter
	IndexManager
	StatsAnalyzer
	ForeignKeyReader

	// Type returns the registered adapter type, e.g. "postgres".
	Type() string

	// Ping verifies the database is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
