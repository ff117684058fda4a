package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// RowCount returns the number of rows in a table.
func (a *Adapter) RowCount(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, a.qualifiedTable(table))

	var count int64
	if err := a.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return count, nil
}

// ColumnStats returns counting statistics and the textual min/max for a
// column. When the column type has no ordering the min/max query fails;
// the counts are then retried without them and MinValue/MaxValue stay nil.
func (a *Adapter) ColumnStats(ctx context.Context, attr models.Attribute) (*datasource.ColumnStats, error) {
	tbl := a.qualifiedTable(attr.Table)
	col := quoteColumn(attr.Column)

	full := fmt.Sprintf(`
		SELECT COUNT(*), COUNT(%[1]s), COUNT(DISTINCT %[1]s), MIN(%[1]s)::text, MAX(%[1]s)::text
		FROM %[2]s`, col, tbl)

	stats := &datasource.ColumnStats{}
	err := a.pool.QueryRow(ctx, full).Scan(
		&stats.RowCount, &stats.NonNullCount, &stats.DistinctCount, &stats.MinValue, &stats.MaxValue)
	if err == nil {
		return stats, nil
	}

	a.logger.Debug("column stats fell back to counts only",
		zap.String("attribute", attr.String()),
		zap.Error(err))

	counts := fmt.Sprintf(`
		SELECT COUNT(*), COUNT(%[1]s), COUNT(DISTINCT %[1]s)
		FROM %[2]s`, col, tbl)

	stats = &datasource.ColumnStats{}
	if err := a.pool.QueryRow(ctx, counts).Scan(
		&stats.RowCount, &stats.NonNullCount, &stats.DistinctCount); err != nil {
		return nil, fmt.Errorf("column stats for %s: %w", attr, err)
	}
	return stats, nil
}

// SampleValues returns up to limit distinct non-null values rendered as
// text, sorted alphabetically.
func (a *Adapter) SampleValues(ctx context.Context, attr models.Attribute, limit int) ([]string, error) {
	if limit <= 0 {
		limit = a.sampleLimit
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT %[1]s::text
		FROM %[2]s
		WHERE %[1]s IS NOT NULL
		ORDER BY 1
		LIMIT %[3]d`, quoteColumn(attr.Column), a.qualifiedTable(attr.Table), limit)

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample values of %s: %w", attr, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan sample value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample values: %w", err)
	}
	return values, nil
}

// OverlapStats computes distinct-value counts for both columns and the
// size of their intersection. Values are compared as text so columns of
// different but compatible types can be measured.
func (a *Adapter) OverlapStats(ctx context.Context, left, right models.Attribute) (*datasource.OverlapStats, error) {
	query := fmt.Sprintf(`
		WITH left_vals AS (
			SELECT DISTINCT %[1]s::text AS val FROM %[2]s WHERE %[1]s IS NOT NULL
		),
		right_vals AS (
			SELECT DISTINCT %[3]s::text AS val FROM %[4]s WHERE %[3]s IS NOT NULL
		)
		SELECT
			(SELECT COUNT(*) FROM left_vals),
			(SELECT COUNT(*) FROM right_vals),
			(SELECT COUNT(*) FROM left_vals l JOIN right_vals r ON l.val = r.val)`,
		quoteColumn(left.Column), a.qualifiedTable(left.Table),
		quoteColumn(right.Column), a.qualifiedTable(right.Table))

	overlap := &datasource.OverlapStats{}
	if err := a.pool.QueryRow(ctx, query).Scan(
		&overlap.LeftDistinct, &overlap.RightDistinct, &overlap.Shared); err != nil {
		return nil, fmt.Errorf("overlap of %s and %s: %w", left, right, err)
	}
	return overlap, nil
}

// AntiJoinCount counts distinct non-null values of left missing from right.
func (a *Adapter) AntiJoinCount(ctx context.Context, left, right models.Attribute) (int64, error) {
	query := fmt.Sprintf(`
		WITH left_vals AS (
			SELECT DISTINCT %[1]s::text AS val FROM %[2]s WHERE %[1]s IS NOT NULL
		)
		SELECT COUNT(*)
		FROM left_vals l
		WHERE NOT EXISTS (
			SELECT 1 FROM %[4]s r WHERE r.%[3]s::text = l.val
		)`,
		quoteColumn(left.Column), a.qualifiedTable(left.Table),
		quoteColumn(right.Column), a.qualifiedTable(right.Table))

	var count int64
	if err := a.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("anti join of %s against %s: %w", left, right, err)
	}
	return count, nil
}
