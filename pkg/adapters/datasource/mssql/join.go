package mssql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/logging"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// joinClause renders the FROM list and WHERE conjunction for a plan.
// SQL Server has no portable row identity, so disjoint occurrences of
// the same table are compared with the null-safe INTERSECT idiom: two
// rows are the same row only if SELECT a.* INTERSECT SELECT b.* is
// non-empty.
func (a *Adapter) joinClause(plan *datasource.JoinPlan, disjoint bool) (string, string, error) {
	froms := make([]string, 0, len(plan.Aliases))
	for _, al := range plan.Aliases {
		froms = append(froms, fmt.Sprintf("%s AS %s", a.qualifiedTable(al.Table), al.Name))
	}

	preds := make([]string, 0, len(plan.Conditions)+len(plan.SameTablePairs))
	for _, cond := range plan.Conditions {
		leftAlias, err := plan.AliasFor(cond.Left)
		if err != nil {
			return "", "", err
		}
		rightAlias, err := plan.AliasFor(cond.Right)
		if err != nil {
			return "", "", err
		}
		preds = append(preds, fmt.Sprintf("%s.%s = %s.%s",
			leftAlias, quoteName(cond.Left.Column),
			rightAlias, quoteName(cond.Right.Column)))
	}

	if disjoint {
		for _, pair := range plan.SameTablePairs {
			preds = append(preds, fmt.Sprintf("NOT EXISTS (SELECT %s.* INTERSECT SELECT %s.*)",
				plan.Aliases[pair[0]].Name, plan.Aliases[pair[1]].Name))
		}
	}

	return strings.Join(froms, ", "), strings.Join(preds, " AND "), nil
}

// JoinRowCount counts the rows produced by the join of all occurrences
// referenced in conditions.
func (a *Adapter) JoinRowCount(ctx context.Context, conditions []datasource.JoinCondition, disjoint bool) (int64, error) {
	plan, err := datasource.BuildJoinPlan(conditions)
	if err != nil {
		return 0, err
	}
	from, where, err := a.joinClause(plan, disjoint)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT_BIG(*) FROM %s WHERE %s`, from, where)
	a.logger.Debug("counting join rows", zap.String("query", logging.SanitizeQuery(query)))

	var count int64
	if err := a.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count join rows: %w", err)
	}
	return count, nil
}

// CheckThreshold reports whether the join produces at least threshold
// rows. The inner query stops scanning once threshold rows are found.
func (a *Adapter) CheckThreshold(ctx context.Context, conditions []datasource.JoinCondition, threshold int64) (bool, error) {
	if threshold <= 0 {
		return true, nil
	}

	plan, err := datasource.BuildJoinPlan(conditions)
	if err != nil {
		return false, err
	}
	from, where, err := a.joinClause(plan, false)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT COUNT_BIG(*) FROM (SELECT TOP (%d) 1 AS one FROM %s WHERE %s) AS q`,
		threshold, from, where)

	var count int64
	if err := a.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return false, fmt.Errorf("check join threshold: %w", err)
	}
	return count >= threshold, nil
}

// CreateComposedIndexes creates single-column indexes covering every
// attribute referenced by the given join pairs. Failures on individual
// indexes are logged and collected; indexes already created remain.
func (a *Adapter) CreateComposedIndexes(ctx context.Context, pairs []models.ColumnPair) error {
	seen := make(map[models.Attribute]struct{})
	var errs []error

	create := func(attr models.Attribute) {
		if _, ok := seen[attr]; ok {
			return
		}
		seen[attr] = struct{}{}

		name := fmt.Sprintf("sieve_ix_%s_%s", attr.Table, attr.Column)
		stmt := fmt.Sprintf(`
		IF NOT EXISTS (
			SELECT 1 FROM sys.indexes
			WHERE name = '%s' AND object_id = OBJECT_ID('%s')
		)
		CREATE INDEX %s ON %s (%s)`,
			strings.ReplaceAll(name, "'", "''"),
			strings.ReplaceAll(a.schema+"."+attr.Table, "'", "''"),
			quoteName(name), a.qualifiedTable(attr.Table), quoteName(attr.Column))

		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			a.logger.Warn("index creation failed",
				zap.String("attribute", attr.String()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("index %s: %w", attr, err))
		}
	}

	for _, pair := range pairs {
		create(pair.Left)
		create(pair.Right)
	}
	return errors.Join(errs...)
}
