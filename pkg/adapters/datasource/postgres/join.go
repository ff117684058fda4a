package postgres

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
// Disjoint occurrences of the same table are separated on ctid, the
// physical row identity, so a tuple never joins with itself.
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
			leftAlias, quoteColumn(cond.Left.Column),
			rightAlias, quoteColumn(cond.Right.Column)))
	}

	if disjoint {
		for _, pair := range plan.SameTablePairs {
			preds = append(preds, fmt.Sprintf("%s.ctid <> %s.ctid",
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

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, from, where)
	a.logger.Debug("counting join rows", zap.String("query", logging.SanitizeQuery(query)))

	var count int64
	if err := a.pool.QueryRow(ctx, query).Scan(&count); err != nil {
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

	query := fmt.Sprintf(`SELECT COUNT(*) FROM (SELECT 1 FROM %s WHERE %s LIMIT %d) AS q`,
		from, where, threshold)

	var count int64
	if err := a.pool.QueryRow(ctx, query).Scan(&count); err != nil {
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
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
			quoteColumn(name), a.qualifiedTable(attr.Table), quoteColumn(attr.Column))

		if _, err := a.pool.Exec(ctx, stmt); err != nil {
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
