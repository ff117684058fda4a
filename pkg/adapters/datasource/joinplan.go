package datasource

import (
	"fmt"

	"github.com/sievedata/sieve-engine/pkg/apperrors"
)

// OccurrenceColumn names one side of a join condition. Occurrence
// distinguishes repeated uses of the same table in a self-join.
type OccurrenceColumn struct {
	Table      string
	Occurrence int
	Column     string
}

// JoinCondition is one equality predicate between two table occurrences.
type JoinCondition struct {
	Left  OccurrenceColumn
	Right OccurrenceColumn
}

// JoinAlias binds a table occurrence to the SQL alias used for it.
type JoinAlias struct {
	Table      string
	Occurrence int
	Name       string
}

// JoinPlan is the dialect-neutral shape of a counting query: the
// aliases to put in the FROM list, the equality predicates to apply,
// and the alias pairs that share a table. Adapters render it into SQL.
type JoinPlan struct {
	Aliases    []JoinAlias
	Conditions []JoinCondition

	// SameTablePairs indexes into Aliases. Each pair names two distinct
	// occurrences of one table and drives the disjoint-rows predicate.
	SameTablePairs [][2]int
}

// BuildJoinPlan collects the distinct table occurrences referenced by
// conditions and assigns each a deterministic alias in first-appearance
// order.
func BuildJoinPlan(conditions []JoinCondition) (*JoinPlan, error) {
	if len(conditions) == 0 {
		return nil, apperrors.ErrEmptyJoin
	}

	plan := &JoinPlan{Conditions: conditions}
	seen := make(map[string]int)

	add := func(oc OccurrenceColumn) error {
		if oc.Table == "" || oc.Column == "" {
			return fmt.Errorf("%w: %q.%q", apperrors.ErrInvalidJoinCondition, oc.Table, oc.Column)
		}
		key := fmt.Sprintf("%s#%d", oc.Table, oc.Occurrence)
		if _, ok := seen[key]; ok {
			return nil
		}
		seen[key] = len(plan.Aliases)
		plan.Aliases = append(plan.Aliases, JoinAlias{
			Table:      oc.Table,
			Occurrence: oc.Occurrence,
			Name:       fmt.Sprintf("o%d", len(plan.Aliases)),
		})
		return nil
	}

	for _, cond := range conditions {
		if err := add(cond.Left); err != nil {
			return nil, err
		}
		if err := add(cond.Right); err != nil {
			return nil, err
		}
	}

	for i := range plan.Aliases {
		for j := i + 1; j < len(plan.Aliases); j++ {
			if plan.Aliases[i].Table == plan.Aliases[j].Table {
				plan.SameTablePairs = append(plan.SameTablePairs, [2]int{i, j})
			}
		}
	}
	return plan, nil
}

// AliasFor returns the alias assigned to a table occurrence, or an
// error if the occurrence is not part of the plan.
func (p *JoinPlan) AliasFor(oc OccurrenceColumn) (string, error) {
	for _, a := range p.Aliases {
		if a.Table == oc.Table && a.Occurrence == oc.Occurrence {
			return a.Name, nil
		}
	}
	return "", fmt.Errorf("%w: no alias for %s#%d", apperrors.ErrInvalidJoinCondition, oc.Table, oc.Occurrence)
}
