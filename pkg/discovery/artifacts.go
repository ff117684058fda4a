package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sievedata/sieve-engine/pkg/graph"
	"github.com/sievedata/sieve-engine/pkg/models"
	"github.com/sievedata/sieve-engine/pkg/split"
)

// collector turns accepted splits into dependency artifacts, deduplicating
// by display string. Different walks routinely rediscover the same
// dependency; only the first sighting is kept.
type collector struct {
	graph  *graph.ConstraintGraph
	mapper *graph.AttributeMapper

	set  models.DependencySet
	seen map[string]struct{}
	rows []*models.DiscoveredDependency
}

func newCollector(g *graph.ConstraintGraph, m *graph.AttributeMapper, kind models.DependencyKind) *collector {
	return &collector{
		graph:  g,
		mapper: m,
		set:    models.DependencySet{Kind: kind},
		seen:   make(map[string]struct{}),
	}
}

// Add converts one accepted split into its artifact. Returns true when
// the artifact is new, false when it duplicates one already collected.
func (c *collector) Add(runID uuid.UUID, ss split.ScoredSplit) (bool, error) {
	switch ss.Split.Kind {
	case models.KindInclusion:
		return c.addInclusion(runID, ss)
	case models.KindFunctional:
		return c.addFunctional(runID, ss)
	case models.KindTGD:
		return c.addTGD(runID, ss)
	case models.KindEGD:
		return c.addEGD(runID, ss)
	default:
		return false, fmt.Errorf("collect artifact: unknown kind %q", ss.Split.Kind)
	}
}

func (c *collector) addInclusion(runID uuid.UUID, ss split.ScoredSplit) (bool, error) {
	if len(ss.Split.Body) != 1 {
		return false, fmt.Errorf("inclusion split has %d body nodes", len(ss.Split.Body))
	}
	pred := c.graph.Node(ss.Split.Body[0])

	depSide, refSide := pred.A, pred.B
	if !ss.Split.DependentLeft {
		depSide, refSide = pred.B, pred.A
	}
	dep, err := c.mapper.ToAttribute(depSide)
	if err != nil {
		return false, fmt.Errorf("resolve dependent side: %w", err)
	}
	ref, err := c.mapper.ToAttribute(refSide)
	if err != nil {
		return false, fmt.Errorf("resolve referenced side: %w", err)
	}

	ind := models.InclusionDependency{
		DependentTable:  dep.Table,
		DependentCols:   []string{dep.Column},
		ReferencedTable: ref.Table,
		ReferencedCols:  []string{ref.Column},
		Support:         ss.Support,
	}
	display := ind.Display()
	if !c.accept(display) {
		return false, nil
	}
	c.set.Inclusion = append(c.set.Inclusion, ind)
	c.rows = append(c.rows, &models.DiscoveredDependency{
		ID:         uuid.New(),
		RunID:      runID,
		Kind:       models.KindInclusion,
		Display:    display,
		Body:       []string{dep.String()},
		Head:       []string{ref.String()},
		Support:    ss.Support,
		Confidence: ss.Confidence,
	})
	return true, nil
}

func (c *collector) addFunctional(runID uuid.UUID, ss split.ScoredSplit) (bool, error) {
	if len(ss.Split.Head) != 1 {
		return false, fmt.Errorf("functional split has %d head predicates", len(ss.Split.Head))
	}
	head := ss.Split.Head[0]
	headAttr, err := c.mapper.ToAttribute(head.A)
	if err != nil {
		return false, fmt.Errorf("resolve head: %w", err)
	}

	// The determinant is every distinct column of the head's table that
	// the body predicates touch.
	detSet := make(map[string]struct{})
	for _, id := range ss.Split.Body {
		pred := c.graph.Node(id)
		for _, side := range []graph.IndexedAttribute{pred.A, pred.B} {
			if side.Table != head.A.Table {
				continue
			}
			attr, err := c.mapper.ToAttribute(side)
			if err != nil {
				return false, fmt.Errorf("resolve determinant: %w", err)
			}
			if attr.Column == headAttr.Column {
				continue
			}
			detSet[attr.Column] = struct{}{}
		}
	}
	if len(detSet) == 0 {
		return false, nil
	}
	determinant := make([]string, 0, len(detSet))
	for col := range detSet {
		determinant = append(determinant, col)
	}
	sort.Strings(determinant)

	fd := models.FunctionalDependency{
		Table:       headAttr.Table,
		Determinant: determinant,
		Dependent:   headAttr.Column,
		Support:     ss.Support,
		Confidence:  ss.Confidence,
	}
	display := fd.Display()
	if !c.accept(display) {
		return false, nil
	}
	c.set.Functional = append(c.set.Functional, fd)
	c.rows = append(c.rows, &models.DiscoveredDependency{
		ID:         uuid.New(),
		RunID:      runID,
		Kind:       models.KindFunctional,
		Display:    display,
		Body:       determinant,
		Head:       []string{headAttr.Column},
		Support:    ss.Support,
		Confidence: ss.Confidence,
	})
	return true, nil
}

func (c *collector) addTGD(runID uuid.UUID, ss split.ScoredSplit) (bool, error) {
	body := c.renderBody(ss.Split.Body)
	head := make([]string, len(ss.Split.Head))
	for i, pred := range ss.Split.Head {
		head[i] = c.mapper.RenderPredicate(pred)
	}

	display := fmt.Sprintf("%s => %s", strings.Join(body, " AND "), strings.Join(head, " AND "))
	if !c.accept(display) {
		return false, nil
	}
	c.set.TGDs = append(c.set.TGDs, models.TGDRule{
		Body:       body,
		Head:       head,
		Display:    display,
		Accuracy:   ss.Support,
		Confidence: ss.Confidence,
	})
	c.rows = append(c.rows, &models.DiscoveredDependency{
		ID:         uuid.New(),
		RunID:      runID,
		Kind:       models.KindTGD,
		Display:    display,
		Body:       body,
		Head:       head,
		Support:    ss.Support,
		Confidence: ss.Confidence,
	})
	return true, nil
}

func (c *collector) addEGD(runID uuid.UUID, ss split.ScoredSplit) (bool, error) {
	body := c.renderBody(ss.Split.Body)
	head := make([]string, len(ss.Split.Head))
	equalities := make([]models.VariableEquality, len(ss.Split.Head))
	for i, pred := range ss.Split.Head {
		head[i] = c.mapper.RenderPredicate(pred)
		left, err := c.mapper.ToAttribute(pred.A)
		if err != nil {
			return false, fmt.Errorf("resolve equality left: %w", err)
		}
		right, err := c.mapper.ToAttribute(pred.B)
		if err != nil {
			return false, fmt.Errorf("resolve equality right: %w", err)
		}
		equalities[i] = models.VariableEquality{Left: left, Right: right}
	}

	display := fmt.Sprintf("%s => %s", strings.Join(body, " AND "), strings.Join(head, " AND "))
	if !c.accept(display) {
		return false, nil
	}
	c.set.EGDs = append(c.set.EGDs, models.EGDRule{
		Body:                   body,
		Head:                   head,
		HeadVariableEqualities: equalities,
		Display:                display,
		Support:                ss.Support,
		Confidence:             ss.Confidence,
	})
	c.rows = append(c.rows, &models.DiscoveredDependency{
		ID:         uuid.New(),
		RunID:      runID,
		Kind:       models.KindEGD,
		Display:    display,
		Body:       body,
		Head:       head,
		Support:    ss.Support,
		Confidence: ss.Confidence,
	})
	return true, nil
}

func (c *collector) renderBody(body []graph.NodeID) []string {
	out := make([]string, len(body))
	for i, id := range body {
		out[i] = c.mapper.RenderPredicate(c.graph.Node(id))
	}
	return out
}

// accept records the display key, returning false for duplicates.
func (c *collector) accept(display string) bool {
	if _, ok := c.seen[display]; ok {
		return false
	}
	c.seen[display] = struct{}{}
	return true
}
