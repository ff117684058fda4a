package models

import (
	"fmt"
	"strings"
)

// DependencyKind selects which family of dependencies a run mines.
type DependencyKind string

const (
	KindFunctional DependencyKind = "fd"  // X → Y within one relation
	KindInclusion  DependencyKind = "ind" // R[X] ⊆ S[Y]
	KindTGD        DependencyKind = "tgd" // body(x̄) → head(x̄, ȳ)
	KindEGD        DependencyKind = "egd" // body(x̄) → x_i = x_j
)

// ParseDependencyKind normalizes a user-supplied kind string.
func ParseDependencyKind(s string) (DependencyKind, error) {
	switch DependencyKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindFunctional:
		return KindFunctional, nil
	case KindInclusion:
		return KindInclusion, nil
	case KindTGD:
		return KindTGD, nil
	case KindEGD:
		return KindEGD, nil
	}
	return "", fmt.Errorf("unknown dependency kind %q", s)
}

// InclusionDependency states that every value of the dependent columns
// appears in the referenced columns.
type InclusionDependency struct {
	DependentTable  string   `json:"dependent_table" yaml:"dependent_table"`
	DependentCols   []string `json:"dependent_cols" yaml:"dependent_cols"`
	ReferencedTable string   `json:"referenced_table" yaml:"referenced_table"`
	ReferencedCols  []string `json:"referenced_cols" yaml:"referenced_cols"`
	Support         float64  `json:"support" yaml:"support"`
}

// Display renders the dependency in the conventional R[X] ⊆ S[Y] notation.
func (d InclusionDependency) Display() string {
	return fmt.Sprintf("%s[%s] <= %s[%s]",
		d.DependentTable, strings.Join(d.DependentCols, ","),
		d.ReferencedTable, strings.Join(d.ReferencedCols, ","))
}

// FunctionalDependency states that within one relation the determinant
// columns fix the value of the dependent column.
type FunctionalDependency struct {
	Table       string   `json:"table" yaml:"table"`
	Determinant []string `json:"determinant" yaml:"determinant"`
	Dependent   string   `json:"dependent" yaml:"dependent"`
	Support     float64  `json:"support" yaml:"support"`
	Confidence  float64  `json:"confidence" yaml:"confidence"`
}

// Display renders the dependency in X → Y notation.
func (d FunctionalDependency) Display() string {
	return fmt.Sprintf("%s: %s -> %s", d.Table, strings.Join(d.Determinant, ","), d.Dependent)
}

// TGDRule is a tuple-generating dependency: whenever the body join is
// satisfiable, the head join must also be satisfiable.
type TGDRule struct {
	Body       []string `json:"body" yaml:"body"`
	Head       []string `json:"head" yaml:"head"`
	Display    string   `json:"display" yaml:"display"`
	Accuracy   float64  `json:"accuracy" yaml:"accuracy"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
}

// VariableEquality is one x_i = x_j constraint in an EGD head.
type VariableEquality struct {
	Left  Attribute `json:"left" yaml:"left"`
	Right Attribute `json:"right" yaml:"right"`
}

// String renders the equality constraint.
func (e VariableEquality) String() string {
	return fmt.Sprintf("%s = %s", e.Left, e.Right)
}

// EGDRule is an equality-generating dependency: whenever the body join is
// satisfied, the head variable equalities must hold.
type EGDRule struct {
	Body                   []string           `json:"body" yaml:"body"`
	Head                   []string           `json:"head" yaml:"head"`
	HeadVariableEqualities []VariableEquality `json:"head_variable_equalities" yaml:"head_variable_equalities"`
	Display                string             `json:"display" yaml:"display"`
	Support                float64            `json:"support" yaml:"support"`
	Confidence             float64            `json:"confidence" yaml:"confidence"`
}

// DependencySet bundles everything one discovery run emitted. It is the
// unit the YAML emitter and the catalog repository persist.
type DependencySet struct {
	Kind       DependencyKind         `json:"kind" yaml:"kind"`
	Inclusion  []InclusionDependency  `json:"inclusion,omitempty" yaml:"inclusion,omitempty"`
	Functional []FunctionalDependency `json:"functional,omitempty" yaml:"functional,omitempty"`
	TGDs       []TGDRule              `json:"tgds,omitempty" yaml:"tgds,omitempty"`
	EGDs       []EGDRule              `json:"egds,omitempty" yaml:"egds,omitempty"`
}

// Len returns the number of dependencies across all families.
func (s *DependencySet) Len() int {
	return len(s.Inclusion) + len(s.Functional) + len(s.TGDs) + len(s.EGDs)
}
