package models

import "fmt"

// Attribute identifies a single column of a table in the mined database.
// The empty schema means the datasource default (public/dbo).
type Attribute struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// String returns the attribute in "table.column" notation.
func (a Attribute) String() string {
	return fmt.Sprintf("%s.%s", a.Table, a.Column)
}

// ColumnPair is an ordered pair of attributes considered for a join or
// equality predicate. Used both by compatibility checking and by composed
// index creation.
type ColumnPair struct {
	Left  Attribute `json:"left" yaml:"left"`
	Right Attribute `json:"right" yaml:"right"`
}

// String returns the pair in "a.x = b.y" notation.
func (p ColumnPair) String() string {
	return fmt.Sprintf("%s = %s", p.Left, p.Right)
}
