package graph

import "fmt"

// IndexedAttribute is the compact form of a column reference inside one
// candidate: (table index, table occurrence, attribute index). The occurrence
// distinguishes repeated appearances of the same table so that self-joins can
// be expressed. Immutable value type, safe as a map key.
type IndexedAttribute struct {
	Table      int
	Occurrence int
	Attribute  int
}

// Less orders attributes by (table, occurrence, attribute). Used to normalize
// predicate pairs so that equal predicates compare equal.
func (a IndexedAttribute) Less(b IndexedAttribute) bool {
	if a.Table != b.Table {
		return a.Table < b.Table
	}
	if a.Occurrence != b.Occurrence {
		return a.Occurrence < b.Occurrence
	}
	return a.Attribute < b.Attribute
}

// String renders the index triple. Human-readable rendering with real names
// goes through AttributeMapper.
func (a IndexedAttribute) String() string {
	return fmt.Sprintf("t%d_%d.a%d", a.Table, a.Occurrence, a.Attribute)
}

// JoinableIndexedAttributes is one equality predicate "A.col = B.col" between
// two indexed attributes. It is the node type of the constraint graph. The
// pair is unordered: NewPredicate normalizes the two sides so that the same
// predicate always produces the same value.
type JoinableIndexedAttributes struct {
	A IndexedAttribute
	B IndexedAttribute
}

// NewPredicate builds a normalized predicate from two attributes.
func NewPredicate(a, b IndexedAttribute) JoinableIndexedAttributes {
	if b.Less(a) {
		a, b = b, a
	}
	return JoinableIndexedAttributes{A: a, B: b}
}

// Contains reports whether ia is one of the two sides of the predicate.
func (p JoinableIndexedAttributes) Contains(ia IndexedAttribute) bool {
	return p.A == ia || p.B == ia
}

// SharesAttribute reports whether two predicates have at least one
// IndexedAttribute in common. This is the edge relation of the constraint
// graph: predicates sharing an attribute can be chained into one join.
func (p JoinableIndexedAttributes) SharesAttribute(q JoinableIndexedAttributes) bool {
	return q.Contains(p.A) || q.Contains(p.B)
}

// Trivial reports whether the predicate compares an attribute with itself.
func (p JoinableIndexedAttributes) Trivial() bool {
	return p.A == p.B
}

// String renders the predicate with index triples.
func (p JoinableIndexedAttributes) String() string {
	return fmt.Sprintf("%s = %s", p.A, p.B)
}
