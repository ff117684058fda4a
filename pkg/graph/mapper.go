package graph

import (
	"fmt"

	"github.com/sievedata/sieve-engine/pkg/models"
)

// TableSchema is the slice of schema information the mapper needs: a table
// name and its column names in ordinal order.
type TableSchema struct {
	Name    string
	Columns []string
}

// AttributeMapper maps table and column names to compact integer indices and
// back. All lookups are O(1) in both directions. Unknown names are programmer
// errors; the mapper returns an error and callers treat it as fatal.
type AttributeMapper struct {
	tables      []TableSchema
	tableIndex  map[string]int
	columnIndex []map[string]int // per table: column name -> attribute index
}

// NewAttributeMapper builds a mapper over the given table schemas.
func NewAttributeMapper(tables []TableSchema) *AttributeMapper {
	m := &AttributeMapper{
		tables:      tables,
		tableIndex:  make(map[string]int, len(tables)),
		columnIndex: make([]map[string]int, len(tables)),
	}
	for ti, t := range tables {
		m.tableIndex[t.Name] = ti
		cols := make(map[string]int, len(t.Columns))
		for ci, c := range t.Columns {
			cols[c] = ci
		}
		m.columnIndex[ti] = cols
	}
	return m
}

// TableCount returns the number of mapped tables.
func (m *AttributeMapper) TableCount() int {
	return len(m.tables)
}

// TableIndex returns the index of a table name.
func (m *AttributeMapper) TableIndex(name string) (int, bool) {
	ti, ok := m.tableIndex[name]
	return ti, ok
}

// TableName returns the name of a table index.
func (m *AttributeMapper) TableName(idx int) (string, error) {
	if idx < 0 || idx >= len(m.tables) {
		return "", fmt.Errorf("table index %d out of range", idx)
	}
	return m.tables[idx].Name, nil
}

// Columns returns the column names of a table index in ordinal order.
func (m *AttributeMapper) Columns(idx int) ([]string, error) {
	if idx < 0 || idx >= len(m.tables) {
		return nil, fmt.Errorf("table index %d out of range", idx)
	}
	return m.tables[idx].Columns, nil
}

// AttributeIndex returns the index of a column within a table.
func (m *AttributeMapper) AttributeIndex(table, column string) (int, int, error) {
	ti, ok := m.tableIndex[table]
	if !ok {
		return 0, 0, fmt.Errorf("unknown table %q", table)
	}
	ci, ok := m.columnIndex[ti][column]
	if !ok {
		return 0, 0, fmt.Errorf("unknown column %q on table %q", column, table)
	}
	return ti, ci, nil
}

// ToIndexed converts a domain attribute plus a table occurrence into the
// compact indexed form.
func (m *AttributeMapper) ToIndexed(attr models.Attribute, occurrence int) (IndexedAttribute, error) {
	ti, ci, err := m.AttributeIndex(attr.Table, attr.Column)
	if err != nil {
		return IndexedAttribute{}, err
	}
	return IndexedAttribute{Table: ti, Occurrence: occurrence, Attribute: ci}, nil
}

// ToAttribute converts an indexed attribute back to the domain form. The
// occurrence is dropped; callers needing it keep the IndexedAttribute.
func (m *AttributeMapper) ToAttribute(ia IndexedAttribute) (models.Attribute, error) {
	if ia.Table < 0 || ia.Table >= len(m.tables) {
		return models.Attribute{}, fmt.Errorf("table index %d out of range", ia.Table)
	}
	t := m.tables[ia.Table]
	if ia.Attribute < 0 || ia.Attribute >= len(t.Columns) {
		return models.Attribute{}, fmt.Errorf("attribute index %d out of range for table %q", ia.Attribute, t.Name)
	}
	return models.Attribute{Table: t.Name, Column: t.Columns[ia.Attribute]}, nil
}

// RenderAttribute renders an indexed attribute as "table#occ.column".
func (m *AttributeMapper) RenderAttribute(ia IndexedAttribute) string {
	attr, err := m.ToAttribute(ia)
	if err != nil {
		return ia.String()
	}
	if ia.Occurrence == 0 {
		return attr.String()
	}
	return fmt.Sprintf("%s#%d.%s", attr.Table, ia.Occurrence, attr.Column)
}

// RenderPredicate renders a predicate as "table.col = table#1.col".
func (m *AttributeMapper) RenderPredicate(p JoinableIndexedAttributes) string {
	return fmt.Sprintf("%s = %s", m.RenderAttribute(p.A), m.RenderAttribute(p.B))
}
