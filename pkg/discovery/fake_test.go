package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// fakeTable holds rows column-major-friendly: each row is one value per
// column, in column order. The empty string stands for NULL.
type fakeTable struct {
	columns []string
	types   []string
	rows    [][]string
}

func (t *fakeTable) columnIndex(name string) (int, bool) {
	for i, c := range t.columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// fakeHandle is an in-memory datasource.Handle for unit tests. It
// evaluates joins with nested loops, which is plenty for the handful of
// rows the tests use.
type fakeHandle struct {
	tables      map[string]*fakeTable
	foreignKeys []datasource.ForeignKeyMetadata

	mu           sync.Mutex
	indexedPairs []models.ColumnPair
}

var _ datasource.Handle = (*fakeHandle)(nil)

func (h *fakeHandle) Type() string                   { return "fake" }
func (h *fakeHandle) Ping(context.Context) error     { return nil }
func (h *fakeHandle) Close() error                   { return nil }

func (h *fakeHandle) TableNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(h.tables))
	for n := range h.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (h *fakeHandle) AttributeNames(_ context.Context, table string) ([]string, error) {
	t, ok := h.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	return append([]string(nil), t.columns...), nil
}

func (h *fakeHandle) Columns(_ context.Context, table string) ([]datasource.ColumnMetadata, error) {
	t, ok := h.tables[table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", table)
	}
	cols := make([]datasource.ColumnMetadata, len(t.columns))
	for i, c := range t.columns {
		typ := "text"
		if i < len(t.types) {
			typ = t.types[i]
		}
		cols[i] = datasource.ColumnMetadata{
			Name:            c,
			DataType:        typ,
			IsNullable:      true,
			OrdinalPosition: i + 1,
		}
	}
	return cols, nil
}

func (h *fakeHandle) RowCount(_ context.Context, table string) (int64, error) {
	t, ok := h.tables[table]
	if !ok {
		return 0, fmt.Errorf("no such table %q", table)
	}
	return int64(len(t.rows)), nil
}

func (h *fakeHandle) JoinRowCount(_ context.Context, conditions []datasource.JoinCondition, disjoint bool) (int64, error) {
	if len(conditions) == 0 {
		return 0, nil
	}

	type occKey struct {
		table string
		occ   int
	}
	seen := make(map[occKey]struct{})
	var occs []occKey
	add := func(c datasource.OccurrenceColumn) error {
		if _, ok := h.tables[c.Table]; !ok {
			return fmt.Errorf("no such table %q", c.Table)
		}
		k := occKey{c.Table, c.Occurrence}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			occs = append(occs, k)
		}
		return nil
	}
	for _, cond := range conditions {
		if err := add(cond.Left); err != nil {
			return 0, err
		}
		if err := add(cond.Right); err != nil {
			return 0, err
		}
	}

	occIndex := make(map[occKey]int, len(occs))
	for i, k := range occs {
		occIndex[k] = i
	}

	value := func(binding []int, c datasource.OccurrenceColumn) (string, error) {
		t := h.tables[c.Table]
		ci, ok := t.columnIndex(c.Column)
		if !ok {
			return "", fmt.Errorf("no column %s.%s", c.Table, c.Column)
		}
		row := t.rows[binding[occIndex[occKey{c.Table, c.Occurrence}]]]
		return row[ci], nil
	}

	var count int64
	binding := make([]int, len(occs))
	var walk func(depth int) error
	walk = func(depth int) error {
		if depth == len(occs) {
			if disjoint {
				for i := 0; i < len(occs); i++ {
					for j := i + 1; j < len(occs); j++ {
						if occs[i].table == occs[j].table && binding[i] == binding[j] {
							return nil
						}
					}
				}
			}
			for _, cond := range conditions {
				l, err := value(binding, cond.Left)
				if err != nil {
					return err
				}
				r, err := value(binding, cond.Right)
				if err != nil {
					return err
				}
				if l == "" || r == "" || l != r {
					return nil
				}
			}
			count++
			return nil
		}
		for ri := range h.tables[occs[depth].table].rows {
			binding[depth] = ri
			if err := walk(depth + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return 0, err
	}
	return count, nil
}

func (h *fakeHandle) CheckThreshold(ctx context.Context, conditions []datasource.JoinCondition, threshold int64) (bool, error) {
	n, err := h.JoinRowCount(ctx, conditions, false)
	if err != nil {
		return false, err
	}
	return n >= threshold, nil
}

func (h *fakeHandle) CreateComposedIndexes(_ context.Context, pairs []models.ColumnPair) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.indexedPairs = append(h.indexedPairs, pairs...)
	return nil
}

func (h *fakeHandle) columnValues(attr models.Attribute) ([]string, error) {
	t, ok := h.tables[attr.Table]
	if !ok {
		return nil, fmt.Errorf("no such table %q", attr.Table)
	}
	ci, ok := t.columnIndex(attr.Column)
	if !ok {
		return nil, fmt.Errorf("no column %s", attr)
	}
	vals := make([]string, len(t.rows))
	for i, row := range t.rows {
		vals[i] = row[ci]
	}
	return vals, nil
}

func distinctNonNull(vals []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, v := range vals {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func (h *fakeHandle) ColumnStats(_ context.Context, attr models.Attribute) (*datasource.ColumnStats, error) {
	vals, err := h.columnValues(attr)
	if err != nil {
		return nil, err
	}
	distinct := distinctNonNull(vals)
	stats := &datasource.ColumnStats{
		RowCount:      int64(len(vals)),
		DistinctCount: int64(len(distinct)),
	}
	for _, v := range vals {
		if v == "" {
			continue
		}
		stats.NonNullCount++
		if stats.MinValue == nil || v < *stats.MinValue {
			v := v
			stats.MinValue = &v
		}
		if stats.MaxValue == nil || v > *stats.MaxValue {
			v := v
			stats.MaxValue = &v
		}
	}
	return stats, nil
}

func (h *fakeHandle) SampleValues(_ context.Context, attr models.Attribute, limit int) ([]string, error) {
	vals, err := h.columnValues(attr)
	if err != nil {
		return nil, err
	}
	distinct := distinctNonNull(vals)
	out := make([]string, 0, len(distinct))
	for v := range distinct {
		out = append(out, v)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *fakeHandle) OverlapStats(_ context.Context, left, right models.Attribute) (*datasource.OverlapStats, error) {
	lv, err := h.columnValues(left)
	if err != nil {
		return nil, err
	}
	rv, err := h.columnValues(right)
	if err != nil {
		return nil, err
	}
	ld, rd := distinctNonNull(lv), distinctNonNull(rv)
	var shared int64
	for v := range ld {
		if _, ok := rd[v]; ok {
			shared++
		}
	}
	return &datasource.OverlapStats{
		LeftDistinct:  int64(len(ld)),
		RightDistinct: int64(len(rd)),
		Shared:        shared,
	}, nil
}

func (h *fakeHandle) AntiJoinCount(_ context.Context, left, right models.Attribute) (int64, error) {
	lv, err := h.columnValues(left)
	if err != nil {
		return 0, err
	}
	rv, err := h.columnValues(right)
	if err != nil {
		return 0, err
	}
	rd := distinctNonNull(rv)
	var missing int64
	for v := range distinctNonNull(lv) {
		if _, ok := rd[v]; !ok {
			missing++
		}
	}
	return missing, nil
}

func (h *fakeHandle) ForeignKeys(context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return append([]datasource.ForeignKeyMetadata(nil), h.foreignKeys...), nil
}

// demoHandle builds the customers/orders scenario: four customers, four
// orders, every order's customer_id present in customers, one customer
// with no orders.
func demoHandle() *fakeHandle {
	return &fakeHandle{
		tables: map[string]*fakeTable{
			"customers": {
				columns: []string{"id", "name", "city"},
				types:   []string{"integer", "text", "text"},
				rows: [][]string{
					{"1", "Ada", "Berlin"},
					{"2", "Grace", "London"},
					{"3", "Edsger", "Amsterdam"},
					{"4", "Barbara", "Boston"},
				},
			},
			"orders": {
				columns: []string{"id", "customer_id", "amount"},
				types:   []string{"integer", "integer", "numeric"},
				rows: [][]string{
					{"10", "1", "99.90"},
					{"11", "2", "15.00"},
					{"12", "2", "42.50"},
					{"13", "3", "7.25"},
				},
			},
		},
		foreignKeys: []datasource.ForeignKeyMetadata{
			{
				ConstraintName:   "orders_customer_id_fkey",
				Table:            "orders",
				Column:           "customer_id",
				ReferencedTable:  "customers",
				ReferencedColumn: "id",
			},
		},
	}
}
