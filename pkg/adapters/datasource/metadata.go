package datasource

// ColumnMetadata describes one column of a discovered table.
type ColumnMetadata struct {
	Name            string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
}

// ForeignKeyMetadata describes one column pair of a declared foreign key.
// A composite key produces one entry per position.
type ForeignKeyMetadata struct {
	ConstraintName   string
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// ColumnStats contains counting statistics for a single column.
// MinValue and MaxValue are textual renderings and are nil when the
// column type has no ordering.
type ColumnStats struct {
	RowCount      int64
	NonNullCount  int64
	DistinctCount int64
	MinValue      *string
	MaxValue      *string
}

// NullFraction returns the fraction of rows with a NULL in this column.
func (s *ColumnStats) NullFraction() float64 {
	if s.RowCount == 0 {
		return 0
	}
	return float64(s.RowCount-s.NonNullCount) / float64(s.RowCount)
}

// UniqueFraction returns distinct values over non-null rows. A value of
// 1.0 means the column is duplicate-free.
func (s *ColumnStats) UniqueFraction() float64 {
	if s.NonNullCount == 0 {
		return 0
	}
	return float64(s.DistinctCount) / float64(s.NonNullCount)
}

// OverlapStats reports how the distinct value sets of two columns relate.
type OverlapStats struct {
	LeftDistinct  int64
	RightDistinct int64
	Shared        int64
}

// SmallerSideRate returns shared values over the smaller distinct set,
// the symmetric containment measure used by set-overlap checks.
func (o *OverlapStats) SmallerSideRate() float64 {
	smaller := o.LeftDistinct
	if o.RightDistinct < smaller {
		smaller = o.RightDistinct
	}
	if smaller == 0 {
		return 0
	}
	return float64(o.Shared) / float64(smaller)
}
