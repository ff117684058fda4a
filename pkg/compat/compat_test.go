package compat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// fakeData backs checker tests with canned schema and statistics.
type fakeData struct {
	columns  map[string][]datasource.ColumnMetadata
	samples  map[models.Attribute][]string
	stats    map[models.Attribute]*datasource.ColumnStats
	overlaps map[models.ColumnPair]*datasource.OverlapStats
	antijoin map[models.ColumnPair]int64
	fks      []datasource.ForeignKeyMetadata

	err   error
	calls int
}

func (f *fakeData) TableNames(ctx context.Context) ([]string, error) { return nil, f.err }

func (f *fakeData) AttributeNames(ctx context.Context, table string) ([]string, error) {
	return nil, f.err
}

func (f *fakeData) Columns(ctx context.Context, table string) ([]datasource.ColumnMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.columns[table], nil
}

func (f *fakeData) ColumnStats(ctx context.Context, attr models.Attribute) (*datasource.ColumnStats, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.stats[attr]; ok {
		return s, nil
	}
	return &datasource.ColumnStats{}, nil
}

func (f *fakeData) SampleValues(ctx context.Context, attr models.Attribute, limit int) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.samples[attr], nil
}

func (f *fakeData) OverlapStats(ctx context.Context, left, right models.Attribute) (*datasource.OverlapStats, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if o, ok := f.overlaps[models.ColumnPair{Left: left, Right: right}]; ok {
		return o, nil
	}
	return &datasource.OverlapStats{}, nil
}

func (f *fakeData) AntiJoinCount(ctx context.Context, left, right models.Attribute) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.antijoin[models.ColumnPair{Left: left, Right: right}], nil
}

func (f *fakeData) ForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fks, nil
}

func depsFor(f *fakeData) Deps {
	return Deps{Schema: f, Stats: f, Keys: f, SampleSize: 10}
}

func attr(table, column string) models.Attribute {
	return models.Attribute{Table: table, Column: column}
}

func pairOf(lt, lc, rt, rc string) models.ColumnPair {
	return models.ColumnPair{Left: attr(lt, lc), Right: attr(rt, rc)}
}

func TestSameTableChecker(t *testing.T) {
	c := New(ModeSameTable, depsFor(&fakeData{}))

	r, err := c.Check(context.Background(), pairOf("orders", "a", "orders", "b"))
	require.NoError(t, err)
	assert.True(t, r.Compatible)

	r, err = c.Check(context.Background(), pairOf("orders", "a", "customer", "b"))
	require.NoError(t, err)
	assert.False(t, r.Compatible)

	r, err = c.Check(context.Background(), pairOf("orders", "a", "orders", "a"))
	require.NoError(t, err)
	assert.False(t, r.Compatible)
}

func TestForeignKeyChecker(t *testing.T) {
	f := &fakeData{fks: []datasource.ForeignKeyMetadata{
		{ConstraintName: "fk_orders_customer", Table: "orders", Column: "customer_id",
			ReferencedTable: "customer", ReferencedColumn: "id"},
	}}
	c := New(ModeForeignKey, depsFor(f))

	r, err := c.Check(context.Background(), pairOf("orders", "customer_id", "customer", "id"))
	require.NoError(t, err)
	assert.True(t, r.Compatible)

	// Declared direction reversed still matches.
	r, err = c.Check(context.Background(), pairOf("customer", "id", "orders", "customer_id"))
	require.NoError(t, err)
	assert.True(t, r.Compatible)

	r, err = c.Check(context.Background(), pairOf("orders", "id", "customer", "id"))
	require.NoError(t, err)
	assert.False(t, r.Compatible)

	// Catalog is loaded once for all checks.
	assert.Equal(t, 1, f.calls)
}

func TestTypeChecker(t *testing.T) {
	f := &fakeData{columns: map[string][]datasource.ColumnMetadata{
		"orders": {
			{Name: "id", DataType: "bigint"},
			{Name: "note", DataType: "text"},
		},
		"customer": {
			{Name: "id", DataType: "integer"},
			{Name: "name", DataType: "character varying"},
			{Name: "payload", DataType: "jsonb"},
		},
	}}
	c := New(ModeType, depsFor(f))

	tests := []struct {
		name string
		pair models.ColumnPair
		want bool
	}{
		{"integer classes match", pairOf("orders", "id", "customer", "id"), true},
		{"text classes match", pairOf("orders", "note", "customer", "name"), true},
		{"integer vs text", pairOf("orders", "id", "customer", "name"), false},
		{"unclassified type never matches", pairOf("customer", "payload", "customer", "payload"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := c.Check(context.Background(), tt.pair)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Compatible)
		})
	}
}

func TestClassifyType_CoversBothDialects(t *testing.T) {
	assert.Equal(t, classInteger, classifyType("BIGINT"))
	assert.Equal(t, classInteger, classifyType("smallint"))
	assert.Equal(t, classFloat, classifyType("numeric"))
	assert.Equal(t, classFloat, classifyType("money"))
	assert.Equal(t, classText, classifyType("nvarchar"))
	assert.Equal(t, classTime, classifyType("timestamp with time zone"))
	assert.Equal(t, classTime, classifyType("datetime2"))
	assert.Equal(t, classBool, classifyType("bit"))
	assert.Equal(t, classUUID, classifyType("uniqueidentifier"))
	assert.Equal(t, classBinary, classifyType("varbinary"))
	assert.Equal(t, classOther, classifyType("xml"))
	assert.NotEqual(t, classInteger, classifyType("interval"))
}

func TestContainmentChecker(t *testing.T) {
	pair := pairOf("orders", "customer_id", "customer", "id")
	reverse := models.ColumnPair{Left: pair.Right, Right: pair.Left}

	f := &fakeData{antijoin: map[models.ColumnPair]int64{pair: 0, reverse: 0}}
	c := New(ModeContainment, depsFor(f))

	r, err := c.Check(context.Background(), pair)
	require.NoError(t, err)
	assert.True(t, r.Compatible)

	f.antijoin[reverse] = 3
	r, err = c.Check(context.Background(), pair)
	require.NoError(t, err)
	assert.False(t, r.Compatible)
}

func TestSampledOverlapChecker_Threshold(t *testing.T) {
	left := attr("orders", "customer_id")
	right := attr("customer", "id")
	f := &fakeData{samples: map[models.Attribute][]string{
		left:  {"1", "2", "3", "4", "5"},
		right: {"1", "2", "3", "4", "9"},
	}}
	c := New(ModeSampledOverlap, depsFor(f))

	// 4 of 5 match: exactly the 0.80 threshold.
	r, err := c.Check(context.Background(), pairOf("orders", "customer_id", "customer", "id"))
	require.NoError(t, err)
	assert.True(t, r.Compatible)
	assert.InDelta(t, 0.8, r.Score, 1e-9)

	f.samples[left] = []string{"1", "2", "3", "7", "8"}
	r, err = c.Check(context.Background(), pairOf("orders", "customer_id", "customer", "id"))
	require.NoError(t, err)
	assert.False(t, r.Compatible)
}

func TestSetOverlapChecker_SmallerSideRate(t *testing.T) {
	pair := pairOf("orders", "customer_id", "customer", "id")
	f := &fakeData{overlaps: map[models.ColumnPair]*datasource.OverlapStats{
		pair: {LeftDistinct: 10, RightDistinct: 100, Shared: 5},
	}}
	c := New(ModeSetOverlap, depsFor(f))

	r, err := c.Check(context.Background(), pair)
	require.NoError(t, err)
	assert.True(t, r.Compatible)
	assert.InDelta(t, 0.5, r.Score, 1e-9)
	assert.Equal(t, 5.0, r.Scores["shared"])

	f.overlaps[pair].Shared = 4
	r, err = c.Check(context.Background(), pair)
	require.NoError(t, err)
	assert.False(t, r.Compatible)
}

func TestSubsetChecker(t *testing.T) {
	pair := pairOf("orders", "customer_id", "customer", "id")
	f := &fakeData{
		stats:    map[models.Attribute]*datasource.ColumnStats{pair.Left: {RowCount: 500, NonNullCount: 500, DistinctCount: 100}},
		antijoin: map[models.ColumnPair]int64{pair: 5},
	}
	c := New(ModeSubset, depsFor(f))

	// 5 of 100 missing: exactly the 5% bound.
	r, err := c.Check(context.Background(), pair)
	require.NoError(t, err)
	assert.True(t, r.Compatible)

	f.antijoin[pair] = 6
	r, err = c.Check(context.Background(), pair)
	require.NoError(t, err)
	assert.False(t, r.Compatible)
}

func TestNameChecker_StringAndSynonyms(t *testing.T) {
	c := New(ModeName, depsFor(&fakeData{}))

	tests := []struct {
		name string
		pair models.ColumnPair
		want bool
	}{
		{"identical", pairOf("a", "customer_id", "b", "customer_id"), true},
		{"suffix and plural normalize away", pairOf("a", "customer_ids", "b", "customer"), true},
		{"synonyms", pairOf("a", "amount", "b", "total"), true},
		{"unrelated", pairOf("a", "zip_code", "b", "birthday"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := c.Check(context.Background(), tt.pair)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Compatible, "score=%v", r.Score)
		})
	}
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = f.vectors[in]
	}
	return out, nil
}

func TestNameChecker_EmbeddingBoost(t *testing.T) {
	deps := depsFor(&fakeData{})
	deps.Embedder = &fakeEmbedder{vectors: map[string][]float32{
		"a client_ref": {1, 0},
		"b customer":   {0.99, 0.141},
	}}
	c := New(ModeName, deps)

	r, err := c.Check(context.Background(), pairOf("a", "client_ref", "b", "customer"))
	require.NoError(t, err)
	assert.True(t, r.Compatible)
	assert.Greater(t, r.Scores["embedding"], nameEmbeddingThreshold)
	assert.Less(t, r.Scores["string"], nameStringThreshold)
}

func TestNameChecker_EmbedderFailureKeepsStringVerdict(t *testing.T) {
	deps := depsFor(&fakeData{})
	deps.Embedder = &fakeEmbedder{err: errors.New("provider down")}
	c := New(ModeName, deps)

	r, err := c.Check(context.Background(), pairOf("a", "customer_id", "b", "customer_id"))
	require.NoError(t, err)
	assert.True(t, r.Compatible)
	_, hasEmbed := r.Scores["embedding"]
	assert.False(t, hasEmbed)
}

func TestPatternChecker(t *testing.T) {
	f := &fakeData{samples: map[models.Attribute][]string{
		attr("a", "sku1"):  {"AB-1234", "CD-5678", "EF-9012"},
		attr("b", "sku2"):  {"GH-3456", "IJ-7890", "KL-1122"},
		attr("b", "email"): {"x@example.com", "long.name@example.org"},
	}}
	c := New(ModePattern, depsFor(f))

	r, err := c.Check(context.Background(), pairOf("a", "sku1", "b", "sku2"))
	require.NoError(t, err)
	assert.True(t, r.Compatible, "score=%v", r.Score)

	r, err = c.Check(context.Background(), pairOf("a", "sku1", "b", "email"))
	require.NoError(t, err)
	assert.False(t, r.Compatible, "score=%v", r.Score)
}

func TestDistributionChecker(t *testing.T) {
	f := &fakeData{samples: map[models.Attribute][]string{
		attr("a", "x"):    {"10", "11", "12", "13", "14"},
		attr("b", "y"):    {"20", "21", "22", "23", "24"},
		attr("b", "wild"): {"1", "2", "3", "4", "1000"},
		attr("b", "txt"):  {"red", "green", "blue", "cyan", "pink"},
	}}
	c := New(ModeDistribution, depsFor(f))

	// Two tight uniform samples have nearly identical CV and skewness.
	r, err := c.Check(context.Background(), pairOf("a", "x", "b", "y"))
	require.NoError(t, err)
	assert.True(t, r.Compatible, "scores=%v", r.Scores)

	r, err = c.Check(context.Background(), pairOf("a", "x", "b", "wild"))
	require.NoError(t, err)
	assert.False(t, r.Compatible, "scores=%v", r.Scores)

	r, err = c.Check(context.Background(), pairOf("a", "x", "b", "txt"))
	require.NoError(t, err)
	assert.False(t, r.Compatible)
}

func strPtr(s string) *string { return &s }

func TestTemporalChecker(t *testing.T) {
	f := &fakeData{stats: map[models.Attribute]*datasource.ColumnStats{
		attr("a", "created"): {MinValue: strPtr("2024-01-01"), MaxValue: strPtr("2024-12-31")},
		attr("b", "shipped"): {MinValue: strPtr("2024-10-01"), MaxValue: strPtr("2025-09-30")},
		attr("b", "ancient"): {MinValue: strPtr("1990-01-01"), MaxValue: strPtr("1990-12-31")},
		attr("b", "price"):   {MinValue: strPtr("10.5"), MaxValue: strPtr("99.9")},
	}}
	c := New(ModeTemporal, depsFor(f))

	// Oct-Dec 2024 overlap is ~25% of each year-long range... just below;
	// use ranges sharing a quarter of the shorter span.
	r, err := c.Check(context.Background(), pairOf("a", "created", "b", "shipped"))
	require.NoError(t, err)
	assert.False(t, r.Compatible)

	f.stats[attr("b", "shipped")] = &datasource.ColumnStats{
		MinValue: strPtr("2024-07-01"), MaxValue: strPtr("2025-06-30")}
	r, err = c.Check(context.Background(), pairOf("a", "created", "b", "shipped"))
	require.NoError(t, err)
	assert.True(t, r.Compatible, "score=%v", r.Score)

	r, err = c.Check(context.Background(), pairOf("a", "created", "b", "ancient"))
	require.NoError(t, err)
	assert.False(t, r.Compatible)

	r, err = c.Check(context.Background(), pairOf("a", "created", "b", "price"))
	require.NoError(t, err)
	assert.False(t, r.Compatible)
}

func TestEGDChecker_WeightedCombination(t *testing.T) {
	left := attr("orders", "customer_id")
	right := attr("customer", "id")
	f := &fakeData{
		columns: map[string][]datasource.ColumnMetadata{
			"orders":   {{Name: "customer_id", DataType: "bigint"}},
			"customer": {{Name: "id", DataType: "bigint"}},
		},
		samples: map[models.Attribute][]string{
			left:  {"1", "2", "3", "4", "5"},
			right: {"1", "2", "3", "4", "5"},
		},
		stats: map[models.Attribute]*datasource.ColumnStats{
			left:  {RowCount: 100, NonNullCount: 100, DistinctCount: 50},
			right: {RowCount: 50, NonNullCount: 50, DistinctCount: 50},
		},
	}
	c := New(ModeEGD, depsFor(f))

	r, err := c.Check(context.Background(), models.ColumnPair{Left: left, Right: right})
	require.NoError(t, err)

	// equality 1.0, cardinality 1.0, unique similarity 0.5, key 1.0, type 1.0
	want := 0.4*1.0 + 0.25*1.0 + 0.15*0.5 + 0.1*1.0 + 0.1*1.0
	assert.InDelta(t, want, r.Score, 1e-9)
	assert.True(t, r.Compatible)
	assert.Len(t, r.Scores, 5)
}

func TestEGDChecker_RejectsBelowThreshold(t *testing.T) {
	left := attr("a", "x")
	right := attr("b", "y")
	f := &fakeData{
		columns: map[string][]datasource.ColumnMetadata{
			"a": {{Name: "x", DataType: "text"}},
			"b": {{Name: "y", DataType: "bigint"}},
		},
		samples: map[models.Attribute][]string{
			left:  {"p", "q", "r", "s"},
			right: {"1", "2", "3", "4"},
		},
		stats: map[models.Attribute]*datasource.ColumnStats{
			left:  {RowCount: 100, NonNullCount: 100, DistinctCount: 4},
			right: {RowCount: 100, NonNullCount: 100, DistinctCount: 80},
		},
	}
	c := New(ModeEGD, depsFor(f))

	r, err := c.Check(context.Background(), models.ColumnPair{Left: left, Right: right})
	require.NoError(t, err)
	assert.False(t, r.Compatible)
	assert.Less(t, r.Score, egdAcceptThreshold)
}

func TestUnknownModeFallsBackToType(t *testing.T) {
	f := &fakeData{columns: map[string][]datasource.ColumnMetadata{
		"a": {{Name: "x", DataType: "int"}},
		"b": {{Name: "y", DataType: "bigint"}},
	}}
	c := New(Mode("galactic"), depsFor(f))
	assert.Equal(t, ModeType, c.Mode())

	r, err := c.Check(context.Background(), pairOf("a", "x", "b", "y"))
	require.NoError(t, err)
	assert.True(t, r.Compatible)
}

func TestDataAccessErrorDegradesToIncompatible(t *testing.T) {
	f := &fakeData{err: errors.New("connection reset")}
	for _, mode := range []Mode{
		ModeForeignKey, ModeType, ModeContainment, ModeSampledOverlap,
		ModeSetOverlap, ModePattern, ModeDistribution, ModeSubset,
		ModeTemporal, ModeEGD,
	} {
		t.Run(string(mode), func(t *testing.T) {
			c := New(mode, depsFor(f))
			r, err := c.Check(context.Background(), pairOf("a", "x", "b", "y"))
			require.NoError(t, err)
			assert.False(t, r.Compatible)
		})
	}
}

func TestCancelledContextPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeData{err: ctx.Err()}
	c := New(ModeContainment, depsFor(f))
	_, err := c.Check(ctx, pairOf("a", "x", "b", "y"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedChecker_MemoizesAndBounds(t *testing.T) {
	f := &fakeData{samples: map[models.Attribute][]string{}}
	deps := depsFor(f)
	deps.CacheSize = 2
	c := New(ModeSampledOverlap, deps)

	pair := pairOf("a", "x", "b", "y")
	_, err := c.Check(context.Background(), pair)
	require.NoError(t, err)
	callsAfterFirst := f.calls

	_, err = c.Check(context.Background(), pair)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, f.calls, "second check should hit the cache")

	// Filling past the bound evicts something but never grows the cache.
	cached := c.(*cachedChecker)
	for i := 0; i < 5; i++ {
		p := pairOf("a", fmt.Sprintf("c%d", i), "b", "y")
		_, err = c.Check(context.Background(), p)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, cached.cache.len(), 2)
}
