package compat

import (
	"context"
	"strings"
	"sync"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
	"github.com/sievedata/sieve-engine/pkg/models"
)

// sameTableChecker accepts pairs drawn from one table. Functional
// dependency mining starts from these.
type sameTableChecker struct {
	deps Deps
}

func (c *sameTableChecker) Mode() Mode { return ModeSameTable }

func (c *sameTableChecker) Check(_ context.Context, pair models.ColumnPair) (Result, error) {
	ok := pair.Left.Table == pair.Right.Table && pair.Left.Column != pair.Right.Column
	return boolResult(ok), nil
}

// foreignKeyChecker accepts pairs declared as foreign keys, in either
// direction. The catalog is read once and reused across checks.
type foreignKeyChecker struct {
	deps Deps

	once    sync.Once
	loadErr error
	pairs   map[models.ColumnPair]struct{}
}

func newForeignKeyChecker(deps Deps) *foreignKeyChecker {
	return &foreignKeyChecker{deps: deps}
}

func (c *foreignKeyChecker) Mode() Mode { return ModeForeignKey }

func (c *foreignKeyChecker) load(ctx context.Context) error {
	c.once.Do(func() {
		fks, err := c.deps.Keys.ForeignKeys(ctx)
		if err != nil {
			c.loadErr = err
			return
		}
		c.pairs = make(map[models.ColumnPair]struct{}, 2*len(fks))
		for _, fk := range fks {
			from := models.Attribute{Table: fk.Table, Column: fk.Column}
			to := models.Attribute{Table: fk.ReferencedTable, Column: fk.ReferencedColumn}
			c.pairs[models.ColumnPair{Left: from, Right: to}] = struct{}{}
			c.pairs[models.ColumnPair{Left: to, Right: from}] = struct{}{}
		}
	})
	return c.loadErr
}

func (c *foreignKeyChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	if err := c.load(ctx); err != nil {
		return c.deps.degrade(ctx, ModeForeignKey, pair, err)
	}
	_, ok := c.pairs[pair]
	return boolResult(ok), nil
}

// typeChecker accepts pairs whose data types fall in the same class.
// This is the cheapest data-aware mode and the fallback for unknown
// mode names.
type typeChecker struct {
	deps Deps
}

func (c *typeChecker) Mode() Mode { return ModeType }

func (c *typeChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	leftClass, err := columnClass(ctx, c.deps.Schema, pair.Left)
	if err != nil {
		return c.deps.degrade(ctx, ModeType, pair, err)
	}
	rightClass, err := columnClass(ctx, c.deps.Schema, pair.Right)
	if err != nil {
		return c.deps.degrade(ctx, ModeType, pair, err)
	}
	ok := leftClass != classOther && leftClass == rightClass
	return boolResult(ok), nil
}

type typeClass int

const (
	classOther typeClass = iota
	classInteger
	classFloat
	classText
	classTime
	classBool
	classUUID
	classBinary
)

// classifyType folds dialect-specific type names into comparable
// classes. Names are matched case-insensitively and cover both the
// postgres and sqlserver vocabularies.
func classifyType(dataType string) typeClass {
	t := strings.ToLower(strings.TrimSpace(dataType))
	switch {
	case strings.Contains(t, "int") && !strings.Contains(t, "interval"),
		t == "serial", t == "bigserial", t == "smallserial":
		return classInteger
	case strings.Contains(t, "numeric"), strings.Contains(t, "decimal"),
		strings.Contains(t, "double"), strings.Contains(t, "real"),
		strings.Contains(t, "float"), strings.Contains(t, "money"):
		return classFloat
	case strings.Contains(t, "char"), strings.Contains(t, "text"),
		t == "citext", t == "name", t == "sysname":
		return classText
	case strings.Contains(t, "timestamp"), strings.Contains(t, "datetime"),
		t == "date", t == "time", t == "smalldatetime", t == "datetimeoffset":
		return classTime
	case t == "boolean", t == "bool", t == "bit":
		return classBool
	case t == "uuid", t == "uniqueidentifier":
		return classUUID
	case t == "bytea", strings.Contains(t, "binary"), t == "image", t == "blob":
		return classBinary
	default:
		return classOther
	}
}

func columnClass(ctx context.Context, schema datasource.SchemaReader, attr models.Attribute) (typeClass, error) {
	cols, err := schema.Columns(ctx, attr.Table)
	if err != nil {
		return classOther, err
	}
	for _, col := range cols {
		if col.Name == attr.Column {
			return classifyType(col.DataType), nil
		}
	}
	return classOther, nil
}

func boolResult(ok bool) Result {
	r := Result{Compatible: ok}
	if ok {
		r.Score = 1.0
	}
	return r
}
