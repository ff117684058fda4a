package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
)

// TableNames returns all user tables in the configured schema, sorted.
func (a *Adapter) TableNames(ctx context.Context) ([]string, error) {
	const query = `
	SELECT t.name
	FROM sys.tables t
	INNER JOIN sys.schemas s ON t.schema_id = s.schema_id
	WHERE s.name = @schema AND t.is_ms_shipped = 0
	ORDER BY t.name`

	rows, err := a.db.QueryContext(ctx, query, sql.Named("schema", a.schema))
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// AttributeNames returns the column names of a table in ordinal order.
func (a *Adapter) AttributeNames(ctx context.Context, table string) ([]string, error) {
	const query = `
	SELECT c.name
	FROM sys.columns c
	INNER JOIN sys.tables t ON c.object_id = t.object_id
	INNER JOIN sys.schemas s ON t.schema_id = s.schema_id
	WHERE s.name = @schema AND t.name = @table
	ORDER BY c.column_id`

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("schema", a.schema), sql.Named("table", table))
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return names, nil
}

// Columns returns full column metadata for a table, including data
// types and primary-key membership.
func (a *Adapter) Columns(ctx context.Context, table string) ([]datasource.ColumnMetadata, error) {
	const query = `
	SELECT
		c.name,
		tp.name,
		c.is_nullable,
		CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END,
		c.column_id
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	INNER JOIN sys.tables t ON c.object_id = t.object_id
	INNER JOIN sys.schemas s ON t.schema_id = s.schema_id
	LEFT JOIN (
		SELECT ic.object_id, ic.column_id
		FROM sys.index_columns ic
		INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		WHERE i.is_primary_key = 1
	) pk ON pk.object_id = c.object_id AND pk.column_id = c.column_id
	WHERE s.name = @schema AND t.name = @table
	ORDER BY c.column_id`

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("schema", a.schema), sql.Named("table", table))
	if err != nil {
		return nil, fmt.Errorf("query column metadata for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var col datasource.ColumnMetadata
		var isPK int
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &isPK, &col.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column metadata: %w", err)
		}
		col.IsPrimaryKey = isPK == 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column metadata: %w", err)
	}
	return columns, nil
}

// ForeignKeys returns every foreign key in the configured schema, one
// entry per column pair.
func (a *Adapter) ForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	const query = `
	SELECT
		fk.name,
		st.name,
		sc.name,
		rt.name,
		rc.name
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.tables st ON fkc.parent_object_id = st.object_id
	INNER JOIN sys.columns sc ON fkc.parent_object_id = sc.object_id AND fkc.parent_column_id = sc.column_id
	INNER JOIN sys.tables rt ON fkc.referenced_object_id = rt.object_id
	INNER JOIN sys.columns rc ON fkc.referenced_object_id = rc.object_id AND fkc.referenced_column_id = rc.column_id
	INNER JOIN sys.schemas s ON st.schema_id = s.schema_id
	WHERE s.name = @schema
	ORDER BY fk.name, fkc.constraint_column_id`

	rows, err := a.db.QueryContext(ctx, query, sql.Named("schema", a.schema))
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(&fk.ConstraintName, &fk.Table, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return fks, nil
}
