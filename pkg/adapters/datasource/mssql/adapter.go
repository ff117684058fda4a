package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
)

const defaultSampleLimit = 100

// Adapter implements datasource.Handle for SQL Server 2017+.
type Adapter struct {
	db          *sql.DB
	schema      string
	sampleLimit int
	logger      *zap.Logger
}

var _ datasource.Handle = (*Adapter)(nil)

// New opens a pooled connection described by cfg. The pool is owned by
// the adapter and released by Close.
func New(ctx context.Context, cfg datasource.Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sqlserver: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "dbo"
	}
	sampleLimit := cfg.SampleLimit
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}

	return &Adapter{
		db:          db,
		schema:      schema,
		sampleLimit: sampleLimit,
		logger:      logger.Named("mssql"),
	}, nil
}

// Type returns the registered adapter type.
func (a *Adapter) Type() string { return "sqlserver" }

// Ping verifies the database is reachable with valid credentials.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlserver: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// quoteName brackets an identifier, escaping ] as ]].
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// qualifiedTable returns the bracketed [schema].[table] reference.
func (a *Adapter) qualifiedTable(table string) string {
	return quoteName(a.schema) + "." + quoteName(table)
}
