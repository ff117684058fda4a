package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
)

const defaultSampleLimit = 100

// Adapter implements datasource.Handle for PostgreSQL 12+.
type Adapter struct {
	pool        *pgxpool.Pool
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

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	sampleLimit := cfg.SampleLimit
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}

	return &Adapter{
		pool:        pool,
		schema:      schema,
		sampleLimit: sampleLimit,
		logger:      logger.Named("postgres"),
	}, nil
}

// Type returns the registered adapter type.
func (a *Adapter) Type() string { return "postgres" }

// Ping verifies the database is reachable with valid credentials.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// qualifiedTable returns the quoted "schema"."table" reference.
func (a *Adapter) qualifiedTable(table string) string {
	return pgx.Identifier{a.schema}.Sanitize() + "." + pgx.Identifier{table}.Sanitize()
}

func quoteColumn(column string) string {
	return pgx.Identifier{column}.Sanitize()
}
