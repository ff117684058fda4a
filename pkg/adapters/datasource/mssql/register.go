package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Type:        "sqlserver",
		DisplayName: "Microsoft SQL Server",
		Factory: func(ctx context.Context, cfg datasource.Config, logger *zap.Logger) (datasource.Handle, error) {
			return New(ctx, cfg, logger)
		},
	})
}
