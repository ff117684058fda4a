package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Type:        "postgres",
		DisplayName: "PostgreSQL",
		Factory: func(ctx context.Context, cfg datasource.Config, logger *zap.Logger) (datasource.Handle, error) {
			return New(ctx, cfg, logger)
		},
	})
}
