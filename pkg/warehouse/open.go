package warehouse

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/config"
	"github.com/ajitpratap0/nebula-tap-bigquery/pkg/errors"
)

// Open connects to the warehouse described by cfg.
func Open(ctx context.Context, cfg config.WarehouseConfig, logger *zap.Logger) (Warehouse, error) {
	switch t := Type(strings.ToLower(cfg.Type)); t {
	case "", TypeBigQuery:
		return NewBigQuery(ctx, BigQueryConfig{
			ProjectID:       cfg.ProjectID,
			CredentialsPath: cfg.CredentialsPath,
			Location:        cfg.Location,
		}, logger)
	case TypeSnowflake, TypePostgres, TypeMySQL:
		return OpenSQL(ctx, t, cfg.DSN, logger)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported warehouse type %q", cfg.Type)
	}
}
