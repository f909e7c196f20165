package migration

import (
	"context"

	"github.com/smallbiznis/queueline/internal/config"
	identitydomain "github.com/smallbiznis/queueline/internal/identity/domain"
	"github.com/smallbiznis/queueline/internal/seed"
	"github.com/smallbiznis/queueline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, users identitydomain.Service, log *zap.Logger) error {
		if err := Apply(conn, cfg); err != nil {
			return err
		}

		if !cfg.Bootstrap.EnsureAdmin {
			return nil
		}
		return seed.EnsureAdmin(context.Background(), users, cfg.Bootstrap, log)
	}),
)

// Apply brings the schema up to date for the configured dialect.
func Apply(conn *gorm.DB, cfg config.Config) error {
	if cfg.DBType != db.DialectPostgres {
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
