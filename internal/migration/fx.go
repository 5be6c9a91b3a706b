package migration

import (
	"fmt"

	"github.com/smallbiznis/usagestats/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if !cfg.DBBootstrap {
			return nil
		}
		if cfg.DBType != "postgres" {
			return fmt.Errorf("DATABASE_BOOTSTRAP requires postgres, got %s", cfg.DBType)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
