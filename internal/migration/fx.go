package migration

import (
	billingdomain "github.com/glowpress/keyline/internal/billing/domain"
	licensedomain "github.com/glowpress/keyline/internal/license/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		// Versioned migrations target Postgres. The sqlite driver used for
		// local runs gets its schema from gorm instead.
		if conn.Dialector.Name() != "postgres" {
			return conn.AutoMigrate(
				&licensedomain.License{},
				&licensedomain.Activation{},
				&licensedomain.ValidationLog{},
				&billingdomain.ProviderConfig{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
