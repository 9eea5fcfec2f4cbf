package migration

import (
	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
	"github.com/soundline/vocalis/internal/config"
	resourcedomain "github.com/soundline/vocalis/internal/resource/domain"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned migrations target postgres. The other dialects are for
		// local development and tests, where the model schema is enough.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&usagedomain.TenantUsage{},
				&resourcedomain.Resource{},
				&syncdomain.SyncJob{},
				&auditdomain.AuditLog{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
