package database

import (
	"log/slog"

	"model-release/internal/database/versions"
	"model-release/internal/database/versions/migration_1"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID:      "0",
			Migrate: versions.Migration0,
		},
		{
			ID:       "1",
			Migrate:  migration_1.Migration,
			Rollback: migration_1.Rollback,
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// Fresh databases skip the sequential migrations and get the latest
		// schema directly.
		slog.Info("clean database detected, running full schema initialization")

		return txn.AutoMigrate(&ModelVersion{}, &ModelAlias{}, &PromotionRecord{}, &PromotionTask{})
	})

	return migrator
}
