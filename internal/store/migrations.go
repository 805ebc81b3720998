package store

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationDropEmptyEntries = "2025-12-20_drop_empty_cache_entries"

// migrationRecord marks a data migration as applied.
type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type dataMigration struct {
	name string
	run  func(*gorm.DB) error
}

// dataMigrations run in order, each at most once per database.
var dataMigrations = []dataMigration{
	{name: migrationDropEmptyEntries, run: dropEmptyEntries},
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	var applied []string
	if err := db.Model(&migrationRecord{}).Pluck("name", &applied).Error; err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	for _, migration := range dataMigrations {
		if done[migration.name] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.run(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{
				Name:             migration.name,
				AppliedAtSeconds: time.Now().UTC().Unix(),
			}).Error
		})
		if err != nil {
			return err
		}
		logger.Info("cache migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// dropEmptyEntries removes rows written with a null payload; they fail to decode at startup.
func dropEmptyEntries(db *gorm.DB) error {
	return db.Where("value IS NULL OR value = '' OR value = 'null'").Delete(&Entry{}).Error
}
