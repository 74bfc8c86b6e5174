package migrations

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func all() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createOutboundShipmentsTable(),
		addOutboundShipmentsIndexes(),
		createAirtableSyncStateTable(),
	}
}

func Migrate(db *gorm.DB) error {
	if err := gormigrate.New(db, gormigrate.DefaultOptions, all()).Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(db *gorm.DB) error {
	if err := gormigrate.New(db, gormigrate.DefaultOptions, all()).RollbackLast(); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}
