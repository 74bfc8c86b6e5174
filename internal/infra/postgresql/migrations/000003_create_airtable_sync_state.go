package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outbound-shipments/internal/repository"
	"gorm.io/gorm"
)

func createAirtableSyncStateTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_airtable_sync_state",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.AirtableSyncStateModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AirtableSyncStateModel{})
		},
	}
}
