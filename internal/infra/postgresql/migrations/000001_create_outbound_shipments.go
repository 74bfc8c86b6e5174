package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/outbound-shipments/internal/repository"
	"gorm.io/gorm"
)

func createOutboundShipmentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_outbound_shipments",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.OutboundShipmentModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.OutboundShipmentModel{})
		},
	}
}
