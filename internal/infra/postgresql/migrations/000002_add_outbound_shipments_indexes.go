package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addOutboundShipmentsIndexes() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_outbound_shipments_indexes",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_outbound_shipments_status ON outbound_shipments (status)`,
				`CREATE INDEX IF NOT EXISTS idx_outbound_shipments_carrier ON outbound_shipments (carrier)`,
				`CREATE INDEX IF NOT EXISTS idx_outbound_shipments_created_time ON outbound_shipments (created_time)`,
				`CREATE INDEX IF NOT EXISTS idx_outbound_shipments_airtable_pending ON outbound_shipments (id) WHERE airtable_record_id = ''`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			statements := []string{
				`DROP INDEX IF EXISTS idx_outbound_shipments_airtable_pending`,
				`DROP INDEX IF EXISTS idx_outbound_shipments_created_time`,
				`DROP INDEX IF EXISTS idx_outbound_shipments_carrier`,
				`DROP INDEX IF EXISTS idx_outbound_shipments_status`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
