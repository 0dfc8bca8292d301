package migrations

import (
	"github.com/tradegate/customs-api/internal/guarantee"
	"gorm.io/gorm"
)

// AddGuaranteeLedger creates the guarantee table and required indexes
func AddGuaranteeLedger(db *gorm.DB) error {
	if err := db.AutoMigrate(&guarantee.Guarantee{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Index for status filtering
		`CREATE INDEX IF NOT EXISTS idx_guarantees_status
		 ON guarantees(status)`,

		// Composite index for validity window queries
		`CREATE INDEX IF NOT EXISTS idx_guarantees_window
		 ON guarantees(valid_from, valid_until)`,

		// Composite index for instrument and status (common query pattern)
		`CREATE INDEX IF NOT EXISTS idx_guarantees_instrument_status
		 ON guarantees(instrument, status)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
