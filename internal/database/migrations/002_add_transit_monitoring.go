package migrations

import (
	"github.com/tradegate/customs-api/internal/transit"
	"gorm.io/gorm"
)

// AddTransitMonitoring creates the transit document and position report
// tables with the indexes the monitor queries need
func AddTransitMonitoring(db *gorm.DB) error {
	if err := db.AutoMigrate(&transit.TransitDocument{}, &transit.PositionReport{}); err != nil {
		return err
	}

	indexes := []string{
		// Composite index for the overdue sweep
		`CREATE INDEX IF NOT EXISTS idx_transit_documents_status_limit
		 ON transit_documents(status, time_limit)`,

		// Index for declaration lookups
		`CREATE INDEX IF NOT EXISTS idx_transit_documents_declaration
		 ON transit_documents(declaration_id)`,

		// Composite index for deviation counting
		`CREATE INDEX IF NOT EXISTS idx_position_reports_movement_compliant
		 ON position_reports(movement_id, compliant)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
