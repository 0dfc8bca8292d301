package transit

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateMovement creates a new transit document.
func (d *Database) CreateMovement(doc *TransitDocument) error {
	return d.db.Create(doc).Error
}

// GetMovement retrieves a transit document by movement id.
func (d *Database) GetMovement(movementID string) (*TransitDocument, error) {
	var doc TransitDocument
	if err := d.db.Where("movement_id = ?", movementID).First(&doc).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transit document: %w", err)
	}
	return &doc, nil
}

// UpdateMovement persists a mutated transit document.
func (d *Database) UpdateMovement(doc *TransitDocument) error {
	return d.db.Save(doc).Error
}

// AppendPosition appends one position report to the movement history.
func (d *Database) AppendPosition(report *PositionReport) error {
	return d.db.Create(report).Error
}

// GetPositions returns the movement's position history in report order.
func (d *Database) GetPositions(movementID string) ([]PositionReport, error) {
	var reports []PositionReport
	if err := d.db.Where("movement_id = ?", movementID).
		Order("reported_at ASC").
		Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch position history: %w", err)
	}
	return reports, nil
}

// CountDeviations counts non-compliant position reports for a movement.
func (d *Database) CountDeviations(movementID string) (int64, error) {
	var count int64
	if err := d.db.Model(&PositionReport{}).
		Where("movement_id = ? AND compliant = ?", movementID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count deviations: %w", err)
	}
	return count, nil
}

// GetOpenMovementsPastLimit lists open movements whose time limit has
// lapsed, for the overdue sweep.
func (d *Database) GetOpenMovementsPastLimit(now time.Time) ([]TransitDocument, error) {
	var docs []TransitDocument
	if err := d.db.Where("status = ? AND time_limit < ?", StatusOpen, now).
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch overdue movements: %w", err)
	}
	return docs, nil
}
