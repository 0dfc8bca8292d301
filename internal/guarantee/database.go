package guarantee

import (
	"fmt"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateGuarantee creates a new guarantee record.
func (d *Database) CreateGuarantee(g *Guarantee) error {
	return d.db.Create(g).Error
}

// GetGuarantee retrieves a guarantee by its ledger id.
func (d *Database) GetGuarantee(guaranteeID string) (*Guarantee, error) {
	var g Guarantee
	if err := d.db.Where("guarantee_id = ?", guaranteeID).First(&g).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch guarantee: %w", err)
	}
	return &g, nil
}

// UpdateGuarantee persists a mutated guarantee record.
func (d *Database) UpdateGuarantee(g *Guarantee) error {
	return d.db.Save(g).Error
}

// GetOpenGuarantees lists all guarantees still open.
func (d *Database) GetOpenGuarantees() ([]Guarantee, error) {
	var out []Guarantee
	if err := d.db.Where("status = ?", StatusOpen).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch open guarantees: %w", err)
	}
	return out, nil
}
