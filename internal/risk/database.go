package risk

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

// CreateProfile stores a new risk profile.
func (d *Database) CreateProfile(profile *Profile) error {
	return d.db.Create(profile).Error
}

// GetProfile retrieves the profile for a declaration version.
func (d *Database) GetProfile(declarationID string, version int) (*Profile, error) {
	var profile Profile
	if err := d.db.Where("declaration_id = ? AND version = ?", declarationID, version).
		First(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch risk profile: %w", err)
	}
	return &profile, nil
}

// GetLatestProfile retrieves the most recent profile for a declaration.
func (d *Database) GetLatestProfile(declarationID string) (*Profile, error) {
	var profile Profile
	if err := d.db.Where("declaration_id = ?", declarationID).
		Order("version DESC").
		First(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch latest risk profile: %w", err)
	}
	return &profile, nil
}
