package clearance

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tradegate/customs-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateDeclaration persists a declaration together with its goods items.
func (d *Database) CreateDeclaration(dec *types.Declaration) error {
	return d.db.Create(dec).Error
}

// GetDeclaration retrieves a declaration with its items by clearance id.
func (d *Database) GetDeclaration(declarationID string) (*types.Declaration, error) {
	var dec types.Declaration
	if err := d.db.Preload("Items").
		Where("declaration_id = ?", declarationID).
		First(&dec).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch declaration: %w", err)
	}
	return &dec, nil
}

// GetDeclarationByReference retrieves a declaration by its functional
// reference, used for idempotent submission and amendment back-links.
func (d *Database) GetDeclarationByReference(reference string) (*types.Declaration, error) {
	var dec types.Declaration
	if err := d.db.Preload("Items").
		Where("reference = ?", reference).
		First(&dec).Error; err != nil {
		return nil, err
	}
	return &dec, nil
}

// UpdateDeclaration persists a mutated declaration record without touching
// its items.
func (d *Database) UpdateDeclaration(dec *types.Declaration) error {
	return d.db.Omit("Items").Save(dec).Error
}

// ReplaceItems swaps a declaration's goods items and saves the amended
// header in one transaction, so a failed amendment leaves the previous
// version intact.
func (d *Database) ReplaceItems(dec *types.Declaration, items []types.GoodsItem) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Where("declaration_id = ?", dec.DeclarationID).
		Delete(&types.GoodsItem{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete previous goods items: %w", err)
	}

	for i := range items {
		items[i].DeclarationID = dec.DeclarationID
		items[i].ID = 0
	}
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create amended goods items: %w", err)
	}

	dec.Items = items
	if err := tx.Omit("Items").Save(dec).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save amended declaration: %w", err)
	}

	return tx.Commit().Error
}

// GetDeclarantStats returns the declarant's total and rejected declaration
// counts, used for the trader-history risk factor and repeat-offense
// checks.
func (d *Database) GetDeclarantStats(declarantID string) (total, rejected int64, err error) {
	type Result struct {
		Total    int64
		Rejected int64
	}
	var result Result

	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) as rejected
		FROM declarations
		WHERE declarant_id = ?
		AND deleted_at IS NULL`

	if err := d.db.Raw(query, types.StateRejected, declarantID).Scan(&result).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to calculate declarant stats: %w", err)
	}
	return result.Total, result.Rejected, nil
}
