package risk

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradegate/customs-api/internal/types"
)

// Profile is the persisted result of one assessment. It is immutable for a
// given declaration version; amendments bump the version and store a new
// profile rather than rewriting this one.
type Profile struct {
	gorm.Model            `json:"-"`
	ProfileID             string        `gorm:"uniqueIndex" json:"profile_id"`
	DeclarationID         string        `gorm:"index" json:"declaration_id"`
	Version               int           `json:"version"`
	Factors               string        `json:"factors"` // JSON array of Factor
	TotalScore            float64       `json:"total_score"`
	Channel               types.Channel `json:"channel"`
	TrustedTraderOverride bool          `json:"trusted_trader_override"`
	CreatedAt             time.Time     `json:"created_at"`
}

// NewProfile materializes an assessment for storage.
func NewProfile(declarationID string, version int, a Assessment) (*Profile, error) {
	breakdown, err := json.Marshal(a.Factors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal factor breakdown: %w", err)
	}
	return &Profile{
		ProfileID:             "RSK_" + uuid.New().String(),
		DeclarationID:         declarationID,
		Version:               version,
		Factors:               string(breakdown),
		TotalScore:            a.TotalScore,
		Channel:               a.Channel,
		TrustedTraderOverride: a.TrustedTraderOverride,
	}, nil
}

// FactorBreakdown decodes the stored per-factor scores.
func (p *Profile) FactorBreakdown() ([]Factor, error) {
	var factors []Factor
	if err := json.Unmarshal([]byte(p.Factors), &factors); err != nil {
		return nil, fmt.Errorf("failed to decode factor breakdown: %w", err)
	}
	return factors, nil
}
