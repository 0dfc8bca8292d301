package guarantee

import (
	"time"

	"gorm.io/gorm"
)

// InstrumentType identifies the kind of financial instrument backing a
// guarantee.
type InstrumentType string

const (
	InstrumentCash          InstrumentType = "CASH"
	InstrumentBank          InstrumentType = "BANK"
	InstrumentCarnet        InstrumentType = "CARNET"
	InstrumentComprehensive InstrumentType = "COMPREHENSIVE"
)

const (
	StatusOpen      = "OPEN"
	StatusClosed    = "CLOSED"
	StatusForfeited = "FORFEITED"
)

// Guarantee is one instrument in the ledger. ReservedAmount never exceeds
// FaceAmount; both are mutated only through the serialized ledger
// operations.
type Guarantee struct {
	gorm.Model     `json:"-"`
	GuaranteeID    string         `gorm:"uniqueIndex" json:"guarantee_id"`
	Instrument     InstrumentType `json:"instrument"`
	FaceAmount     float64        `json:"face_amount"`
	ReservedAmount float64        `json:"reserved_amount"`
	ValidFrom      time.Time      `json:"valid_from"`
	ValidUntil     time.Time      `json:"valid_until"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Available returns the unreserved capacity.
func (g *Guarantee) Available() float64 {
	return g.FaceAmount - g.ReservedAmount
}
