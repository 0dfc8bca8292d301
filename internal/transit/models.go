package transit

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	StatusOpen      = "OPEN"
	StatusOverdue   = "OVERDUE"
	StatusExited    = "EXITED"
	StatusSuspended = "SUSPENDED"
	StatusForfeited = "FORFEITED"
)

// TransitDocument records one guarantee-backed movement. The seal set and
// route are fixed at sealing time; position history is append-only.
type TransitDocument struct {
	gorm.Model     `json:"-"`
	MovementID     string    `gorm:"uniqueIndex" json:"movement_id"`
	DeclarationID  string    `gorm:"index" json:"declaration_id"`
	GuaranteeID    string    `json:"guarantee_id"`
	Route          string    `json:"route"` // JSON array of Waypoint
	Seals          string    `json:"seals"` // JSON array of seal ids
	ToleranceKm    float64   `json:"tolerance_km"`
	ReservedAmount float64   `json:"reserved_amount"`
	TimeLimit      time.Time `json:"time_limit"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PositionReport is one appended entry of the movement's position history.
type PositionReport struct {
	gorm.Model  `json:"-"`
	MovementID  string    `gorm:"index" json:"movement_id"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	ReportedAt  time.Time `json:"reported_at"`
	Compliant   bool      `json:"compliant"`
	DeviationKm float64   `json:"deviation_km"`
}

func (t *TransitDocument) waypoints() ([]Waypoint, error) {
	var route []Waypoint
	if err := json.Unmarshal([]byte(t.Route), &route); err != nil {
		return nil, fmt.Errorf("failed to decode route: %w", err)
	}
	return route, nil
}

func (t *TransitDocument) sealSet() ([]string, error) {
	var seals []string
	if err := json.Unmarshal([]byte(t.Seals), &seals); err != nil {
		return nil, fmt.Errorf("failed to decode seal set: %w", err)
	}
	return seals, nil
}
