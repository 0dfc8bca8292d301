package types

import "time"

// DeclarationResponse is returned by the clearance service on submission,
// amendment and status queries.
type DeclarationResponse struct {
	DeclarationID string         `json:"declaration_id"`
	Reference     string         `json:"reference"`
	State         ClearanceState `json:"state"`
	Channel       Channel        `json:"channel,omitempty"`
	TotalValue    float64        `json:"total_value"`
	PayableAmount float64        `json:"payable_amount"`
	Currency      string         `json:"currency"`
	Version       int            `json:"version"`
	Timestamp     time.Time      `json:"timestamp"`
}

// GuaranteeResponse is returned by the guarantee ledger endpoints.
type GuaranteeResponse struct {
	GuaranteeID     string    `json:"guarantee_id"`
	Instrument      string    `json:"instrument"`
	FaceAmount      float64   `json:"face_amount"`
	ReservedAmount  float64   `json:"reserved_amount"`
	AvailableAmount float64   `json:"available_amount"`
	Status          string    `json:"status"`
	ValidUntil      time.Time `json:"valid_until"`
	Timestamp       time.Time `json:"timestamp"`
}

// MovementResponse is returned by the transit endpoints.
type MovementResponse struct {
	MovementID    string    `json:"movement_id"`
	DeclarationID string    `json:"declaration_id"`
	GuaranteeID   string    `json:"guarantee_id"`
	Status        string    `json:"status"`
	TimeLimit     time.Time `json:"time_limit"`
	Findings      []string  `json:"findings,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
