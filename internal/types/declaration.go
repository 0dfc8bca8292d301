package types

import (
	"time"

	"gorm.io/gorm"
)

// DeclarationType identifies the customs regime a declaration is lodged under.
type DeclarationType string

const (
	TypeImport   DeclarationType = "IM"
	TypeExport   DeclarationType = "EX"
	TypeTransit  DeclarationType = "TR"
	TypeReExport DeclarationType = "RE"
)

// ClearanceState is the closed set of lifecycle states a declaration moves
// through. Transitions are owned by the clearance package; nothing else may
// write this field.
type ClearanceState string

const (
	StateSubmitted            ClearanceState = "SUBMITTED"
	StateRiskAssessed         ClearanceState = "RISK_ASSESSED"
	StateAutoReleased         ClearanceState = "AUTO_RELEASED"
	StateAwaitingDocumentCheck ClearanceState = "AWAITING_DOCUMENT_CHECK"
	StateAwaitingInspection   ClearanceState = "AWAITING_INSPECTION"
	StateAwaitingExamination  ClearanceState = "AWAITING_EXAMINATION"
	StateAwaitingPayment      ClearanceState = "AWAITING_PAYMENT"
	StateSuspended            ClearanceState = "SUSPENDED"
	StateReleased             ClearanceState = "RELEASED"
	StateRejected             ClearanceState = "REJECTED"
	StateExited               ClearanceState = "EXITED"
)

// Terminal reports whether no further transitions may leave the state.
// Released is terminal except for transit declarations, which continue to
// Exited (or Suspended on exit findings); see Declaration.Terminal.
func (s ClearanceState) Terminal() bool {
	return s == StateReleased || s == StateRejected || s == StateExited
}

// Channel is the scrutiny level assigned by the risk engine.
type Channel string

const (
	ChannelGreen  Channel = "GREEN"  // automatic, no intervention
	ChannelYellow Channel = "YELLOW" // documentary check
	ChannelOrange Channel = "ORANGE" // partial physical inspection
	ChannelRed    Channel = "RED"    // detailed examination
)

type Declaration struct {
	gorm.Model         `json:"-"`
	DeclarationID      string          `gorm:"uniqueIndex" json:"declaration_id"`
	Reference          string          `gorm:"uniqueIndex" json:"reference"`
	Type               DeclarationType `json:"type"`
	DeclarantID        string          `gorm:"index" json:"declarant_id"`
	ConsigneeID        string          `json:"consignee_id"`
	Currency           string          `json:"currency"`
	TotalValue         float64         `json:"total_value"`
	PayableAmount      float64         `json:"payable_amount"`
	State              ClearanceState  `json:"state"`
	PreSuspensionState ClearanceState  `json:"-"`
	AppealGuaranteeID  string          `json:"-"`
	AppealAmount       float64         `json:"-"`
	Channel            Channel         `json:"channel"`
	Version            int             `json:"version"`
	SubmittedAt        time.Time       `json:"submitted_at"`
	Items              []GoodsItem     `gorm:"foreignKey:DeclarationID;references:DeclarationID" json:"items"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Terminal reports whether the declaration can transition no further.
// A released transit declaration is still in flight until exit.
func (d *Declaration) Terminal() bool {
	if d.State == StateReleased && d.Type == TypeTransit {
		return false
	}
	return d.State.Terminal()
}

type GoodsItem struct {
	gorm.Model    `json:"-"`
	DeclarationID string  `gorm:"index" json:"-"`
	Sequence      int     `json:"sequence"`
	HSCode        string  `json:"hs_code"`
	Origin        string  `json:"origin"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	NetWeight     float64 `json:"net_weight"`
	GrossWeight   float64 `json:"gross_weight"`
	Value         float64 `json:"value"`
	DutyLines     string  `json:"duty_lines"` // JSON array of DutyLine
}

// DutyLine is one duty or tax assessed against a goods item. Lines are
// serialized into GoodsItem.DutyLines at assessment time.
type DutyLine struct {
	Kind   string  `json:"kind"` // DUTY, VAT, EXCISE
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}
