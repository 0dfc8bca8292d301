package codec

import "github.com/tradegate/customs-api/internal/types"

// ResponseStatus is the enumerated status carried by a CUSRES message.
type ResponseStatus string

const (
	StatusAccepted ResponseStatus = "ACC"
	StatusHeld     ResponseStatus = "HLD"
	StatusRejected ResponseStatus = "REJ"
	StatusCleared  ResponseStatus = "CLR"
)

// StatusForState maps a clearance state onto the wire status enum.
func StatusForState(s types.ClearanceState) ResponseStatus {
	switch s {
	case types.StateReleased, types.StateExited:
		return StatusCleared
	case types.StateRejected:
		return StatusRejected
	case types.StateAwaitingInspection, types.StateAwaitingExamination, types.StateSuspended:
		return StatusHeld
	default:
		return StatusAccepted
	}
}

// BuildResponse maps a declaration status onto CUSRES wire segments. The
// original functional reference is carried as a back-link; an amount
// segment is emitted only when a currency qualifies it.
func BuildResponse(reference string, origRef string, status ResponseStatus, amount float64, currency string) (Envelope, []Segment) {
	env := Envelope{
		Reference:   reference,
		MessageType: "CUSRES",
		Version:     CurrentVersion,
		Function:    FunctionOriginal,
	}
	body := []Segment{
		{Tag: TagRef, Fields: [][]string{{RefOriginal}, {origRef}}},
		{Tag: TagStatus, Fields: [][]string{{string(status)}}},
	}
	if currency != "" {
		body = append(body, Segment{Tag: TagAmount, Fields: [][]string{
			{AmountTotal},
			{formatAmount(amount), currency},
		}})
	}
	return env, body
}

// ParseResponse extracts the back-link, status and optional amount from a
// decoded CUSRES message.
func ParseResponse(msg Message) (origRef string, status ResponseStatus, amount float64, currency string, err error) {
	if msg.Envelope.MessageType != "CUSRES" {
		return "", "", 0, "", &MessageError{Detail: "expected CUSRES, got " + msg.Envelope.MessageType}
	}
	for _, seg := range msg.Segments {
		switch seg.Tag {
		case TagRef:
			if seg.Component(0, 0) == RefOriginal {
				origRef = seg.Component(1, 0)
			}
		case TagStatus:
			status = ResponseStatus(seg.Component(0, 0))
		case TagAmount:
			if seg.Component(0, 0) == AmountTotal {
				amount, err = parseAmount(seg.Component(1, 0))
				if err != nil {
					return "", "", 0, "", err
				}
				currency = seg.Component(1, 1)
			}
		}
	}
	if origRef == "" {
		return "", "", 0, "", &MessageError{Detail: "response carries no original reference"}
	}
	if status == "" {
		return "", "", 0, "", &MessageError{Detail: "response carries no status"}
	}
	return origRef, status, amount, currency, nil
}
