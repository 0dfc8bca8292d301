package clearance

import (
	"fmt"

	"github.com/tradegate/customs-api/internal/types"
)

// Reason codes carried by transition events and guard rejections.
const (
	ReasonRiskAssessed          = "RISK_ASSESSED"
	ReasonChannelRouting        = "CHANNEL_ROUTING"
	ReasonAutoRelease           = "AUTO_RELEASE"
	ReasonDocumentsVerified     = "DOCUMENTS_VERIFIED"
	ReasonInspectionCompliant   = "INSPECTION_COMPLIANT"
	ReasonInspectionFailed      = "INSPECTION_NON_COMPLIANT"
	ReasonPaymentConfirmed      = "PAYMENT_CONFIRMED"
	ReasonAppealFiled           = "APPEAL_FILED"
	ReasonAppealUpheld          = "APPEAL_UPHELD"
	ReasonGuaranteeForfeited    = "GUARANTEE_FORFEITED"
	ReasonAmendment             = "AMENDMENT"
	ReasonWithdrawn             = "WITHDRAWN"
	ReasonExitConfirmed         = "EXIT_CONFIRMED"
	ReasonTransitViolation      = "TRANSIT_VIOLATION"
	ReasonValidationFailed      = "VALIDATION_FAILED"

	// Guard failure codes.
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeTerminalState       = "TERMINAL_STATE"
	CodeRiskProfileMissing  = "RISK_PROFILE_MISSING"
	CodeDocumentsIncomplete = "DOCUMENTS_INCOMPLETE"
	CodePaymentMismatch     = "PAYMENT_MISMATCH"
	CodeAmendmentNotAllowed = "AMENDMENT_NOT_ALLOWED"
	CodeNotTransit          = "NOT_TRANSIT"
	CodeDuplicateReference  = "DUPLICATE_REFERENCE"
)

// transitions is the closed table of lawful state changes. Anything not
// listed here fails without mutating the declaration.
var transitions = map[types.ClearanceState][]types.ClearanceState{
	types.StateSubmitted: {
		types.StateRiskAssessed,
		types.StateRejected,
	},
	types.StateRiskAssessed: {
		types.StateAutoReleased,
		types.StateAwaitingDocumentCheck,
		types.StateAwaitingInspection,
		types.StateAwaitingExamination,
		types.StateRejected,
	},
	types.StateAutoReleased: {
		types.StateAwaitingPayment,
		types.StateRejected,
	},
	types.StateAwaitingDocumentCheck: {
		types.StateAwaitingPayment,
		types.StateRiskAssessed, // amendment re-entry
		types.StateSuspended,
		types.StateRejected,
	},
	types.StateAwaitingInspection: {
		types.StateAwaitingPayment,
		types.StateSuspended,
		types.StateRejected,
	},
	types.StateAwaitingExamination: {
		types.StateAwaitingPayment,
		types.StateSuspended,
		types.StateRejected,
	},
	types.StateAwaitingPayment: {
		types.StateReleased,
		types.StateSuspended,
		types.StateRejected,
	},
	types.StateSuspended: {
		types.StateAwaitingDocumentCheck,
		types.StateAwaitingInspection,
		types.StateAwaitingExamination,
		types.StateAwaitingPayment,
		types.StateReleased,
		types.StateRejected,
	},
	// Transit only: a released transit declaration remains in flight until
	// exit is confirmed at the destination office. Rejected covers guarantee
	// forfeiture at exit processing.
	types.StateReleased: {
		types.StateExited,
		types.StateSuspended,
		types.StateRejected,
	},
}

func transitionAllowed(from, to types.ClearanceState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError is a typed guard rejection. The declaration state is
// guaranteed unchanged when one is returned.
type TransitionError struct {
	DeclarationID string
	From          types.ClearanceState
	To            types.ClearanceState
	Code          string
	Detail        string
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("declaration %s in state %s: %s", e.DeclarationID, e.From, e.Detail)
	}
	return fmt.Sprintf("declaration %s: %s -> %s rejected: %s", e.DeclarationID, e.From, e.To, e.Detail)
}

func (e *TransitionError) ReasonCode() string { return e.Code }
