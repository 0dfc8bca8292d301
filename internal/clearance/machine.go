package clearance

import (
	"time"

	"github.com/tradegate/customs-api/internal/types"
)

// Machine applies the transition table to a declaration. It mutates only
// the in-memory state field; persistence and guard preconditions are the
// service's responsibility. Every successful transition is emitted to the
// notifier.
type Machine struct {
	notifier Notifier
}

func NewMachine(notifier Notifier) *Machine {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Machine{notifier: notifier}
}

// Transition moves a declaration to the target state, or fails with a
// typed error leaving the state untouched.
func (m *Machine) Transition(dec *types.Declaration, to types.ClearanceState, reason string, now time.Time) error {
	from := dec.State

	if dec.Terminal() {
		return &TransitionError{
			DeclarationID: dec.DeclarationID,
			From:          from,
			To:            to,
			Code:          CodeTerminalState,
			Detail:        "declaration is in a terminal state",
		}
	}
	if !transitionAllowed(from, to) {
		return &TransitionError{
			DeclarationID: dec.DeclarationID,
			From:          from,
			To:            to,
			Code:          CodeInvalidTransition,
			Detail:        "transition not in table",
		}
	}

	dec.State = to
	m.notifier.Notify(TransitionEvent{
		DeclarationID: dec.DeclarationID,
		From:          from,
		To:            to,
		Reason:        reason,
		At:            now,
	})
	return nil
}

// Outgoing lists the lawful successor states. Empty for terminal states.
func (m *Machine) Outgoing(dec *types.Declaration) []types.ClearanceState {
	if dec.Terminal() {
		return nil
	}
	out := transitions[dec.State]
	cp := make([]types.ClearanceState, len(out))
	copy(cp, out)
	return cp
}
