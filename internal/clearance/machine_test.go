package clearance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegate/customs-api/internal/types"
)

func newDeclaration(decType types.DeclarationType, state types.ClearanceState) *types.Declaration {
	return &types.Declaration{
		DeclarationID: "DEC_TEST",
		Type:          decType,
		State:         state,
	}
}

func TestTransitionFollowsTable(t *testing.T) {
	m := NewMachine(nil)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	dec := newDeclaration(types.TypeImport, types.StateSubmitted)
	require.NoError(t, m.Transition(dec, types.StateRiskAssessed, ReasonRiskAssessed, now))
	require.NoError(t, m.Transition(dec, types.StateAwaitingInspection, ReasonChannelRouting, now))
	require.NoError(t, m.Transition(dec, types.StateAwaitingPayment, ReasonInspectionCompliant, now))
	require.NoError(t, m.Transition(dec, types.StateReleased, ReasonPaymentConfirmed, now))
	assert.Equal(t, types.StateReleased, dec.State)
}

func TestUndocumentedTransitionFailsWithoutMutation(t *testing.T) {
	m := NewMachine(nil)
	now := time.Now()

	cases := []struct {
		from types.ClearanceState
		to   types.ClearanceState
	}{
		{types.StateSubmitted, types.StateReleased},
		{types.StateSubmitted, types.StateAwaitingPayment},
		{types.StateRiskAssessed, types.StateReleased},
		{types.StateAwaitingDocumentCheck, types.StateAwaitingInspection},
		{types.StateAwaitingPayment, types.StateRiskAssessed},
		{types.StateAwaitingPayment, types.StateExited},
	}

	for _, tc := range cases {
		dec := newDeclaration(types.TypeImport, tc.from)
		err := m.Transition(dec, tc.to, "test", now)
		require.Error(t, err, "%s -> %s", tc.from, tc.to)

		var terr *TransitionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, CodeInvalidTransition, terr.ReasonCode())
		assert.Equal(t, tc.from, dec.State, "state mutated on rejected transition")
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	m := NewMachine(nil)
	now := time.Now()

	for _, state := range []types.ClearanceState{types.StateRejected, types.StateExited} {
		dec := newDeclaration(types.TypeImport, state)
		assert.Empty(t, m.Outgoing(dec))

		err := m.Transition(dec, types.StateSubmitted, "test", now)
		var terr *TransitionError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, CodeTerminalState, terr.ReasonCode())
	}
}

func TestReleasedIsTerminalExceptForTransit(t *testing.T) {
	m := NewMachine(nil)
	now := time.Now()

	imported := newDeclaration(types.TypeImport, types.StateReleased)
	assert.Empty(t, m.Outgoing(imported))
	err := m.Transition(imported, types.StateExited, ReasonExitConfirmed, now)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, CodeTerminalState, terr.ReasonCode())
	assert.Equal(t, types.StateReleased, imported.State)

	transit := newDeclaration(types.TypeTransit, types.StateReleased)
	assert.NotEmpty(t, m.Outgoing(transit))
	require.NoError(t, m.Transition(transit, types.StateExited, ReasonExitConfirmed, now))
	assert.Equal(t, types.StateExited, transit.State)
}

func TestReleasedTransitCanSuspendOnViolation(t *testing.T) {
	m := NewMachine(nil)
	now := time.Now()

	dec := newDeclaration(types.TypeTransit, types.StateReleased)
	require.NoError(t, m.Transition(dec, types.StateSuspended, ReasonTransitViolation, now))
	require.NoError(t, m.Transition(dec, types.StateReleased, ReasonAppealUpheld, now))
	require.NoError(t, m.Transition(dec, types.StateExited, ReasonExitConfirmed, now))
}

func TestEveryTransitionEmitsOneEvent(t *testing.T) {
	var events []TransitionEvent
	m := NewMachine(notifierFunc(func(e TransitionEvent) {
		events = append(events, e)
	}))
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	dec := newDeclaration(types.TypeImport, types.StateSubmitted)
	require.NoError(t, m.Transition(dec, types.StateRiskAssessed, ReasonRiskAssessed, now))
	require.Error(t, m.Transition(dec, types.StateReleased, "test", now))
	require.NoError(t, m.Transition(dec, types.StateAutoReleased, ReasonAutoRelease, now))

	require.Len(t, events, 2)
	assert.Equal(t, types.StateSubmitted, events[0].From)
	assert.Equal(t, types.StateRiskAssessed, events[0].To)
	assert.Equal(t, ReasonRiskAssessed, events[0].Reason)
	assert.Equal(t, now, events[0].At)
	assert.Equal(t, types.StateAutoReleased, events[1].To)
}

func TestOutgoingStatesAreThemselvesDocumented(t *testing.T) {
	for from, outs := range transitions {
		for _, to := range outs {
			if to.Terminal() {
				continue
			}
			_, known := transitions[to]
			assert.True(t, known, "%s -> %s leads to a state with no outgoing entry", from, to)
		}
	}
}

type notifierFunc func(TransitionEvent)

func (f notifierFunc) Notify(e TransitionEvent) { f(e) }
