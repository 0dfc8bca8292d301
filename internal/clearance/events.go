package clearance

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradegate/customs-api/internal/types"
)

// TransitionEvent records one state change for downstream consumers.
// Delivery is the notification dispatcher's responsibility; the core only
// emits.
type TransitionEvent struct {
	DeclarationID string               `json:"declaration_id"`
	From          types.ClearanceState `json:"from"`
	To            types.ClearanceState `json:"to"`
	Reason        string               `json:"reason"`
	At            time.Time            `json:"at"`
}

// Notifier receives transition events. Implementations must not block the
// clearance path.
type Notifier interface {
	Notify(event TransitionEvent)
}

// LogNotifier writes transition events to the structured log. The default
// when no dispatcher is wired.
type LogNotifier struct{}

func (LogNotifier) Notify(event TransitionEvent) {
	log.Info().
		Str("declaration_id", event.DeclarationID).
		Str("from", string(event.From)).
		Str("to", string(event.To)).
		Str("reason", event.Reason).
		Time("at", event.At).
		Msg("clearance transition")
}
