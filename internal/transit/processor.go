package transit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor sweeps open movements whose time limit has lapsed and marks
// them overdue. Overdue movements stay in flight; exit processing raises
// the time-limit finding when the truck finally arrives.
type Processor struct {
	db         *Database
	sweepDelay time.Duration
}

func NewProcessor(db *Database) *Processor {
	return &Processor{
		db:         db,
		sweepDelay: 5 * time.Minute,
	}
}

// Start begins the overdue sweep loop.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "transit_processor").Logger()
	logger.Info().Msg("starting transit processor")

	ticker := time.NewTicker(p.sweepDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down transit processor")
			return
		case <-ticker.C:
			if err := p.sweepOverdue(time.Now()); err != nil {
				logger.Error().Err(err).Msg("failed to sweep overdue movements")
			}
		}
	}
}

func (p *Processor) sweepOverdue(now time.Time) error {
	logger := log.With().Str("component", "transit_processor").Logger()

	docs, err := p.db.GetOpenMovementsPastLimit(now)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	logger.Info().Int("overdue_count", len(docs)).Msg("marking overdue movements")

	for i := range docs {
		doc := &docs[i]
		doc.Status = StatusOverdue
		if err := p.db.UpdateMovement(doc); err != nil {
			logger.Error().Err(err).
				Str("movement_id", doc.MovementID).
				Msg("failed to mark movement overdue")
			continue
		}
		logger.Warn().
			Str("movement_id", doc.MovementID).
			Str("declaration_id", doc.DeclarationID).
			Time("time_limit", doc.TimeLimit).
			Msg("movement past its time limit")
	}
	return nil
}
