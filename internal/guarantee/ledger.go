// Package guarantee implements the ledger of financial instruments backing
// customs obligations: duties awaiting payment, suspended declarations
// under appeal and guarantee-backed transit movements.
package guarantee

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service serializes all mutating operations per guarantee id so that
// concurrent reservations against one comprehensive guarantee cannot
// double-spend its capacity. Operations on distinct guarantees proceed
// independently. Validity is checked against a caller-supplied clock, never
// an internal timer.
type Service struct {
	db    *Database
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, exists := s.locks[id]
	if !exists {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Open registers a new guarantee instrument and returns it.
func (s *Service) Open(instrument InstrumentType, face float64, validFrom, validUntil time.Time) (*Guarantee, error) {
	if face <= 0 {
		return nil, ErrInvalidAmount
	}
	if !validUntil.After(validFrom) {
		return nil, fmt.Errorf("validity window ends %s before it starts %s", validUntil, validFrom)
	}

	g := &Guarantee{
		GuaranteeID: "GTE_" + uuid.New().String(),
		Instrument:  instrument,
		FaceAmount:  face,
		ValidFrom:   validFrom,
		ValidUntil:  validUntil,
		Status:      StatusOpen,
	}
	if err := s.db.CreateGuarantee(g); err != nil {
		return nil, fmt.Errorf("failed to create guarantee: %w", err)
	}

	log.Info().
		Str("guarantee_id", g.GuaranteeID).
		Str("instrument", string(g.Instrument)).
		Float64("face_amount", g.FaceAmount).
		Time("valid_until", g.ValidUntil).
		Msg("guarantee opened")

	return g, nil
}

// Reserve consumes capacity against a guarantee. Fails without mutating
// state when the guarantee is expired, not open, or lacks capacity.
func (s *Service) Reserve(id string, amount float64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	g, err := s.db.GetGuarantee(id)
	if err != nil {
		return err
	}
	if err := s.operable(g, now); err != nil {
		return err
	}
	if g.ReservedAmount+amount > g.FaceAmount {
		log.Warn().
			Str("guarantee_id", id).
			Float64("reserved", g.ReservedAmount).
			Float64("requested", amount).
			Float64("face", g.FaceAmount).
			Msg("reservation exceeds capacity")
		return ErrInsufficientCapacity
	}

	g.ReservedAmount += amount
	if err := s.db.UpdateGuarantee(g); err != nil {
		return fmt.Errorf("failed to update guarantee: %w", err)
	}

	log.Debug().
		Str("guarantee_id", id).
		Float64("amount", amount).
		Float64("reserved", g.ReservedAmount).
		Msg("guarantee reserved")
	return nil
}

// Release returns previously reserved capacity. Only amounts currently
// reserved may be released.
func (s *Service) Release(id string, amount float64, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	g, err := s.db.GetGuarantee(id)
	if err != nil {
		return err
	}
	if err := s.operable(g, now); err != nil {
		return err
	}
	if amount > g.ReservedAmount {
		return ErrOverRelease
	}

	g.ReservedAmount -= amount
	if err := s.db.UpdateGuarantee(g); err != nil {
		return fmt.Errorf("failed to update guarantee: %w", err)
	}

	log.Debug().
		Str("guarantee_id", id).
		Float64("amount", amount).
		Float64("reserved", g.ReservedAmount).
		Msg("guarantee released")
	return nil
}

// Close retires a guarantee. Permitted only when nothing remains reserved.
func (s *Service) Close(id string, now time.Time) error {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	g, err := s.db.GetGuarantee(id)
	if err != nil {
		return err
	}
	if err := s.operable(g, now); err != nil {
		return err
	}
	if g.ReservedAmount != 0 {
		return ErrGuaranteeActive
	}

	g.Status = StatusClosed
	if err := s.db.UpdateGuarantee(g); err != nil {
		return fmt.Errorf("failed to update guarantee: %w", err)
	}

	log.Info().Str("guarantee_id", id).Msg("guarantee closed")
	return nil
}

// Forfeit seizes a guarantee following a compliance decision. The reserved
// amount stays consumed; the instrument can back nothing further. Forfeiture
// is a consequence imposed by the clearance state machine, so it is not
// subject to the validity-window check.
func (s *Service) Forfeit(id string) error {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	g, err := s.db.GetGuarantee(id)
	if err != nil {
		return err
	}
	if g.Status != StatusOpen {
		return ErrGuaranteeNotOpen
	}

	g.Status = StatusForfeited
	if err := s.db.UpdateGuarantee(g); err != nil {
		return fmt.Errorf("failed to update guarantee: %w", err)
	}

	log.Warn().
		Str("guarantee_id", id).
		Float64("forfeited_amount", g.ReservedAmount).
		Msg("guarantee forfeited")
	return nil
}

// Get retrieves a guarantee by id.
func (s *Service) Get(id string) (*Guarantee, error) {
	return s.db.GetGuarantee(id)
}

func (s *Service) operable(g *Guarantee, now time.Time) error {
	if g.Status != StatusOpen {
		return ErrGuaranteeNotOpen
	}
	if now.Before(g.ValidFrom) || now.After(g.ValidUntil) {
		return ErrGuaranteeExpired
	}
	return nil
}
