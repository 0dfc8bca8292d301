package transit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tradegate/customs-api/internal/clearance"
	"github.com/tradegate/customs-api/internal/guarantee"
	"github.com/tradegate/customs-api/internal/types"
)

// Service runs transit movements end to end: opening against a guarantee
// reservation, tracking positions, and exit processing that hands findings
// to the clearance state machine for the forfeiture decision.
type Service struct {
	db         *Database
	guarantees *guarantee.Service
	clearing   *clearance.Service
}

func NewService(gormDB *gorm.DB, guarantees *guarantee.Service, clearing *clearance.Service) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		guarantees: guarantees,
		clearing:   clearing,
	}
}

// OpenMovement seals a released transit declaration and reserves the
// backing guarantee. The seal set and route become immutable here.
func (s *Service) OpenMovement(
	declarationID, guaranteeID string,
	route []Waypoint,
	seals []string,
	toleranceKm float64,
	reserveAmount float64,
	timeLimit time.Time,
	now time.Time,
) (*TransitDocument, error) {
	logger := log.With().
		Str("declaration_id", declarationID).
		Str("service", "transit").
		Logger()

	dec, err := s.clearing.GetDeclaration(declarationID)
	if err != nil {
		return nil, err
	}
	if dec.Type != types.TypeTransit {
		return nil, fmt.Errorf("declaration %s is not a transit declaration", declarationID)
	}
	if dec.State != types.StateReleased {
		return nil, fmt.Errorf("declaration %s is not released for transit (state %s)", declarationID, dec.State)
	}
	if len(seals) == 0 {
		return nil, fmt.Errorf("movement requires at least one seal")
	}

	if err := s.guarantees.Reserve(guaranteeID, reserveAmount, now); err != nil {
		return nil, err
	}

	routeJSON, err := json.Marshal(route)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route: %w", err)
	}
	sealsJSON, err := json.Marshal(seals)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal seal set: %w", err)
	}

	doc := &TransitDocument{
		MovementID:     "TRS_" + uuid.New().String(),
		DeclarationID:  declarationID,
		GuaranteeID:    guaranteeID,
		Route:          string(routeJSON),
		Seals:          string(sealsJSON),
		ToleranceKm:    toleranceKm,
		ReservedAmount: reserveAmount,
		TimeLimit:      timeLimit,
		Status:         StatusOpen,
	}
	if err := s.db.CreateMovement(doc); err != nil {
		if relErr := s.guarantees.Release(guaranteeID, reserveAmount, now); relErr != nil {
			logger.Error().Err(relErr).Msg("failed to release reservation after create failure")
		}
		return nil, fmt.Errorf("failed to create transit document: %w", err)
	}

	logger.Info().
		Str("movement_id", doc.MovementID).
		Str("guarantee_id", guaranteeID).
		Int("seals", len(seals)).
		Time("time_limit", timeLimit).
		Msg("transit movement opened")

	return doc, nil
}

// RecordPosition appends a position report and evaluates it against the
// corridor. Deviations are recorded as findings, not acted on here.
func (s *Service) RecordPosition(movementID string, lat, lon float64, now time.Time) (*PositionReport, error) {
	doc, err := s.db.GetMovement(movementID)
	if err != nil {
		return nil, err
	}
	if doc.Status != StatusOpen && doc.Status != StatusOverdue {
		return nil, fmt.Errorf("movement %s is not in flight (status %s)", movementID, doc.Status)
	}

	route, err := doc.waypoints()
	if err != nil {
		return nil, err
	}

	check := CheckRouteCompliance(lat, lon, route, doc.ToleranceKm)
	report := &PositionReport{
		MovementID:  movementID,
		Lat:         lat,
		Lon:         lon,
		ReportedAt:  now,
		Compliant:   check.Compliant,
		DeviationKm: check.DeviationKm,
	}
	if err := s.db.AppendPosition(report); err != nil {
		return nil, fmt.Errorf("failed to append position report: %w", err)
	}

	if !check.Compliant {
		log.Warn().
			Str("movement_id", movementID).
			Float64("deviation_km", check.DeviationKm).
			Str("service", "transit").
			Msg("route deviation recorded")
	}
	return report, nil
}

// ProcessExit verifies seals and the time limit at the exit office,
// collects the movement's findings and applies the clearance decision to
// the guarantee and the document.
func (s *Service) ProcessExit(movementID string, presentedSeals []string, now time.Time) (*TransitDocument, clearance.Decision, []clearance.ComplianceFinding, error) {
	logger := log.With().
		Str("movement_id", movementID).
		Str("service", "transit").
		Logger()

	doc, err := s.db.GetMovement(movementID)
	if err != nil {
		return nil, clearance.DecisionProceed, nil, err
	}
	if doc.Status != StatusOpen && doc.Status != StatusOverdue {
		return nil, clearance.DecisionProceed, nil, fmt.Errorf("movement %s already processed (status %s)", movementID, doc.Status)
	}

	expected, err := doc.sealSet()
	if err != nil {
		return nil, clearance.DecisionProceed, nil, err
	}

	var findings []clearance.ComplianceFinding

	sealCheck := VerifySeals(expected, presentedSeals)
	for _, missing := range sealCheck.Missing {
		findings = append(findings, clearance.ComplianceFinding{
			Code:     clearance.FindingSealMissing,
			Severity: 3,
			Detail:   "seal " + missing + " recorded at sealing but not presented",
		})
	}
	for _, unexpected := range sealCheck.Unexpected {
		findings = append(findings, clearance.ComplianceFinding{
			Code:     clearance.FindingSealUnexpected,
			Severity: 3,
			Detail:   "seal " + unexpected + " presented but never recorded",
		})
	}

	if TimeLimitExceeded(doc.TimeLimit, now) {
		findings = append(findings, clearance.ComplianceFinding{
			Code:     clearance.FindingTimeLimitExceeded,
			Severity: 2,
			Detail:   fmt.Sprintf("exit %s after limit %s", now.Format(time.RFC3339), doc.TimeLimit.Format(time.RFC3339)),
		})
	}

	deviations, err := s.db.CountDeviations(movementID)
	if err != nil {
		return nil, clearance.DecisionProceed, nil, err
	}
	if deviations > 0 {
		findings = append(findings, clearance.ComplianceFinding{
			Code:     clearance.FindingRouteDeviation,
			Severity: 1,
			Detail:   fmt.Sprintf("%d non-compliant position reports", deviations),
		})
	}

	decision, err := s.clearing.ResolveTransit(doc.DeclarationID, findings, now)
	if err != nil {
		return nil, clearance.DecisionProceed, nil, err
	}

	switch decision {
	case clearance.DecisionProceed:
		if err := s.guarantees.Release(doc.GuaranteeID, doc.ReservedAmount, now); err != nil {
			return nil, decision, findings, err
		}
		doc.Status = StatusExited
	case clearance.DecisionSuspend:
		// Reservation stays in place pending investigation.
		doc.Status = StatusSuspended
	case clearance.DecisionForfeit:
		if err := s.guarantees.Forfeit(doc.GuaranteeID); err != nil {
			return nil, decision, findings, err
		}
		doc.Status = StatusForfeited
	}

	if err := s.db.UpdateMovement(doc); err != nil {
		return nil, decision, findings, err
	}

	logger.Info().
		Int("findings", len(findings)).
		Str("decision", decision.String()).
		Str("status", doc.Status).
		Msg("exit processed")

	return doc, decision, findings, nil
}

// ResolveSuspension settles a movement suspended at exit once the
// investigation concludes.
func (s *Service) ResolveSuspension(movementID string, forfeit bool, now time.Time) (*TransitDocument, error) {
	doc, err := s.db.GetMovement(movementID)
	if err != nil {
		return nil, err
	}
	if doc.Status != StatusSuspended {
		return nil, fmt.Errorf("movement %s is not suspended (status %s)", movementID, doc.Status)
	}

	if forfeit {
		if err := s.guarantees.Forfeit(doc.GuaranteeID); err != nil {
			return nil, err
		}
		if _, err := s.clearing.Reject(doc.DeclarationID, clearance.ReasonGuaranteeForfeited, now); err != nil {
			return nil, err
		}
		doc.Status = StatusForfeited
	} else {
		// Conclude the clearance side before touching the ledger: if the
		// declaration cannot move on, the reservation must stay in place.
		if _, err := s.clearing.ResolveAppeal(doc.DeclarationID, true, now); err != nil {
			return nil, err
		}
		if _, err := s.clearing.ResolveTransit(doc.DeclarationID, nil, now); err != nil {
			return nil, err
		}
		if err := s.guarantees.Release(doc.GuaranteeID, doc.ReservedAmount, now); err != nil {
			return nil, err
		}
		doc.Status = StatusExited
	}

	if err := s.db.UpdateMovement(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetMovement retrieves a transit document.
func (s *Service) GetMovement(movementID string) (*TransitDocument, error) {
	return s.db.GetMovement(movementID)
}

// GetPositions returns the movement's position history.
func (s *Service) GetPositions(movementID string) ([]PositionReport, error) {
	return s.db.GetPositions(movementID)
}

// GetDB exposes the database for the overdue processor.
func (s *Service) GetDB() *Database {
	return s.db
}
