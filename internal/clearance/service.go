// Package clearance orchestrates a declaration's lifecycle from CUSDEC
// submission through risk routing, checks, payment and release. It is the
// only writer of declaration state.
package clearance

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tradegate/customs-api/internal/codec"
	"github.com/tradegate/customs-api/internal/guarantee"
	"github.com/tradegate/customs-api/internal/risk"
	"github.com/tradegate/customs-api/internal/types"
)

// Service coordinates the codec, risk engine, guarantee ledger and state
// machine. All mutating operations on one declaration are serialized by a
// per-declaration mutex; operations on different declarations proceed
// independently. Every time comparison uses the caller-supplied clock.
type Service struct {
	db         *Database
	profiles   *risk.Database
	engine     *risk.Engine
	ref        risk.ReferenceData
	guarantees *guarantee.Service
	machine    *Machine
	docs       DocumentStore
	policy     ViolationPolicy

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(
	gormDB *gorm.DB,
	engine *risk.Engine,
	ref risk.ReferenceData,
	guarantees *guarantee.Service,
	docs DocumentStore,
	notifier Notifier,
	policy ViolationPolicy,
) *Service {
	if policy == nil {
		policy = DefaultViolationPolicy{}
	}
	return &Service{
		db:         NewDatabase(gormDB),
		profiles:   risk.NewDatabase(gormDB),
		engine:     engine,
		ref:        ref,
		guarantees: guarantees,
		machine:    NewMachine(notifier),
		docs:       docs,
		policy:     policy,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(declarationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, exists := s.locks[declarationID]
	if !exists {
		l = &sync.Mutex{}
		s.locks[declarationID] = l
	}
	return l
}

// Submit decodes a CUSDEC byte stream and runs intake: persist, assess,
// route. Resubmitting the same functional reference with an original
// function is idempotent and returns the existing declaration; amendment
// and deletion functions are dispatched to Amend and Withdraw.
func (s *Service) Submit(raw []byte, now time.Time) (*types.DeclarationResponse, error) {
	msg, err := codec.DecodeMessage(codec.DefaultDelimiters, raw)
	if err != nil {
		return nil, err
	}
	parsed, err := codec.ParseDeclaration(msg)
	if err != nil {
		return nil, err
	}

	switch msg.Envelope.Function {
	case codec.FunctionAmendment:
		return s.amend(parsed, now)
	case codec.FunctionDeletion:
		return s.withdraw(parsed.Reference, now)
	}

	logger := log.With().
		Str("reference", parsed.Reference).
		Str("service", "clearance").
		Logger()

	// Originals serialize per functional reference so concurrent duplicates
	// resolve to a single declaration instead of racing the uniqueness
	// check. Lock order is reference then declaration, everywhere.
	refLock := s.lockFor(parsed.Reference)
	refLock.Lock()
	defer refLock.Unlock()

	if existing, err := s.db.GetDeclarationByReference(parsed.Reference); err == nil {
		logger.Info().
			Str("declaration_id", existing.DeclarationID).
			Msg("duplicate submission, returning existing declaration")
		return s.toResponse(existing, now), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for existing declaration: %w", err)
	}

	dec := parsed
	dec.DeclarationID = "DEC_" + uuid.New().String()
	dec.State = types.StateSubmitted
	dec.Version = 1
	dec.SubmittedAt = now

	// Held through assessment and routing: a mutation arriving right
	// behind the original must not interleave with intake.
	l := s.lockFor(dec.DeclarationID)
	l.Lock()
	defer l.Unlock()

	items, payable, err := computeDuties(dec.Type, dec.Items)
	if err != nil {
		return nil, err
	}
	dec.Items = items
	dec.PayableAmount = payable

	if err := s.db.CreateDeclaration(dec); err != nil {
		logger.Error().Err(err).Msg("failed to persist declaration")
		return nil, fmt.Errorf("failed to persist declaration: %w", err)
	}

	logger.Info().
		Str("declaration_id", dec.DeclarationID).
		Str("type", string(dec.Type)).
		Int("items", len(dec.Items)).
		Float64("total_value", dec.TotalValue).
		Float64("payable_amount", dec.PayableAmount).
		Msg("declaration submitted")

	if err := s.assessAndRoute(dec, now); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// assessAndRoute computes a risk profile for the declaration's current
// version and routes it into a channel branch. Callers hold the
// declaration lock.
func (s *Service) assessAndRoute(dec *types.Declaration, now time.Time) error {
	logger := log.With().
		Str("declaration_id", dec.DeclarationID).
		Str("service", "clearance").
		Logger()

	assessment, err := s.assess(dec)
	if err != nil {
		return err
	}

	profile, err := risk.NewProfile(dec.DeclarationID, dec.Version, *assessment)
	if err != nil {
		return err
	}
	if err := s.profiles.CreateProfile(profile); err != nil {
		logger.Error().Err(err).Msg("failed to persist risk profile")
		return fmt.Errorf("failed to persist risk profile: %w", err)
	}

	logger.Info().
		Str("profile_id", profile.ProfileID).
		Float64("total_score", assessment.TotalScore).
		Str("channel", string(assessment.Channel)).
		Bool("trusted_trader_override", assessment.TrustedTraderOverride).
		Msg("risk assessment completed")

	// The persisted profile satisfies the RiskAssessed guard. Amendment
	// callers arrive already in RiskAssessed.
	if dec.State == types.StateSubmitted {
		if err := s.machine.Transition(dec, types.StateRiskAssessed, ReasonRiskAssessed, now); err != nil {
			return err
		}
	}
	dec.Channel = assessment.Channel

	var target types.ClearanceState
	var reason string
	switch assessment.Channel {
	case types.ChannelGreen:
		target, reason = types.StateAutoReleased, ReasonAutoRelease
	case types.ChannelYellow:
		target, reason = types.StateAwaitingDocumentCheck, ReasonChannelRouting
	case types.ChannelOrange:
		target, reason = types.StateAwaitingInspection, ReasonChannelRouting
	default:
		target, reason = types.StateAwaitingExamination, ReasonChannelRouting
	}
	if err := s.machine.Transition(dec, target, reason, now); err != nil {
		return err
	}

	// Green-channel declarations skip intervention and move straight to
	// payment collection.
	if target == types.StateAutoReleased {
		if err := s.machine.Transition(dec, types.StateAwaitingPayment, ReasonAutoRelease, now); err != nil {
			return err
		}
	}

	return s.db.UpdateDeclaration(dec)
}

// assess builds the engine input from the declaration, the declarant's
// history and the reference-data provider.
func (s *Service) assess(dec *types.Declaration) (*risk.Assessment, error) {
	total, rejected, err := s.db.GetDeclarantStats(dec.DeclarantID)
	if err != nil {
		return nil, err
	}
	violationRate := 0.0
	if total > 0 {
		violationRate = float64(rejected) / float64(total)
	}

	commodity := risk.TierLow
	origin := risk.TierLow
	anomaly := 0.0
	for _, item := range dec.Items {
		commodity = risk.WorstTier(commodity, s.ref.CommodityRiskTier(item.HSCode))
		origin = risk.WorstTier(origin, s.ref.CountryRiskTier(item.Origin))

		if ref := s.ref.ReferenceUnitValue(item.HSCode); ref > 0 && item.Quantity > 0 {
			ratio := (item.Value / item.Quantity) / ref
			if anomaly == 0 || math.Abs(ratio-1) > math.Abs(anomaly-1) {
				anomaly = ratio
			}
		}
	}

	docsComplete, err := s.docs.DocumentSetComplete(dec.DeclarationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query document store: %w", err)
	}

	assessment := s.engine.Assess(risk.Input{
		TraderViolationRate: violationRate,
		TrustedTrader:       s.ref.TraderCertified(dec.DeclarantID),
		CommodityTier:       commodity,
		OriginTier:          origin,
		ValueAnomalyRatio:   anomaly,
		DocumentsComplete:   docsComplete,
	})
	return &assessment, nil
}

// amend applies an amendment message to an existing declaration. Permitted
// only while Submitted or AwaitingDocumentCheck; invalidates the current
// risk profile and forces re-entry through RiskAssessed.
func (s *Service) amend(parsed *types.Declaration, now time.Time) (*types.DeclarationResponse, error) {
	refLock := s.lockFor(parsed.Reference)
	refLock.Lock()
	defer refLock.Unlock()

	dec, err := s.db.GetDeclarationByReference(parsed.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch declaration for amendment: %w", err)
	}

	l := s.lockFor(dec.DeclarationID)
	l.Lock()
	defer l.Unlock()

	// Reload under the lock.
	dec, err = s.db.GetDeclaration(dec.DeclarationID)
	if err != nil {
		return nil, err
	}

	if dec.State != types.StateSubmitted && dec.State != types.StateAwaitingDocumentCheck {
		return nil, &TransitionError{
			DeclarationID: dec.DeclarationID,
			From:          dec.State,
			Code:          CodeAmendmentNotAllowed,
			Detail:        "amendment permitted only while submitted or awaiting document check",
		}
	}

	items, payable, err := computeDuties(dec.Type, parsed.Items)
	if err != nil {
		return nil, err
	}

	dec.Currency = parsed.Currency
	dec.TotalValue = parsed.TotalValue
	dec.PayableAmount = payable
	dec.Version++

	// Re-entry path from the document check branch runs back through
	// RiskAssessed before the new profile is computed.
	if dec.State == types.StateAwaitingDocumentCheck {
		if err := s.machine.Transition(dec, types.StateRiskAssessed, ReasonAmendment, now); err != nil {
			return nil, err
		}
	}

	if err := s.db.ReplaceItems(dec, items); err != nil {
		return nil, err
	}

	log.Info().
		Str("declaration_id", dec.DeclarationID).
		Int("version", dec.Version).
		Str("service", "clearance").
		Msg("declaration amended, risk profile invalidated")

	if err := s.assessAndRoute(dec, now); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// withdraw cancels a declaration on a deletion message. Allowed in the
// same states as amendment.
func (s *Service) withdraw(reference string, now time.Time) (*types.DeclarationResponse, error) {
	refLock := s.lockFor(reference)
	refLock.Lock()
	defer refLock.Unlock()

	dec, err := s.db.GetDeclarationByReference(reference)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch declaration for withdrawal: %w", err)
	}

	l := s.lockFor(dec.DeclarationID)
	l.Lock()
	defer l.Unlock()

	dec, err = s.db.GetDeclaration(dec.DeclarationID)
	if err != nil {
		return nil, err
	}

	if dec.State != types.StateSubmitted && dec.State != types.StateAwaitingDocumentCheck {
		return nil, &TransitionError{
			DeclarationID: dec.DeclarationID,
			From:          dec.State,
			Code:          CodeAmendmentNotAllowed,
			Detail:        "withdrawal permitted only while submitted or awaiting document check",
		}
	}

	if err := s.machine.Transition(dec, types.StateRejected, ReasonWithdrawn, now); err != nil {
		return nil, err
	}
	if err := s.db.UpdateDeclaration(dec); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// CompleteDocumentCheck concludes the documentary check. The document set
// must be reported complete by the document store collaborator.
func (s *Service) CompleteDocumentCheck(declarationID string, compliant bool, now time.Time) (*types.DeclarationResponse, error) {
	l := s.lockFor(declarationID)
	l.Lock()
	defer l.Unlock()

	dec, err := s.db.GetDeclaration(declarationID)
	if err != nil {
		return nil, err
	}

	if !compliant {
		if err := s.transitionAndSave(dec, types.StateRejected, ReasonValidationFailed, now); err != nil {
			return nil, err
		}
		return s.toResponse(dec, now), nil
	}

	complete, err := s.docs.DocumentSetComplete(declarationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query document store: %w", err)
	}
	if !complete {
		return nil, &TransitionError{
			DeclarationID: declarationID,
			From:          dec.State,
			To:            types.StateAwaitingPayment,
			Code:          CodeDocumentsIncomplete,
			Detail:        "document set incomplete",
		}
	}

	if err := s.transitionAndSave(dec, types.StateAwaitingPayment, ReasonDocumentsVerified, now); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// RecordInspection records a physical inspection or detailed examination
// outcome.
func (s *Service) RecordInspection(declarationID string, compliant bool, now time.Time) (*types.DeclarationResponse, error) {
	l := s.lockFor(declarationID)
	l.Lock()
	defer l.Unlock()

	dec, err := s.db.GetDeclaration(declarationID)
	if err != nil {
		return nil, err
	}

	target, reason := types.StateAwaitingPayment, ReasonInspectionCompliant
	if !compliant {
		target, reason = types.StateRejected, ReasonInspectionFailed
	}
	if err := s.transitionAndSave(dec, target, reason, now); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// ConfirmPayment records the payment-gateway event and releases the
// declaration. The confirmed amount must cover the assessed duties in the
// declaration currency.
func (s *Service) ConfirmPayment(declarationID string, amount float64, currency string, now time.Time) (*types.DeclarationResponse, error) {
	l := s.lockFor(declarationID)
	l.Lock()
	defer l.Unlock()

	dec, err := s.db.GetDeclaration(declarationID)
	if err != nil {
		return nil, err
	}

	if currency != dec.Currency || amount+1e-9 < dec.PayableAmount {
		return nil, &TransitionError{
			DeclarationID: declarationID,
			From:          dec.State,
			To:            types.StateReleased,
			Code:          CodePaymentMismatch,
			Detail: fmt.Sprintf("confirmed %v %s against assessed %v %s",
				amount, currency, dec.PayableAmount, dec.Currency),
		}
	}

	if err := s.transitionAndSave(dec, types.StateReleased, ReasonPaymentConfirmed, now); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// FileAppeal suspends a declaration pending appeal, backed by a guarantee
// reservation. The reservation happens first; a ledger rejection leaves
// the declaration untouched.
func (s *Service) FileAppeal(declarationID, guaranteeID string, amount float64, now time.Time) (*types.DeclarationResponse, error) {
	l := s.lockFor(declarationID)
	l.Lock()
	defer l.Unlock()

	dec, err := s.db.GetDeclaration(declarationID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(dec.State, types.StateSuspended) || dec.Terminal() {
		return nil, &TransitionError{
			DeclarationID: declarationID,
			From:          dec.State,
			To:            types.StateSuspended,
			Code:          CodeInvalidTransition,
			Detail:        "appeal not available in this state",
		}
	}

	if err := s.guarantees.Reserve(guaranteeID, amount, now); err != nil {
		return nil, err
	}

	preState := dec.State
	if err := s.machine.Transition(dec, types.StateSuspended, ReasonAppealFiled, now); err != nil {
		if relErr := s.guarantees.Release(guaranteeID, amount, now); relErr != nil {
			log.Error().Err(relErr).
				Str("guarantee_id", guaranteeID).
				Msg("failed to release reservation after rejected suspension")
		}
		return nil, err
	}

	dec.PreSuspensionState = preState
	dec.AppealGuaranteeID = guaranteeID
	dec.AppealAmount = amount
	if err := s.db.UpdateDeclaration(dec); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// ResolveAppeal concludes a suspension. An upheld appeal returns the
// declaration to its pre-suspension state and frees the reservation; a
// denied appeal forfeits the guarantee and rejects the declaration.
func (s *Service) ResolveAppeal(declarationID string, upheld bool, now time.Time) (*types.DeclarationResponse, error) {
	l := s.lockFor(declarationID)
	l.Lock()
	defer l.Unlock()

	dec, err := s.db.GetDeclaration(declarationID)
	if err != nil {
		return nil, err
	}
	if dec.State != types.StateSuspended {
		return nil, &TransitionError{
			DeclarationID: declarationID,
			From:          dec.State,
			Code:          CodeInvalidTransition,
			Detail:        "declaration is not suspended",
		}
	}

	if upheld {
		if err := s.machine.Transition(dec, dec.PreSuspensionState, ReasonAppealUpheld, now); err != nil {
			return nil, err
		}
		if dec.AppealGuaranteeID != "" {
			if err := s.guarantees.Release(dec.AppealGuaranteeID, dec.AppealAmount, now); err != nil {
				return nil, err
			}
		}
	} else {
		if dec.AppealGuaranteeID != "" {
			if err := s.guarantees.Forfeit(dec.AppealGuaranteeID); err != nil {
				return nil, err
			}
		}
		if err := s.machine.Transition(dec, types.StateRejected, ReasonGuaranteeForfeited, now); err != nil {
			return nil, err
		}
	}

	dec.PreSuspensionState = ""
	dec.AppealGuaranteeID = ""
	dec.AppealAmount = 0
	if err := s.db.UpdateDeclaration(dec); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// Reject forces a declaration to Rejected on validation failure or
// confirmed non-compliance.
func (s *Service) Reject(declarationID, reason string, now time.Time) (*types.DeclarationResponse, error) {
	l := s.lockFor(declarationID)
	l.Lock()
	defer l.Unlock()

	dec, err := s.db.GetDeclaration(declarationID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = ReasonValidationFailed
	}
	if err := s.transitionAndSave(dec, types.StateRejected, reason, now); err != nil {
		return nil, err
	}
	return s.toResponse(dec, now), nil
}

// ResolveTransit applies exit-processing findings to a released transit
// declaration and returns the policy decision so the transit service can
// settle the guarantee accordingly.
func (s *Service) ResolveTransit(declarationID string, findings []ComplianceFinding, now time.Time) (Decision, error) {
	l := s.lockFor(declarationID)
	l.Lock()
	defer l.Unlock()

	dec, err := s.db.GetDeclaration(declarationID)
	if err != nil {
		return DecisionProceed, err
	}
	if dec.Type != types.TypeTransit {
		return DecisionProceed, &TransitionError{
			DeclarationID: declarationID,
			From:          dec.State,
			Code:          CodeNotTransit,
			Detail:        "declaration is not a transit movement",
		}
	}

	_, rejected, err := s.db.GetDeclarantStats(dec.DeclarantID)
	if err != nil {
		return DecisionProceed, err
	}

	decision := s.policy.Decide(findings, int(rejected))

	log.Info().
		Str("declaration_id", declarationID).
		Int("findings", len(findings)).
		Int64("repeat_offenses", rejected).
		Str("decision", decision.String()).
		Str("service", "clearance").
		Msg("transit findings evaluated")

	switch decision {
	case DecisionProceed:
		err = s.transitionAndSave(dec, types.StateExited, ReasonExitConfirmed, now)
	case DecisionSuspend:
		preState := dec.State
		if err = s.machine.Transition(dec, types.StateSuspended, ReasonTransitViolation, now); err == nil {
			dec.PreSuspensionState = preState
			err = s.db.UpdateDeclaration(dec)
		}
	case DecisionForfeit:
		err = s.transitionAndSave(dec, types.StateRejected, ReasonGuaranteeForfeited, now)
	}
	if err != nil {
		return DecisionProceed, err
	}
	return decision, nil
}

// GetDeclaration retrieves a declaration by id.
func (s *Service) GetDeclaration(declarationID string) (*types.Declaration, error) {
	return s.db.GetDeclaration(declarationID)
}

// LatestProfile retrieves the current risk profile for a declaration.
func (s *Service) LatestProfile(declarationID string) (*risk.Profile, error) {
	return s.profiles.GetLatestProfile(declarationID)
}

// WireStatus renders the declaration status as a CUSRES byte stream.
func (s *Service) WireStatus(declarationID string) ([]byte, error) {
	dec, err := s.db.GetDeclaration(declarationID)
	if err != nil {
		return nil, err
	}

	env, body := codec.BuildResponse(
		"RSP_"+uuid.New().String(),
		dec.Reference,
		codec.StatusForState(dec.State),
		dec.PayableAmount,
		dec.Currency,
	)
	return codec.EncodeMessage(codec.DefaultDelimiters, env, body), nil
}

func (s *Service) transitionAndSave(dec *types.Declaration, to types.ClearanceState, reason string, now time.Time) error {
	if err := s.machine.Transition(dec, to, reason, now); err != nil {
		return err
	}
	return s.db.UpdateDeclaration(dec)
}

func (s *Service) toResponse(dec *types.Declaration, now time.Time) *types.DeclarationResponse {
	return &types.DeclarationResponse{
		DeclarationID: dec.DeclarationID,
		Reference:     dec.Reference,
		State:         dec.State,
		Channel:       dec.Channel,
		TotalValue:    dec.TotalValue,
		PayableAmount: dec.PayableAmount,
		Currency:      dec.Currency,
		Version:       dec.Version,
		Timestamp:     now,
	}
}
