package clearance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradegate/customs-api/internal/codec"
	"github.com/tradegate/customs-api/internal/guarantee"
	"github.com/tradegate/customs-api/internal/risk"
	"github.com/tradegate/customs-api/internal/types"
)

type ServiceSuite struct {
	suite.Suite
	db         *gorm.DB
	ref        *risk.StaticReference
	docs       *MemoryDocumentStore
	guarantees *guarantee.Service
	service    *Service
	events     []TransitionEvent
	now        time.Time
}

func (s *ServiceSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(
		&types.Declaration{},
		&types.GoodsItem{},
		&risk.Profile{},
		&guarantee.Guarantee{},
	))

	s.db = db
	s.ref = risk.NewStaticReference()
	s.docs = NewMemoryDocumentStore()
	s.guarantees = guarantee.NewService(db)
	s.events = nil

	engine := risk.NewEngine(risk.DefaultPolicy(), s.ref)
	s.service = NewService(db, engine, s.ref, s.guarantees, s.docs,
		notifierFunc(func(e TransitionEvent) { s.events = append(s.events, e) }), nil)
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func wire(dec *types.Declaration, fn codec.MessageFunction) []byte {
	env, body := codec.BuildDeclaration(dec, fn)
	return codec.EncodeMessage(codec.DefaultDelimiters, env, body)
}

// lowRiskDeclaration scores below every threshold apart from the document
// completeness factor: unlisted chapter, low-risk origin, no reference
// value.
func lowRiskDeclaration(reference string) *types.Declaration {
	return &types.Declaration{
		Reference:   reference,
		Type:        types.TypeImport,
		DeclarantID: "BRK001",
		ConsigneeID: "CNE001",
		Currency:    "EUR",
		TotalValue:  12000,
		Items: []types.GoodsItem{
			{Sequence: 1, HSCode: "640399", Origin: "DE", Quantity: 100, Unit: "PCE",
				NetWeight: 80, GrossWeight: 95, Value: 12000},
		},
	}
}

// mediumRiskDeclaration lands in the documentary channel: medium commodity
// and origin tiers on top of the documents factor.
func mediumRiskDeclaration(reference string) *types.Declaration {
	return &types.Declaration{
		Reference:   reference,
		Type:        types.TypeImport,
		DeclarantID: "BRK002",
		ConsigneeID: "CNE001",
		Currency:    "EUR",
		TotalValue:  30000,
		Items: []types.GoodsItem{
			{Sequence: 1, HSCode: "871200", Origin: "CN", Quantity: 50, Unit: "PCE",
				NetWeight: 500, GrossWeight: 540, Value: 30000},
		},
	}
}

// highRiskDeclaration lands in the inspection channel: critical commodity
// and origin tiers.
func highRiskDeclaration(reference string) *types.Declaration {
	return &types.Declaration{
		Reference:   reference,
		Type:        types.TypeImport,
		DeclarantID: "BRK003",
		ConsigneeID: "CNE001",
		Currency:    "EUR",
		TotalValue:  8000,
		Items: []types.GoodsItem{
			{Sequence: 1, HSCode: "240110", Origin: "KP", Quantity: 200, Unit: "KGM",
				NetWeight: 200, GrossWeight: 210, Value: 8000},
		},
	}
}

func (s *ServiceSuite) statesVisited() []types.ClearanceState {
	out := make([]types.ClearanceState, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.To)
	}
	return out
}

func (s *ServiceSuite) TestGreenChannelAutoReleases() {
	resp, err := s.service.Submit(wire(lowRiskDeclaration("REF_G1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)

	s.Equal(types.ChannelGreen, resp.Channel)
	s.Equal(types.StateAwaitingPayment, resp.State)
	s.Equal([]types.ClearanceState{
		types.StateRiskAssessed,
		types.StateAutoReleased,
		types.StateAwaitingPayment,
	}, s.statesVisited())
}

func (s *ServiceSuite) TestPaymentReleasesDeclaration() {
	resp, err := s.service.Submit(wire(lowRiskDeclaration("REF_P1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Require().Equal(types.StateAwaitingPayment, resp.State)
	s.Require().Greater(resp.PayableAmount, 0.0)

	released, err := s.service.ConfirmPayment(resp.DeclarationID, resp.PayableAmount, "EUR", s.now)
	s.Require().NoError(err)
	s.Equal(types.StateReleased, released.State)
}

func (s *ServiceSuite) TestUnderpaymentRejected() {
	resp, err := s.service.Submit(wire(lowRiskDeclaration("REF_P2"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)

	_, err = s.service.ConfirmPayment(resp.DeclarationID, resp.PayableAmount-1, "EUR", s.now)
	var terr *TransitionError
	s.Require().ErrorAs(err, &terr)
	s.Equal(CodePaymentMismatch, terr.ReasonCode())

	_, err = s.service.ConfirmPayment(resp.DeclarationID, resp.PayableAmount, "USD", s.now)
	s.Require().ErrorAs(err, &terr)
	s.Equal(CodePaymentMismatch, terr.ReasonCode())
}

func (s *ServiceSuite) TestYellowChannelRequiresDocumentCheck() {
	resp, err := s.service.Submit(wire(mediumRiskDeclaration("REF_Y1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Equal(types.ChannelYellow, resp.Channel)
	s.Equal(types.StateAwaitingDocumentCheck, resp.State)

	// Payment cannot jump the documentary check.
	_, err = s.service.ConfirmPayment(resp.DeclarationID, resp.PayableAmount, "EUR", s.now)
	var terr *TransitionError
	s.Require().ErrorAs(err, &terr)
	s.Equal(CodeInvalidTransition, terr.ReasonCode())

	// The check cannot conclude while the document set is incomplete.
	_, err = s.service.CompleteDocumentCheck(resp.DeclarationID, true, s.now)
	s.Require().ErrorAs(err, &terr)
	s.Equal(CodeDocumentsIncomplete, terr.ReasonCode())

	s.docs.SetComplete(resp.DeclarationID, true)
	checked, err := s.service.CompleteDocumentCheck(resp.DeclarationID, true, s.now)
	s.Require().NoError(err)
	s.Equal(types.StateAwaitingPayment, checked.State)
}

func (s *ServiceSuite) TestOrangeChannelInspection() {
	resp, err := s.service.Submit(wire(highRiskDeclaration("REF_O1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Equal(types.ChannelOrange, resp.Channel)
	s.Equal(types.StateAwaitingInspection, resp.State)

	inspected, err := s.service.RecordInspection(resp.DeclarationID, true, s.now)
	s.Require().NoError(err)
	s.Equal(types.StateAwaitingPayment, inspected.State)
}

func (s *ServiceSuite) TestFailedInspectionRejects() {
	resp, err := s.service.Submit(wire(highRiskDeclaration("REF_O2"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)

	rejected, err := s.service.RecordInspection(resp.DeclarationID, false, s.now)
	s.Require().NoError(err)
	s.Equal(types.StateRejected, rejected.State)
}

// A trader with a history of rejections escalates to detailed examination.
func (s *ServiceSuite) TestRepeatOffenderRoutesRed() {
	for _, ref := range []string{"REF_H1", "REF_H2", "REF_H3"} {
		s.Require().NoError(s.db.Create(&types.Declaration{
			DeclarationID: "DEC_" + ref,
			Reference:     ref,
			Type:          types.TypeImport,
			DeclarantID:   "BRK003",
			State:         types.StateRejected,
			Version:       1,
		}).Error)
	}

	resp, err := s.service.Submit(wire(highRiskDeclaration("REF_R1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Equal(types.ChannelRed, resp.Channel)
	s.Equal(types.StateAwaitingExamination, resp.State)
}

func (s *ServiceSuite) TestTrustedTraderOverridesToGreen() {
	s.ref.TrustedTraders["BRK003"] = true

	resp, err := s.service.Submit(wire(highRiskDeclaration("REF_T1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Equal(types.ChannelGreen, resp.Channel)

	profile, err := s.service.LatestProfile(resp.DeclarationID)
	s.Require().NoError(err)
	s.True(profile.TrustedTraderOverride)
	s.Zero(profile.TotalScore)
}

func (s *ServiceSuite) TestResubmissionIsIdempotent() {
	first, err := s.service.Submit(wire(lowRiskDeclaration("REF_I1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)

	second, err := s.service.Submit(wire(lowRiskDeclaration("REF_I1"), codec.FunctionOriginal), s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(first.DeclarationID, second.DeclarationID)
	s.Equal(first.Version, second.Version)

	var count int64
	s.Require().NoError(s.db.Model(&types.Declaration{}).
		Where("reference = ?", "REF_I1").Count(&count).Error)
	s.Equal(int64(1), count)
}

// Concurrent originals for one reference resolve to a single fully
// routed declaration; the losers get the winner's record back instead of
// a constraint error or a half-assessed row.
func (s *ServiceSuite) TestConcurrentDuplicateSubmissions() {
	const workers = 8
	raw := wire(lowRiskDeclaration("REF_C1"), codec.FunctionOriginal)

	var wg sync.WaitGroup
	errs := make([]error, workers)
	ids := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := s.service.Submit(raw, s.now)
			errs[i] = err
			if err == nil {
				ids[i] = resp.DeclarationID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}

	var count int64
	s.Require().NoError(s.db.Model(&types.Declaration{}).
		Where("reference = ?", "REF_C1").Count(&count).Error)
	s.Equal(int64(1), count)

	dec, err := s.service.GetDeclaration(ids[0])
	s.Require().NoError(err)
	s.Equal(types.StateAwaitingPayment, dec.State)
	s.Equal(1, dec.Version)
}

func (s *ServiceSuite) TestAmendmentBumpsVersionAndReassesses() {
	resp, err := s.service.Submit(wire(mediumRiskDeclaration("REF_A1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Require().Equal(types.StateAwaitingDocumentCheck, resp.State)
	s.Require().Equal(1, resp.Version)

	amended := lowRiskDeclaration("REF_A1")
	got, err := s.service.Submit(wire(amended, codec.FunctionAmendment), s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(2, got.Version)
	s.Equal(types.ChannelGreen, got.Channel)
	s.Equal(types.StateAwaitingPayment, got.State)

	// A fresh profile was computed for the new version.
	profile, err := s.service.LatestProfile(got.DeclarationID)
	s.Require().NoError(err)
	s.Equal(2, profile.Version)
}

func (s *ServiceSuite) TestAmendmentBlockedAfterRouting() {
	resp, err := s.service.Submit(wire(highRiskDeclaration("REF_A2"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Require().Equal(types.StateAwaitingInspection, resp.State)

	_, err = s.service.Submit(wire(highRiskDeclaration("REF_A2"), codec.FunctionAmendment), s.now)
	var terr *TransitionError
	s.Require().ErrorAs(err, &terr)
	s.Equal(CodeAmendmentNotAllowed, terr.ReasonCode())
}

func (s *ServiceSuite) TestWithdrawal() {
	resp, err := s.service.Submit(wire(mediumRiskDeclaration("REF_W1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)

	got, err := s.service.Submit(wire(mediumRiskDeclaration("REF_W1"), codec.FunctionDeletion), s.now)
	s.Require().NoError(err)
	s.Equal(types.StateRejected, got.State)
	s.Equal(resp.DeclarationID, got.DeclarationID)
}

func (s *ServiceSuite) TestAppealLifecycle() {
	resp, err := s.service.Submit(wire(lowRiskDeclaration("REF_AP1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Require().Equal(types.StateAwaitingPayment, resp.State)

	g, err := s.guarantees.Open(guarantee.InstrumentBank, 5000,
		s.now.Add(-time.Hour), s.now.Add(30*24*time.Hour))
	s.Require().NoError(err)

	suspended, err := s.service.FileAppeal(resp.DeclarationID, g.GuaranteeID, 2000, s.now)
	s.Require().NoError(err)
	s.Equal(types.StateSuspended, suspended.State)

	held, err := s.guarantees.Get(g.GuaranteeID)
	s.Require().NoError(err)
	s.Equal(2000.0, held.ReservedAmount)

	upheld, err := s.service.ResolveAppeal(resp.DeclarationID, true, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(types.StateAwaitingPayment, upheld.State)

	freed, err := s.guarantees.Get(g.GuaranteeID)
	s.Require().NoError(err)
	s.Zero(freed.ReservedAmount)
}

func (s *ServiceSuite) TestDeniedAppealForfeits() {
	resp, err := s.service.Submit(wire(lowRiskDeclaration("REF_AP2"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)

	g, err := s.guarantees.Open(guarantee.InstrumentBank, 5000,
		s.now.Add(-time.Hour), s.now.Add(30*24*time.Hour))
	s.Require().NoError(err)

	_, err = s.service.FileAppeal(resp.DeclarationID, g.GuaranteeID, 2000, s.now)
	s.Require().NoError(err)

	denied, err := s.service.ResolveAppeal(resp.DeclarationID, false, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(types.StateRejected, denied.State)

	forfeited, err := s.guarantees.Get(g.GuaranteeID)
	s.Require().NoError(err)
	s.Equal(guarantee.StatusForfeited, forfeited.Status)
}

// An appeal against an exhausted guarantee leaves the declaration state
// untouched.
func (s *ServiceSuite) TestAppealRequiresLedgerCapacity() {
	resp, err := s.service.Submit(wire(lowRiskDeclaration("REF_AP3"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)

	g, err := s.guarantees.Open(guarantee.InstrumentCash, 1000,
		s.now.Add(-time.Hour), s.now.Add(30*24*time.Hour))
	s.Require().NoError(err)

	_, err = s.service.FileAppeal(resp.DeclarationID, g.GuaranteeID, 2000, s.now)
	s.Require().ErrorIs(err, guarantee.ErrInsufficientCapacity)

	dec, err := s.service.GetDeclaration(resp.DeclarationID)
	s.Require().NoError(err)
	s.Equal(types.StateAwaitingPayment, dec.State)
}

func (s *ServiceSuite) TestDutyAssessment() {
	// 25% duty on chapter 22 plus 15% VAT on the duty-inclusive value.
	dec := &types.Declaration{
		Reference:   "REF_D1",
		Type:        types.TypeImport,
		DeclarantID: "BRK001",
		ConsigneeID: "CNE001",
		Currency:    "EUR",
		TotalValue:  1000,
		Items: []types.GoodsItem{
			{Sequence: 1, HSCode: "220300", Origin: "DE", Quantity: 500, Unit: "LTR",
				NetWeight: 500, GrossWeight: 520, Value: 1000},
		},
	}

	resp, err := s.service.Submit(wire(dec, codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.InDelta(1000*0.25+1250*0.15, resp.PayableAmount, 1e-9)
}

func (s *ServiceSuite) TestExportOwesNothing() {
	dec := lowRiskDeclaration("REF_E1")
	dec.Type = types.TypeExport

	resp, err := s.service.Submit(wire(dec, codec.FunctionOriginal), s.now)
	s.Require().NoError(err)
	s.Zero(resp.PayableAmount)
}

func (s *ServiceSuite) TestWireStatusRoundTrip() {
	resp, err := s.service.Submit(wire(lowRiskDeclaration("REF_WS1"), codec.FunctionOriginal), s.now)
	s.Require().NoError(err)

	raw, err := s.service.WireStatus(resp.DeclarationID)
	s.Require().NoError(err)

	msg, err := codec.DecodeMessage(codec.DefaultDelimiters, raw)
	s.Require().NoError(err)
	s.Equal("CUSRES", msg.Envelope.MessageType)

	origRef, status, amount, currency, err := codec.ParseResponse(msg)
	s.Require().NoError(err)
	s.Equal("REF_WS1", origRef)
	s.Equal(codec.StatusAccepted, status)
	s.InDelta(resp.PayableAmount, amount, 1e-9)
	s.Equal("EUR", currency)
}

func (s *ServiceSuite) TestMalformedWireRejected() {
	_, err := s.service.Submit([]byte("UNH+R1+CUSDEC:D96B+9'BGM+IM'"), s.now)
	s.Require().Error(err)

	var count int64
	s.Require().NoError(s.db.Model(&types.Declaration{}).Count(&count).Error)
	s.Zero(count)
}
