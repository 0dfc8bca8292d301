package clearance

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradegate/customs-api/internal/codec"
	"github.com/tradegate/customs-api/internal/guarantee"
	"github.com/tradegate/customs-api/internal/risk"
	"github.com/tradegate/customs-api/internal/types"
)

func newPaymentRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.Declaration{},
		&types.GoodsItem{},
		&risk.Profile{},
		&guarantee.Guarantee{},
	))

	ref := risk.NewStaticReference()
	docs := NewMemoryDocumentStore()
	service := NewService(db, risk.NewEngine(risk.DefaultPolicy(), ref), ref,
		guarantee.NewService(db), docs, nil, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/payments/:declaration_id", NewGinHandlers(service, docs).PaymentHandler())
	return router, service
}

func postPayment(router *gin.Engine, declarationID, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/"+declarationID,
		strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

// Exports owe no duties; a zero-for-zero confirmation must release them
// over the API rather than failing request binding.
func TestPaymentHandlerAcceptsZeroAmount(t *testing.T) {
	router, service := newPaymentRouter(t)

	dec := lowRiskDeclaration("REF_HP1")
	dec.Type = types.TypeExport
	resp, err := service.Submit(wire(dec, codec.FunctionOriginal), time.Now())
	require.NoError(t, err)
	require.Equal(t, types.StateAwaitingPayment, resp.State)
	require.Zero(t, resp.PayableAmount)

	rec := postPayment(router, resp.DeclarationID, `{"amount": 0, "currency": "EUR"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	released, err := service.GetDeclaration(resp.DeclarationID)
	require.NoError(t, err)
	assert.Equal(t, types.StateReleased, released.State)
}

func TestPaymentHandlerRejectsNegativeAmount(t *testing.T) {
	router, service := newPaymentRouter(t)

	resp, err := service.Submit(wire(lowRiskDeclaration("REF_HP2"), codec.FunctionOriginal), time.Now())
	require.NoError(t, err)
	require.Equal(t, types.StateAwaitingPayment, resp.State)

	rec := postPayment(router, resp.DeclarationID, `{"amount": -1, "currency": "EUR"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	unchanged, err := service.GetDeclaration(resp.DeclarationID)
	require.NoError(t, err)
	assert.Equal(t, types.StateAwaitingPayment, unchanged.State)
}
