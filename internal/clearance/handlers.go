package clearance

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradegate/customs-api/pkg/response"
)

// GinHandlers contains HTTP handlers for declaration lifecycle endpoints.
// The memory document store stands in for the document management system
// on the internal document endpoint.
type GinHandlers struct {
	service *Service
	docs    *MemoryDocumentStore
}

func NewGinHandlers(service *Service, docs *MemoryDocumentStore) *GinHandlers {
	return &GinHandlers{service: service, docs: docs}
}

// SubmitHandler handles POST requests carrying a raw CUSDEC byte stream.
func (h *GinHandlers) SubmitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil || len(raw) == 0 {
			response.BadRequest(c, "request body must carry a CUSDEC message")
			return
		}

		resp, err := h.service.Submit(raw, time.Now())
		response.Handle(c, resp, err)
	}
}

// StatusHandler handles GET requests for declaration status. With
// ?format=wire the response body is the CUSRES byte stream instead of
// JSON.
func (h *GinHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		declarationID := c.Param("declaration_id")

		if c.Query("format") == "wire" {
			wire, err := h.service.WireStatus(declarationID)
			if err != nil {
				response.Handle(c, nil, err)
				return
			}
			c.Data(200, "application/edifact", wire)
			return
		}

		dec, err := h.service.GetDeclaration(declarationID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, h.service.toResponse(dec, time.Now()), nil)
	}
}

// ProfileHandler handles GET requests for the explainable risk breakdown.
func (h *GinHandlers) ProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := h.service.LatestProfile(c.Param("declaration_id"))
		response.Handle(c, profile, err)
	}
}

// DocumentCheckHandler records the document management system's
// completeness verdict and, when compliant, concludes the documentary
// check.
func (h *GinHandlers) DocumentCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Complete  bool `json:"complete"`
			Compliant bool `json:"compliant"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		declarationID := c.Param("declaration_id")
		h.docs.SetComplete(declarationID, request.Complete)

		resp, err := h.service.CompleteDocumentCheck(declarationID, request.Compliant, time.Now())
		response.Handle(c, resp, err)
	}
}

// InspectionHandler records a physical inspection or detailed examination
// outcome.
func (h *GinHandlers) InspectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Outcome string `json:"outcome" binding:"required"` // compliant | non-compliant
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		resp, err := h.service.RecordInspection(c.Param("declaration_id"), request.Outcome == "compliant", time.Now())
		response.Handle(c, resp, err)
	}
}

// PaymentHandler records the payment gateway's confirmation event.
func (h *GinHandlers) PaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Zero is a legitimate amount: exports and transit movements owe
		// no duties, so only negative confirmations are malformed.
		var request struct {
			Amount   float64 `json:"amount" binding:"gte=0"`
			Currency string  `json:"currency" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		resp, err := h.service.ConfirmPayment(c.Param("declaration_id"), request.Amount, request.Currency, time.Now())
		response.Handle(c, resp, err)
	}
}

// AppealHandler files an appeal backed by a guarantee reservation.
func (h *GinHandlers) AppealHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			GuaranteeID string  `json:"guarantee_id" binding:"required"`
			Amount      float64 `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		resp, err := h.service.FileAppeal(c.Param("declaration_id"), request.GuaranteeID, request.Amount, time.Now())
		response.Handle(c, resp, err)
	}
}

// ResolveAppealHandler concludes a suspension.
func (h *GinHandlers) ResolveAppealHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Upheld bool `json:"upheld"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		resp, err := h.service.ResolveAppeal(c.Param("declaration_id"), request.Upheld, time.Now())
		response.Handle(c, resp, err)
	}
}

// RejectHandler forces a declaration to Rejected.
func (h *GinHandlers) RejectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		resp, err := h.service.Reject(c.Param("declaration_id"), request.Reason, time.Now())
		response.Handle(c, resp, err)
	}
}
