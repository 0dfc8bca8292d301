package guarantee

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradegate/customs-api/internal/types"
	"github.com/tradegate/customs-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the guarantee ledger endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

func toResponse(g *Guarantee) *types.GuaranteeResponse {
	return &types.GuaranteeResponse{
		GuaranteeID:     g.GuaranteeID,
		Instrument:      string(g.Instrument),
		FaceAmount:      g.FaceAmount,
		ReservedAmount:  g.ReservedAmount,
		AvailableAmount: g.Available(),
		Status:          g.Status,
		ValidUntil:      g.ValidUntil,
		Timestamp:       time.Now(),
	}
}

// OpenGuaranteeHandler handles POST requests to register a new instrument.
func (h *GinHandlers) OpenGuaranteeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Instrument string    `json:"instrument" binding:"required"`
			FaceAmount float64   `json:"face_amount" binding:"required"`
			ValidFrom  time.Time `json:"valid_from" binding:"required"`
			ValidUntil time.Time `json:"valid_until" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		g, err := h.service.Open(InstrumentType(request.Instrument), request.FaceAmount, request.ValidFrom, request.ValidUntil)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toResponse(g))
	}
}

// GetGuaranteeHandler handles GET requests for a single guarantee.
func (h *GinHandlers) GetGuaranteeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		g, err := h.service.Get(c.Param("guarantee_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, toResponse(g), nil)
	}
}

type amountRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// ReserveHandler handles POST requests to reserve capacity.
func (h *GinHandlers) ReserveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request amountRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		id := c.Param("guarantee_id")
		if err := h.service.Reserve(id, request.Amount, time.Now()); err != nil {
			response.Handle(c, nil, err)
			return
		}

		g, err := h.service.Get(id)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toResponse(g))
	}
}

// ReleaseHandler handles POST requests to release reserved capacity.
func (h *GinHandlers) ReleaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request amountRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		id := c.Param("guarantee_id")
		if err := h.service.Release(id, request.Amount, time.Now()); err != nil {
			response.Handle(c, nil, err)
			return
		}

		g, err := h.service.Get(id)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toResponse(g))
	}
}

// CloseHandler handles POST requests to retire a guarantee.
func (h *GinHandlers) CloseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("guarantee_id")
		if err := h.service.Close(id, time.Now()); err != nil {
			response.Handle(c, nil, err)
			return
		}

		g, err := h.service.Get(id)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, toResponse(g))
	}
}
