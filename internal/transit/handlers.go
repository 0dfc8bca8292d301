package transit

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradegate/customs-api/internal/types"
	"github.com/tradegate/customs-api/pkg/response"
)

// GinHandlers contains HTTP handlers for transit movement endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// OpenHandler seals a released transit declaration into a movement.
func (h *GinHandlers) OpenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			DeclarationID string     `json:"declaration_id" binding:"required"`
			GuaranteeID   string     `json:"guarantee_id" binding:"required"`
			Route         []Waypoint `json:"route" binding:"required"`
			Seals         []string   `json:"seals" binding:"required"`
			ToleranceKm   float64    `json:"tolerance_km"`
			ReserveAmount float64    `json:"reserve_amount" binding:"required"`
			TimeLimit     time.Time  `json:"time_limit" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		doc, err := h.service.OpenMovement(
			request.DeclarationID,
			request.GuaranteeID,
			request.Route,
			request.Seals,
			request.ToleranceKm,
			request.ReserveAmount,
			request.TimeLimit,
			time.Now(),
		)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, toResponse(doc), nil)
	}
}

// PositionHandler appends a position report to a movement.
func (h *GinHandlers) PositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// No required binding on the coordinates: 0.0 is a valid latitude
		// and longitude.
		var request struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		report, err := h.service.RecordPosition(c.Param("movement_id"), request.Lat, request.Lon, time.Now())
		response.Handle(c, report, err)
	}
}

// ExitHandler runs exit processing against the presented seal set.
func (h *GinHandlers) ExitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Seals []string `json:"seals"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		doc, decision, findings, err := h.service.ProcessExit(c.Param("movement_id"), request.Seals, time.Now())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Handle(c, gin.H{
			"movement": toResponse(doc),
			"decision": decision.String(),
			"findings": findings,
		}, nil)
	}
}

// GetHandler retrieves a movement with its position history.
func (h *GinHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := h.service.GetMovement(c.Param("movement_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, toResponse(doc), nil)
	}
}

// ResolveHandler concludes a suspended movement after investigation.
func (h *GinHandlers) ResolveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Forfeit bool `json:"forfeit"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		doc, err := h.service.ResolveSuspension(c.Param("movement_id"), request.Forfeit, time.Now())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, toResponse(doc), nil)
	}
}

func toResponse(doc *TransitDocument) *types.MovementResponse {
	return &types.MovementResponse{
		MovementID:    doc.MovementID,
		DeclarationID: doc.DeclarationID,
		GuaranteeID:   doc.GuaranteeID,
		Status:        doc.Status,
		TimeLimit:     doc.TimeLimit,
		Timestamp:     time.Now(),
	}
}
