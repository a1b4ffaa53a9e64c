package handler

import (
	"net/http"
	"strings"
	"time"

	"drayage-tms/internal/domain/shipment"
	"drayage-tms/internal/domain/trip"
	"drayage-tms/internal/usecase/automation"
	"drayage-tms/internal/usecase/query"
	appErrors "drayage-tms/pkg/errors"
	"drayage-tms/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StatusRequest struct {
	Status  string     `json:"status" binding:"required"`
	EventID *uuid.UUID `json:"event_id"`
}

type GateRequest struct {
	At      time.Time  `json:"at" binding:"required"`
	EventID *uuid.UUID `json:"event_id"`
}

type ReevaluateRequest struct {
	AsOf *time.Time `json:"as_of"`
}

// AutomationHandler accepts committed mutations from collaborating services
// and applies them through the engine.
type AutomationHandler struct {
	engine *automation.Engine
}

func NewAutomationHandler(engine *automation.Engine) *AutomationHandler {
	return &AutomationHandler{engine: engine}
}

func (h *AutomationHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/orders")
	{
		orders.POST("/:id/status", h.ChangeOrderStatus)
		orders.DELETE("/:id", h.DeleteOrder)
	}

	trips := router.Group("/trips")
	{
		trips.POST("/:id/status", h.ChangeTripStatus)
	}

	containers := router.Group("/containers")
	{
		containers.POST("/:id/gate-out", h.GateOut)
		containers.POST("/:id/gate-in", h.GateIn)
	}

	router.POST("/demurrage/reevaluate", h.ReevaluateDemurrage)
	router.GET("/engine/metrics", h.GetMetrics)
}

func eventIDOf(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.ErrorResponseWithCode(c, http.StatusBadRequest, appErrors.CodeValidation, "Invalid request body")
		return false
	}
	return true
}

func respondOutcome(c *gin.Context, out *automation.Outcome, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, query.NewOutcomeResponse(out))
}

func (h *AutomationHandler) ChangeOrderStatus(c *gin.Context) {
	orderID, ok := parseID(c, "order")
	if !ok {
		return
	}

	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.engine.ChangeOrderStatus(c.Request.Context(), automation.OrderStatusCommand{
		OrderID: orderID,
		Status:  shipment.OrderStatus(strings.ToUpper(req.Status)),
		EventID: eventIDOf(req.EventID),
	})
	respondOutcome(c, out, err)
}

func (h *AutomationHandler) DeleteOrder(c *gin.Context) {
	orderID, ok := parseID(c, "order")
	if !ok {
		return
	}

	var eventID uuid.UUID
	if raw := c.Query("event_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.ErrorResponseWithCode(c, http.StatusBadRequest, appErrors.CodeValidation, "Invalid event_id")
			return
		}
		eventID = id
	}

	out, err := h.engine.DeleteOrder(c.Request.Context(), automation.OrderDeleteCommand{
		OrderID: orderID,
		EventID: eventID,
	})
	respondOutcome(c, out, err)
}

func (h *AutomationHandler) ChangeTripStatus(c *gin.Context) {
	tripID, ok := parseID(c, "trip")
	if !ok {
		return
	}

	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.engine.ChangeTripStatus(c.Request.Context(), automation.TripStatusCommand{
		TripID:  tripID,
		Status:  trip.TripStatus(strings.ToUpper(req.Status)),
		EventID: eventIDOf(req.EventID),
	})
	respondOutcome(c, out, err)
}

func (h *AutomationHandler) gate(c *gin.Context, apply func(*gin.Context, automation.GateCommand) (*automation.Outcome, error)) {
	containerID, ok := parseID(c, "container")
	if !ok {
		return
	}

	var req GateRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := apply(c, automation.GateCommand{
		ContainerID: containerID,
		At:          req.At,
		EventID:     eventIDOf(req.EventID),
	})
	respondOutcome(c, out, err)
}

func (h *AutomationHandler) GateOut(c *gin.Context) {
	h.gate(c, func(c *gin.Context, cmd automation.GateCommand) (*automation.Outcome, error) {
		return h.engine.RecordGateOut(c.Request.Context(), cmd)
	})
}

func (h *AutomationHandler) GateIn(c *gin.Context) {
	h.gate(c, func(c *gin.Context, cmd automation.GateCommand) (*automation.Outcome, error) {
		return h.engine.RecordGateIn(c.Request.Context(), cmd)
	})
}

func (h *AutomationHandler) ReevaluateDemurrage(c *gin.Context) {
	var req ReevaluateRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	report, err := h.engine.ReevaluateDemurrage(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, report)
}

func (h *AutomationHandler) GetMetrics(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, h.engine.Metrics().Snapshot())
}
