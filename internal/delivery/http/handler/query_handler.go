package handler

import (
	"net/http"

	"drayage-tms/internal/usecase/query"
	"drayage-tms/pkg/utils"

	"github.com/gin-gonic/gin"
)

type QueryHandler struct {
	service *query.Service
}

func NewQueryHandler(service *query.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

func (h *QueryHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/shipments/:id", h.GetShipment)

	containers := router.Group("/containers")
	{
		containers.GET("/:id", h.GetContainer)
		containers.GET("/:id/demurrage", h.GetDemurrage)
	}

	orders := router.Group("/orders")
	{
		orders.GET("/:id/charges", h.ListCharges)
		orders.GET("/:id/invoice", h.GetInvoice)
	}

	router.GET("/drivers/:id/settlements/current", h.CurrentSettlement)
}

// respond writes data or the mapped error.
func respond[T any](c *gin.Context, data T, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, data)
}

func (h *QueryHandler) GetShipment(c *gin.Context) {
	id, ok := parseID(c, "shipment")
	if !ok {
		return
	}
	resp, err := h.service.GetShipment(c.Request.Context(), id)
	respond(c, resp, err)
}

func (h *QueryHandler) GetContainer(c *gin.Context) {
	id, ok := parseID(c, "container")
	if !ok {
		return
	}
	resp, err := h.service.GetContainer(c.Request.Context(), id)
	respond(c, resp, err)
}

func (h *QueryHandler) GetDemurrage(c *gin.Context) {
	id, ok := parseID(c, "container")
	if !ok {
		return
	}
	resp, err := h.service.GetDemurrage(c.Request.Context(), id)
	respond(c, resp, err)
}

func (h *QueryHandler) ListCharges(c *gin.Context) {
	id, ok := parseID(c, "order")
	if !ok {
		return
	}
	resp, err := h.service.ListCharges(c.Request.Context(), id)
	respond(c, resp, err)
}

func (h *QueryHandler) GetInvoice(c *gin.Context) {
	id, ok := parseID(c, "order")
	if !ok {
		return
	}
	resp, err := h.service.GetInvoice(c.Request.Context(), id)
	respond(c, resp, err)
}

func (h *QueryHandler) CurrentSettlement(c *gin.Context) {
	id, ok := parseID(c, "driver")
	if !ok {
		return
	}
	resp, err := h.service.CurrentSettlement(c.Request.Context(), id)
	respond(c, resp, err)
}
