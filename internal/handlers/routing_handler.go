package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillment-connector-service/internal/services"
)

// RoutingHandler handles order routing endpoints
type RoutingHandler struct {
	router *services.OrderRouter
}

// NewRoutingHandler creates a new routing handler
func NewRoutingHandler(router *services.OrderRouter) *RoutingHandler {
	return &RoutingHandler{router: router}
}

// RouteOrder routes a single marketplace order to the fulfillment provider
func (h *RoutingHandler) RouteOrder(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
		return
	}

	result := h.router.RouteOrder(c.Request.Context(), orderID)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"data": result})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// RouteBatchRequest represents the request to route a batch of orders
type RouteBatchRequest struct {
	OrderIDs []string `json:"orderIds" binding:"required,min=1"`
}

// RouteBatch routes a set of orders with bounded concurrency
func (h *RoutingHandler) RouteBatch(c *gin.Context) {
	var req RouteBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report := h.router.RouteOrders(c.Request.Context(), req.OrderIDs)
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// RoutePending discovers all ready-to-ship orders and routes them
func (h *RoutingHandler) RoutePending(c *gin.Context) {
	report, err := h.router.RouteAllPending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
