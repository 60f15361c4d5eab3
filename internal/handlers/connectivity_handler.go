package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillment-connector-service/internal/clients"
)

// ConnectivityHandler reports reachability of both remote APIs
type ConnectivityHandler struct {
	marketplace clients.MarketplaceAPI
	fulfillment clients.FulfillmentAPI
}

// NewConnectivityHandler creates a new connectivity handler
func NewConnectivityHandler(marketplace clients.MarketplaceAPI, fulfillment clients.FulfillmentAPI) *ConnectivityHandler {
	return &ConnectivityHandler{
		marketplace: marketplace,
		fulfillment: fulfillment,
	}
}

type connectivityStatus struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Test probes both APIs with authenticated no-op requests. Either side
// failing yields 502 so monitors can alert on the connectivity route alone.
func (h *ConnectivityHandler) Test(c *gin.Context) {
	ctx := c.Request.Context()

	marketplace := connectivityStatus{Reachable: true}
	if err := h.marketplace.TestConnection(ctx); err != nil {
		marketplace = connectivityStatus{Reachable: false, Error: err.Error()}
	}

	fulfillment := connectivityStatus{Reachable: true}
	if err := h.fulfillment.TestConnection(ctx); err != nil {
		fulfillment = connectivityStatus{Reachable: false, Error: err.Error()}
	}

	status := http.StatusOK
	if !marketplace.Reachable || !fulfillment.Reachable {
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"marketplace": marketplace,
		"fulfillment": fulfillment,
	})
}
