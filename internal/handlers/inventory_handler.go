package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fulfillment-connector-service/internal/models"
	"fulfillment-connector-service/internal/repository"
	"fulfillment-connector-service/internal/services"
)

// InventoryHandler handles inventory and SKU mapping endpoints
type InventoryHandler struct {
	gate        *services.InventoryGate
	skuMap      *services.SkuMap
	mappingRepo repository.MappingRepositoryInterface
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(gate *services.InventoryGate, skuMap *services.SkuMap, mappingRepo repository.MappingRepositoryInterface) *InventoryHandler {
	return &InventoryHandler{
		gate:        gate,
		skuMap:      skuMap,
		mappingRepo: mappingRepo,
	}
}

// GetInventory checks available stock for one destination SKU
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sku is required"})
		return
	}

	quantity := 1
	if q := c.Query("quantity"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be a positive integer"})
			return
		}
		quantity = v
	}

	result, err := h.gate.Check(c.Request.Context(), sku, quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ListLowStock reports SKUs at or below the low-stock threshold
func (h *InventoryHandler) ListLowStock(c *gin.Context) {
	var skus []string
	if raw := c.Query("skus"); raw != "" {
		for _, sku := range strings.Split(raw, ",") {
			if sku = strings.TrimSpace(sku); sku != "" {
				skus = append(skus, sku)
			}
		}
	}

	results, err := h.gate.ListLowStock(c.Request.Context(), skus)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  results,
		"total": len(results),
	})
}

// ListMappings returns all SKU mappings
func (h *InventoryHandler) ListMappings(c *gin.Context) {
	mappings, err := h.mappingRepo.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  mappings,
		"total": len(mappings),
	})
}

// CreateMappingRequest represents the request to map a source SKU
type CreateMappingRequest struct {
	SourceSKU      string `json:"sourceSku" binding:"required"`
	DestinationSKU string `json:"destinationSku" binding:"required"`
}

// CreateMapping creates or replaces a SKU mapping
func (h *InventoryHandler) CreateMapping(c *gin.Context) {
	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mapping := &models.SkuMapping{
		SourceSKU:      req.SourceSKU,
		DestinationSKU: req.DestinationSKU,
	}
	if err := h.mappingRepo.Upsert(c.Request.Context(), mapping); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Keep the in-memory table the router resolves against in step with the
	// persisted mapping.
	h.skuMap.Add(req.SourceSKU, req.DestinationSKU)

	c.JSON(http.StatusCreated, gin.H{"data": mapping})
}

// DeleteMapping removes a SKU mapping
func (h *InventoryHandler) DeleteMapping(c *gin.Context) {
	sourceSKU := c.Param("sourceSku")
	if sourceSKU == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sourceSku is required"})
		return
	}

	if err := h.mappingRepo.Delete(c.Request.Context(), sourceSKU); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.skuMap.Remove(sourceSKU)

	c.JSON(http.StatusOK, gin.H{"message": "mapping deleted"})
}
