package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/models"
)

// SkuMap is the mutable in-memory table from source SKU to destination SKU.
// It is owned by whoever constructs it and passed by reference, so multiple
// connector instances can run independently in one process.
type SkuMap struct {
	mu       sync.RWMutex
	mappings map[string]string
}

// NewSkuMap creates an empty SKU mapping table.
func NewSkuMap() *SkuMap {
	return &SkuMap{mappings: make(map[string]string)}
}

// Load replaces the table contents with persisted mappings.
func (m *SkuMap) Load(mappings []models.SkuMapping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings = make(map[string]string, len(mappings))
	for _, mapping := range mappings {
		m.mappings[mapping.SourceSKU] = mapping.DestinationSKU
	}
}

// Add inserts or replaces one mapping.
func (m *SkuMap) Add(sourceSKU, destinationSKU string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[sourceSKU] = destinationSKU
}

// Remove drops the mapping for a source SKU if one exists.
func (m *SkuMap) Remove(sourceSKU string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mappings, sourceSKU)
}

// Resolve returns the destination SKU for a source SKU. The second return
// reports whether a mapping existed; callers fall back to the source SKU.
func (m *SkuMap) Resolve(sourceSKU string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dest, ok := m.mappings[sourceSKU]
	return dest, ok
}

// Len returns the number of mappings.
func (m *SkuMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.mappings)
}

// Transformer maps a validated order into the fulfillment provider's request
// shape.
type Transformer struct {
	skuMap *SkuMap
	logger *logrus.Entry
}

// NewTransformer creates a transformer using the given SKU mapping table.
func NewTransformer(skuMap *SkuMap, logger *logrus.Entry) *Transformer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Transformer{skuMap: skuMap, logger: logger.WithField("component", "transformer")}
}

// Transform produces a FulfillmentRequest from a normalized order. Unmapped
// SKUs fall back to the source SKU with a warning. Absent financial data is
// omitted from the request, never defaulted to zero.
func (t *Transformer) Transform(order *models.NormalizedOrder) (*models.FulfillmentRequest, []string, error) {
	if order == nil {
		return nil, nil, apperrors.New(apperrors.CodeValidationFailed, "cannot transform nil order")
	}
	if len(order.Items) == 0 {
		return nil, nil, apperrors.New(apperrors.CodeValidationFailed, "order %s has no items to transform", order.ID)
	}

	var warnings []string

	items := make([]models.FulfillmentItem, 0, len(order.Items))
	for _, src := range order.Items {
		destSKU, mapped := t.skuMap.Resolve(src.SKU)
		if !mapped {
			destSKU = src.SKU
			warnings = append(warnings, fmt.Sprintf("no SKU mapping for %q, using source SKU", src.SKU))
		}

		item := models.FulfillmentItem{
			SKU:      destSKU,
			Quantity: src.Quantity,
		}
		if src.UnitPrice > 0 {
			value := src.UnitPrice
			item.DeclaredValue = &value
		}
		items = append(items, item)
	}

	req := &models.FulfillmentRequest{
		ExternalOrderID: order.ID,
		Address:         order.Address,
		Speed:           ClassifyShippingSpeed(order.ShippingOption),
		Items:           items,
		Comment:         buildComment(order.BuyerNote, order.SellerNote),
	}
	return req, warnings, nil
}

// ClassifyShippingSpeed maps the marketplace's stated delivery option to the
// provider's speed classes, defaulting to standard when unrecognized.
func ClassifyShippingSpeed(option string) models.ShippingSpeed {
	opt := strings.ToLower(option)
	switch {
	case strings.Contains(opt, "overnight"),
		strings.Contains(opt, "next day"),
		strings.Contains(opt, "priority"):
		return models.ShippingSpeedPriority
	case strings.Contains(opt, "express"),
		strings.Contains(opt, "expedited"),
		strings.Contains(opt, "fast"):
		return models.ShippingSpeedExpedited
	default:
		return models.ShippingSpeedStandard
	}
}

// buildComment concatenates buyer and seller notes into one bounded comment.
func buildComment(buyerNote, sellerNote string) string {
	var parts []string
	if buyerNote != "" {
		parts = append(parts, "Buyer: "+buyerNote)
	}
	if sellerNote != "" {
		parts = append(parts, "Seller: "+sellerNote)
	}
	comment := strings.Join(parts, " | ")
	if len(comment) > maxCommentLen {
		comment = comment[:maxCommentLen]
	}
	return comment
}
