package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-connector-service/internal/models"
)

func testNormalizedOrder() *models.NormalizedOrder {
	return &models.NormalizedOrder{
		ID:     "ORD-1001",
		Status: models.OrderStatusAwaitingShipment,
		Address: models.NormalizedAddress{
			Name:         "Jane Smith",
			AddressLine1: "123 Main St",
			City:         "Sacramento",
			State:        "CA",
			PostalCode:   "94203",
			CountryCode:  "US",
		},
		Items: []models.SourceLineItem{
			{ID: "li-1", SKU: "WIDGET-1", Quantity: 2, UnitPrice: 19.99},
		},
		ShippingOption: "Standard Shipping",
	}
}

// ===========================================
// Transform Tests
// ===========================================

func TestTransform_MappedSKU(t *testing.T) {
	skuMap := NewSkuMap()
	skuMap.Add("WIDGET-1", "WH-WIDGET-001")
	transformer := NewTransformer(skuMap, nil)

	req, warnings, err := transformer.Transform(testNormalizedOrder())

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "ORD-1001", req.ExternalOrderID)
	require.Len(t, req.Items, 1)
	assert.Equal(t, "WH-WIDGET-001", req.Items[0].SKU)
	assert.Equal(t, 2, req.Items[0].Quantity)
	require.NotNil(t, req.Items[0].DeclaredValue)
	assert.Equal(t, 19.99, *req.Items[0].DeclaredValue)
}

func TestTransform_UnmappedSKUFallsBack(t *testing.T) {
	transformer := NewTransformer(NewSkuMap(), nil)

	req, warnings, err := transformer.Transform(testNormalizedOrder())

	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "WIDGET-1")
	assert.Equal(t, "WIDGET-1", req.Items[0].SKU)
}

func TestTransform_OmitsAbsentDeclaredValue(t *testing.T) {
	transformer := NewTransformer(NewSkuMap(), nil)

	order := testNormalizedOrder()
	order.Items[0].UnitPrice = 0

	req, _, err := transformer.Transform(order)

	require.NoError(t, err)
	assert.Nil(t, req.Items[0].DeclaredValue)
}

func TestTransform_EmptyItemsFails(t *testing.T) {
	transformer := NewTransformer(NewSkuMap(), nil)

	order := testNormalizedOrder()
	order.Items = nil

	_, _, err := transformer.Transform(order)
	assert.Error(t, err)
}

func TestTransform_CommentBounded(t *testing.T) {
	transformer := NewTransformer(NewSkuMap(), nil)

	order := testNormalizedOrder()
	order.BuyerNote = strings.Repeat("x", 400)
	order.SellerNote = strings.Repeat("y", 400)

	req, _, err := transformer.Transform(order)

	require.NoError(t, err)
	assert.Len(t, req.Comment, 500)
	assert.True(t, strings.HasPrefix(req.Comment, "Buyer: "))
	assert.Contains(t, req.Comment, " | Seller: ")
}

// ===========================================
// Shipping Speed Tests
// ===========================================

func TestClassifyShippingSpeed(t *testing.T) {
	cases := []struct {
		option string
		want   models.ShippingSpeed
	}{
		{"Overnight Delivery", models.ShippingSpeedPriority},
		{"Next Day Air", models.ShippingSpeedPriority},
		{"USPS Priority Mail", models.ShippingSpeedPriority},
		{"Express Shipping", models.ShippingSpeedExpedited},
		{"Expedited", models.ShippingSpeedExpedited},
		{"Fast Track", models.ShippingSpeedExpedited},
		{"Standard Shipping", models.ShippingSpeedStandard},
		{"Economy", models.ShippingSpeedStandard},
		{"", models.ShippingSpeedStandard},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyShippingSpeed(tc.option), "option %q", tc.option)
	}
}

// ===========================================
// SkuMap Tests
// ===========================================

func TestSkuMap_LoadAddRemove(t *testing.T) {
	m := NewSkuMap()
	m.Load([]models.SkuMapping{
		{SourceSKU: "A", DestinationSKU: "WH-A"},
		{SourceSKU: "B", DestinationSKU: "WH-B"},
	})
	assert.Equal(t, 2, m.Len())

	dest, ok := m.Resolve("A")
	assert.True(t, ok)
	assert.Equal(t, "WH-A", dest)

	m.Add("A", "WH-A2")
	dest, _ = m.Resolve("A")
	assert.Equal(t, "WH-A2", dest)

	m.Remove("A")
	_, ok = m.Resolve("A")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}
