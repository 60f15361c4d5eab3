package models

import "time"

// ShippingSpeed is the fulfillment provider's shipping speed classification.
type ShippingSpeed string

const (
	ShippingSpeedStandard  ShippingSpeed = "STANDARD"
	ShippingSpeedExpedited ShippingSpeed = "EXPEDITED"
	ShippingSpeedPriority  ShippingSpeed = "PRIORITY"
)

// FulfillmentRequest is a destination-shaped order. It is created fresh per
// routing attempt, never mutated after creation, and sent at most once per
// source order id (the ExternalOrderID acts as the idempotency key).
type FulfillmentRequest struct {
	// ExternalOrderID is the source marketplace order id.
	ExternalOrderID string            `json:"externalOrderId"`
	Address         NormalizedAddress `json:"address"`
	Speed           ShippingSpeed     `json:"speed"`
	Items           []FulfillmentItem `json:"items"`

	// Comment is a bounded free-text note derived from the buyer message and
	// seller note.
	Comment string `json:"comment,omitempty"`
}

// FulfillmentItem is one line of a fulfillment request, keyed by the
// destination SKU.
type FulfillmentItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`

	// DeclaredValue is the per-unit declared value. Nil when the source order
	// carries no per-unit price; absent financial data is omitted rather than
	// defaulted to zero.
	DeclaredValue *float64 `json:"declaredValue,omitempty"`
}

// FulfillmentOrderStatus is the destination provider's order lifecycle state.
type FulfillmentOrderStatus string

const (
	FulfillmentStatusProcessing FulfillmentOrderStatus = "PROCESSING"
	FulfillmentStatusPicking    FulfillmentOrderStatus = "PICKING"
	FulfillmentStatusShipped    FulfillmentOrderStatus = "SHIPPED"
	FulfillmentStatusCancelled  FulfillmentOrderStatus = "CANCELLED"
)

// FulfillmentOrder is an order as known to the fulfillment provider.
type FulfillmentOrder struct {
	ID              string                 `json:"id"`
	ExternalOrderID string                 `json:"externalOrderId"`
	Status          FulfillmentOrderStatus `json:"status"`
	Shipments       []Shipment             `json:"shipments,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// Shipment is one physical package shipped against a fulfillment order.
type Shipment struct {
	ID             string     `json:"id"`
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	TrackingURL    string     `json:"trackingUrl,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
}

// HasTracking reports whether the shipment carries enough data to push back
// to the marketplace.
func (s Shipment) HasTracking() bool {
	return s.Carrier != "" && s.TrackingNumber != ""
}
