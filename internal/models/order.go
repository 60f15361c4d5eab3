package models

import "time"

// OrderStatus represents the source marketplace's order lifecycle state.
type OrderStatus string

const (
	OrderStatusAwaitingPayment  OrderStatus = "AWAITING_PAYMENT"
	OrderStatusAwaitingShipment OrderStatus = "AWAITING_SHIPMENT"
	OrderStatusPartiallyShipped OrderStatus = "PARTIALLY_SHIPPED"
	OrderStatusInTransit        OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
	OrderStatusCompleted        OrderStatus = "COMPLETED"
)

// ReadyToShip reports whether an order in this state may be routed to the
// fulfillment provider. Orders in any other state are rejected by validation
// so callers can distinguish "not yet valid" from "not found".
func (s OrderStatus) ReadyToShip() bool {
	return s == OrderStatusAwaitingShipment || s == OrderStatusPartiallyShipped
}

// SourceOrder is an immutable snapshot of a marketplace order, fetched per
// routing attempt.
type SourceOrder struct {
	ID            string           `json:"id"`
	Status        OrderStatus      `json:"status"`
	Recipient     SourceRecipient  `json:"recipient"`
	LineItems     []SourceLineItem `json:"lineItems"`
	Currency      string           `json:"currency"`
	SubtotalPrice float64          `json:"subtotalPrice"`
	TotalTax      float64          `json:"totalTax"`
	TotalShipping float64          `json:"totalShipping"`
	TotalPrice    float64          `json:"totalPrice"`

	// ShippingOption is the buyer-selected delivery option as stated by the
	// marketplace, e.g. "Standard Shipping" or "Express".
	ShippingOption string `json:"shippingOption,omitempty"`

	BuyerNote  string    `json:"buyerNote,omitempty"`
	SellerNote string    `json:"sellerNote,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SourceRecipient is the raw, possibly unstructured recipient block of a
// marketplace order. Structured fields may be absent, in which case
// FullAddress carries the whole address as one string.
type SourceRecipient struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	CountryCode  string `json:"countryCode,omitempty"`
	FullAddress  string `json:"fullAddress,omitempty"`
}

// SourceLineItem is one purchasable line of a marketplace order.
type SourceLineItem struct {
	ID        string  `json:"id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
	Tax       float64 `json:"tax,omitempty"`
}

// NormalizedOrder is the validator's output: the source order with a
// normalized recipient and per-item catalog SKUs confirmed present.
type NormalizedOrder struct {
	ID             string            `json:"id"`
	Status         OrderStatus       `json:"status"`
	Address        NormalizedAddress `json:"address"`
	Items          []SourceLineItem  `json:"items"`
	ShippingOption string            `json:"shippingOption,omitempty"`
	BuyerNote      string            `json:"buyerNote,omitempty"`
	SellerNote     string            `json:"sellerNote,omitempty"`
}

// NormalizedAddress is a recipient address in the fulfillment provider's
// expected form. Every field required by the provider is non-empty and within
// the provider's maximum length after normalization.
type NormalizedAddress struct {
	Name         string `json:"name"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	CountryCode  string `json:"countryCode"`
	Phone        string `json:"phone,omitempty"`
}

// FieldError is a field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}
