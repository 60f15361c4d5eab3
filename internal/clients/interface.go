package clients

import (
	"context"
	"time"

	"fulfillment-connector-service/internal/models"
)

// MarketplaceAPI is the contract to the source marketplace's order API.
type MarketplaceAPI interface {
	// TestConnection verifies credentials against the remote API.
	TestConnection(ctx context.Context) error

	// RefreshAccessToken exchanges the refresh token for a new access token.
	RefreshAccessToken(ctx context.Context) (*TokenResult, error)

	// ListOrders returns one page of orders matching the filter.
	ListOrders(ctx context.Context, opts *OrderListOptions) (*OrdersPage, error)

	// GetOrder fetches a single order snapshot by id.
	GetOrder(ctx context.Context, orderID string) (*models.SourceOrder, error)

	// UpdateTracking writes carrier and tracking number back to an order.
	UpdateTracking(ctx context.Context, update *TrackingUpdate) error
}

// FulfillmentAPI is the contract to the remote warehousing provider.
type FulfillmentAPI interface {
	// TestConnection verifies credentials against the remote API.
	TestConnection(ctx context.Context) error

	// RefreshAccessToken exchanges the refresh token for a new access token.
	RefreshAccessToken(ctx context.Context) (*TokenResult, error)

	// CreateOrder submits a fulfillment request. The request's external order
	// id is the idempotency key; resubmitting the same id has no new effect.
	CreateOrder(ctx context.Context, req *models.FulfillmentRequest) (*models.FulfillmentOrder, error)

	// GetOrder fetches a fulfillment order by the provider's id.
	GetOrder(ctx context.Context, fulfillmentOrderID string) (*models.FulfillmentOrder, error)

	// GetTracking fetches package tracking for a fulfillment order.
	GetTracking(ctx context.Context, fulfillmentOrderID string) ([]models.Shipment, error)

	// GetInventory returns available quantities for the given SKUs.
	GetInventory(ctx context.Context, skus []string) (map[string]int, error)
}

// OrderListOptions filters and paginates a marketplace order listing.
type OrderListOptions struct {
	Status       models.OrderStatus
	CreatedAfter time.Time
	PageSize     int
	PageToken    string
}

// OrdersPage is one page of a marketplace order listing.
type OrdersPage struct {
	Orders        []models.SourceOrder
	NextPageToken string
	HasMore       bool
}

// TokenResult contains the result of a token refresh.
type TokenResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TrackingUpdate carries shipment data pushed back to the marketplace.
type TrackingUpdate struct {
	OrderID        string `json:"orderId"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl,omitempty"`
}
