package models

import "time"

// InventorySnapshot is a point-in-time view of one SKU's availability at the
// fulfillment provider. A snapshot older than its TTL is never used to
// authorize a fulfillment request.
type InventorySnapshot struct {
	SKU       string    `json:"sku"`
	Available int       `json:"available"`
	FetchedAt time.Time `json:"fetchedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the snapshot is past its TTL at the given instant.
func (s InventorySnapshot) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// InventoryCheckResult is the Inventory Gate's answer for one SKU/quantity.
// Available is the gated quantity, after the safety-stock buffer has been
// subtracted from the provider's raw figure.
type InventoryCheckResult struct {
	SKU        string `json:"sku"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
	Sufficient bool   `json:"sufficient"`
	LowStock   bool   `json:"lowStock"`
	FromCache  bool   `json:"fromCache"`
}
