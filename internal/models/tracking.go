package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the tracking-sync state of a routed order.
type SyncStatus string

const (
	SyncStatusPending       SyncStatus = "pending"
	SyncStatusSynced        SyncStatus = "synced"
	SyncStatusFailed        SyncStatus = "failed"
	SyncStatusNoTrackingYet SyncStatus = "no_tracking_yet"
)

// TrackingRecord pairs a routed source order with its fulfillment order and
// records tracking-sync progress. One record exists per routed order; the
// status moves pending -> synced, or accumulates retries until the retry
// ceiling and is reported failed but never dropped.
type TrackingRecord struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SourceOrderID      string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_tracking_source_order" json:"sourceOrderId"`
	FulfillmentOrderID string     `gorm:"type:varchar(255);not null;index" json:"fulfillmentOrderId"`
	Status             SyncStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	Carrier            string     `gorm:"type:varchar(128)" json:"carrier,omitempty"`
	TrackingNumber     string     `gorm:"type:varchar(128)" json:"trackingNumber,omitempty"`
	RetryCount         int        `gorm:"not null;default:0" json:"retryCount"`
	LastError          string     `gorm:"type:text" json:"lastError,omitempty"`
	LastAttemptAt      *time.Time `json:"lastAttemptAt,omitempty"`
	SyncedAt           *time.Time `json:"syncedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// TableName specifies the table name
func (TrackingRecord) TableName() string {
	return "fulfillment_tracking_records"
}

// NewTrackingRecord creates a pending record for a freshly routed order.
func NewTrackingRecord(sourceOrderID, fulfillmentOrderID string) *TrackingRecord {
	return &TrackingRecord{
		ID:                 uuid.New(),
		SourceOrderID:      sourceOrderID,
		FulfillmentOrderID: fulfillmentOrderID,
		Status:             SyncStatusPending,
	}
}
