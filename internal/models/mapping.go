package models

import (
	"time"

	"github.com/google/uuid"
)

// SkuMapping maps a source marketplace SKU to the fulfillment provider's SKU.
// Absence of a mapping is not fatal; routing falls back to the source SKU and
// records a warning.
type SkuMapping struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceSKU      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_sku_mapping_source" json:"sourceSku"`
	DestinationSKU string    `gorm:"type:varchar(255);not null" json:"destinationSku"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (SkuMapping) TableName() string {
	return "sku_mappings"
}
