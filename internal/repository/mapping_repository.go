package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fulfillment-connector-service/internal/models"
)

// MappingRepositoryInterface abstracts SKU mapping persistence.
type MappingRepositoryInterface interface {
	Upsert(ctx context.Context, mapping *models.SkuMapping) error
	ListAll(ctx context.Context) ([]models.SkuMapping, error)
	Delete(ctx context.Context, sourceSKU string) error
}

// MappingRepository handles database operations for SKU mappings.
type MappingRepository struct {
	db *gorm.DB
}

var _ MappingRepositoryInterface = (*MappingRepository)(nil)

// NewMappingRepository creates a new mapping repository.
func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Upsert creates or updates the mapping for a source SKU.
func (r *MappingRepository) Upsert(ctx context.Context, mapping *models.SkuMapping) error {
	if mapping.ID == uuid.Nil {
		mapping.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"destination_sku", "updated_at"}),
	}).Create(mapping).Error
}

// ListAll returns every persisted SKU mapping.
func (r *MappingRepository) ListAll(ctx context.Context) ([]models.SkuMapping, error) {
	var mappings []models.SkuMapping
	if err := r.db.WithContext(ctx).Order("source_sku ASC").Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// Delete removes the mapping for a source SKU.
func (r *MappingRepository) Delete(ctx context.Context, sourceSKU string) error {
	return r.db.WithContext(ctx).
		Where("source_sku = ?", sourceSKU).
		Delete(&models.SkuMapping{}).Error
}
