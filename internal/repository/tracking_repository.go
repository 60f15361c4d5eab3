package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fulfillment-connector-service/internal/models"
)

// TrackingRepositoryInterface abstracts tracking record persistence.
type TrackingRepositoryInterface interface {
	Create(ctx context.Context, record *models.TrackingRecord) error
	Update(ctx context.Context, record *models.TrackingRecord) error
	GetBySourceOrderID(ctx context.Context, sourceOrderID string) (*models.TrackingRecord, error)
	ListUnsynced(ctx context.Context, retryCeiling int) ([]models.TrackingRecord, error)
	ListByStatus(ctx context.Context, status models.SyncStatus, limit, offset int) ([]models.TrackingRecord, int64, error)
}

// TrackingRepository handles database operations for tracking records.
type TrackingRepository struct {
	db *gorm.DB
}

var _ TrackingRepositoryInterface = (*TrackingRepository)(nil)

// NewTrackingRepository creates a new tracking repository.
func NewTrackingRepository(db *gorm.DB) *TrackingRepository {
	return &TrackingRepository{db: db}
}

// Create inserts a new tracking record.
func (r *TrackingRepository) Create(ctx context.Context, record *models.TrackingRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Update persists changes to an existing tracking record.
func (r *TrackingRepository) Update(ctx context.Context, record *models.TrackingRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// GetBySourceOrderID retrieves the tracking record for a source order, or nil
// when none exists.
func (r *TrackingRepository) GetBySourceOrderID(ctx context.Context, sourceOrderID string) (*models.TrackingRecord, error) {
	var record models.TrackingRecord
	err := r.db.WithContext(ctx).
		Where("source_order_id = ?", sourceOrderID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListUnsynced returns records still awaiting a successful sync: pending or
// not-yet-shipped orders, plus failed ones below the retry ceiling.
func (r *TrackingRepository) ListUnsynced(ctx context.Context, retryCeiling int) ([]models.TrackingRecord, error) {
	var records []models.TrackingRecord
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.SyncStatus{models.SyncStatusPending, models.SyncStatusNoTrackingYet}).
		Or("status = ? AND retry_count < ?", models.SyncStatusFailed, retryCeiling).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListByStatus returns records in the given status with pagination.
func (r *TrackingRepository) ListByStatus(ctx context.Context, status models.SyncStatus, limit, offset int) ([]models.TrackingRecord, int64, error) {
	var records []models.TrackingRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.TrackingRecord{}).Where("status = ?", status)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
