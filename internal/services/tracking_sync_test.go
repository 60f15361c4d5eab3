package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/clients"
	"fulfillment-connector-service/internal/models"
)

type syncFixture struct {
	marketplace *MockMarketplaceAPI
	fulfillment *MockFulfillmentAPI
	repo        *MockTrackingRepository
	sync        *TrackingSynchronizer
}

func newSyncFixture(cfg TrackingSyncConfig) *syncFixture {
	marketplace := new(MockMarketplaceAPI)
	fulfillment := new(MockFulfillmentAPI)
	repo := new(MockTrackingRepository)
	if cfg.SweepOpsPerMinute == 0 {
		// Keep sweeps instantaneous in tests.
		cfg.SweepOpsPerMinute = 60000
	}
	return &syncFixture{
		marketplace: marketplace,
		fulfillment: fulfillment,
		repo:        repo,
		sync:        NewTrackingSynchronizer(marketplace, fulfillment, repo, cfg, nil),
	}
}

// ===========================================
// SyncOrder Tests
// ===========================================

func TestSyncOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(TrackingSyncConfig{})

	record := models.NewTrackingRecord("ORD-1", "FO-1")
	f.repo.On("GetBySourceOrderID", ctx, "ORD-1").Return(record, nil)
	f.fulfillment.On("GetTracking", ctx, "FO-1").Return([]models.Shipment{
		{ID: "shp-1", Carrier: "UPS", TrackingNumber: "1Z999", TrackingURL: "https://track/1Z999"},
	}, nil)
	f.marketplace.On("UpdateTracking", ctx, &clients.TrackingUpdate{
		OrderID:        "ORD-1",
		Carrier:        "UPS",
		TrackingNumber: "1Z999",
		TrackingURL:    "https://track/1Z999",
	}).Return(nil)
	f.repo.On("Update", ctx, mock.MatchedBy(func(rec *models.TrackingRecord) bool {
		return rec.Status == models.SyncStatusSynced && rec.TrackingNumber == "1Z999"
	})).Return(nil)

	updated, err := f.sync.SyncOrder(ctx, "ORD-1")

	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, updated.Status)
	assert.Equal(t, "UPS", updated.Carrier)
	assert.NotNil(t, updated.SyncedAt)
	f.marketplace.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestSyncOrder_AlreadySyncedIsNotRepushed(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(TrackingSyncConfig{})

	record := models.NewTrackingRecord("ORD-1", "FO-1")
	record.Status = models.SyncStatusSynced
	f.repo.On("GetBySourceOrderID", ctx, "ORD-1").Return(record, nil)

	returned, err := f.sync.SyncOrder(ctx, "ORD-1")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTrackingAlreadySynced, apperrors.CodeOf(err))
	assert.Equal(t, record, returned)
	f.fulfillment.AssertNotCalled(t, "GetTracking", mock.Anything, mock.Anything)
	f.marketplace.AssertNotCalled(t, "UpdateTracking", mock.Anything, mock.Anything)
}

func TestSyncOrder_NoTrackingYet(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(TrackingSyncConfig{})

	record := models.NewTrackingRecord("ORD-1", "FO-1")
	f.repo.On("GetBySourceOrderID", ctx, "ORD-1").Return(record, nil)
	// Shipment exists but carries no tracking data yet.
	f.fulfillment.On("GetTracking", ctx, "FO-1").Return([]models.Shipment{{ID: "shp-1"}}, nil)
	f.repo.On("Update", ctx, mock.MatchedBy(func(rec *models.TrackingRecord) bool {
		return rec.Status == models.SyncStatusNoTrackingYet
	})).Return(nil)

	updated, err := f.sync.SyncOrder(ctx, "ORD-1")

	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusNoTrackingYet, updated.Status)
	assert.Equal(t, 0, updated.RetryCount)
	f.marketplace.AssertNotCalled(t, "UpdateTracking", mock.Anything, mock.Anything)
}

func TestSyncOrder_FailureCountsTowardCeiling(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(TrackingSyncConfig{MaxRetries: 2})

	record := models.NewTrackingRecord("ORD-1", "FO-1")
	record.RetryCount = 1
	f.repo.On("GetBySourceOrderID", ctx, "ORD-1").Return(record, nil)
	f.fulfillment.On("GetTracking", ctx, "FO-1").Return(nil, errors.New("gateway timeout"))
	f.repo.On("Update", ctx, mock.Anything).Return(nil)

	updated, err := f.sync.SyncOrder(ctx, "ORD-1")

	require.Error(t, err)
	assert.Equal(t, 2, updated.RetryCount)
	assert.Equal(t, models.SyncStatusFailed, updated.Status)
	assert.Contains(t, updated.LastError, "gateway timeout")
}

func TestSyncOrder_UnroutedOrder(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(TrackingSyncConfig{})

	f.repo.On("GetBySourceOrderID", ctx, "ORD-UNKNOWN").Return(nil, nil)

	_, err := f.sync.SyncOrder(ctx, "ORD-UNKNOWN")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
}

// ===========================================
// SyncAll Tests
// ===========================================

func TestSyncAll_SweepCounts(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(TrackingSyncConfig{MaxRetries: 3})

	records := []models.TrackingRecord{
		*models.NewTrackingRecord("ORD-1", "FO-1"),
		*models.NewTrackingRecord("ORD-2", "FO-2"),
		*models.NewTrackingRecord("ORD-3", "FO-3"),
	}
	f.repo.On("ListUnsynced", ctx, 3).Return(records, nil)

	// FO-1 ships with tracking, FO-2 has not shipped, FO-3 errors.
	f.fulfillment.On("GetTracking", ctx, "FO-1").Return([]models.Shipment{
		{ID: "shp-1", Carrier: "UPS", TrackingNumber: "1Z1"},
	}, nil)
	f.fulfillment.On("GetTracking", ctx, "FO-2").Return([]models.Shipment{}, nil)
	f.fulfillment.On("GetTracking", ctx, "FO-3").Return(nil, errors.New("boom"))
	f.marketplace.On("UpdateTracking", ctx, mock.Anything).Return(nil)
	f.repo.On("Update", ctx, mock.Anything).Return(nil)

	report, err := f.sync.SyncAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 1, report.NoTrackingYet)
	assert.Equal(t, 1, report.Failed)
}

func TestSyncAll_EmptySweep(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(TrackingSyncConfig{MaxRetries: 3})

	f.repo.On("ListUnsynced", ctx, 3).Return([]models.TrackingRecord{}, nil)

	report, err := f.sync.SyncAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
}

// ===========================================
// Scheduler Tests
// ===========================================

func TestScheduler_StartStopIdempotent(t *testing.T) {
	f := newSyncFixture(TrackingSyncConfig{})

	assert.False(t, f.sync.SchedulerRunning())

	f.sync.StartScheduler()
	f.sync.StartScheduler()
	assert.True(t, f.sync.SchedulerRunning())

	f.sync.StopScheduler()
	f.sync.StopScheduler()
	assert.False(t, f.sync.SchedulerRunning())
}
