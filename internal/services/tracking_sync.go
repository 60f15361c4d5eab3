package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/clients"
	"fulfillment-connector-service/internal/models"
	"fulfillment-connector-service/internal/repository"
)

// TrackingSyncConfig controls tracking synchronization behavior.
type TrackingSyncConfig struct {
	// MaxRetries is the retry ceiling after which a record is reported
	// failed and excluded from future sweeps.
	MaxRetries int

	// SweepOpsPerMinute limits how many records one sweep processes per
	// minute, to avoid saturating either remote API.
	SweepOpsPerMinute int

	// SchedulerInterval is the pause between scheduled sweeps.
	SchedulerInterval time.Duration
}

// DefaultTrackingSyncConfig returns production-ready sync defaults.
func DefaultTrackingSyncConfig() TrackingSyncConfig {
	return TrackingSyncConfig{
		MaxRetries:        3,
		SweepOpsPerMinute: 30,
		SchedulerInterval: 10 * time.Minute,
	}
}

// SyncReport summarizes one tracking sweep.
type SyncReport struct {
	Total         int       `json:"total"`
	Synced        int       `json:"synced"`
	NoTrackingYet int       `json:"noTrackingYet"`
	Failed        int       `json:"failed"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// TrackingSynchronizer pulls shipment tracking from the fulfillment provider
// and pushes it back to the marketplace. Syncing is idempotent: an order whose
// tracking already went through is skipped, never re-pushed.
type TrackingSynchronizer struct {
	marketplace clients.MarketplaceAPI
	fulfillment clients.FulfillmentAPI
	repo        repository.TrackingRepositoryInterface
	cfg         TrackingSyncConfig
	limiter     *rate.Limiter
	logger      *logrus.Entry

	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	sweeping bool
}

// NewTrackingSynchronizer creates a tracking synchronizer.
func NewTrackingSynchronizer(
	marketplace clients.MarketplaceAPI,
	fulfillment clients.FulfillmentAPI,
	repo repository.TrackingRepositoryInterface,
	cfg TrackingSyncConfig,
	logger *logrus.Entry,
) *TrackingSynchronizer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	defaults := DefaultTrackingSyncConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.SweepOpsPerMinute <= 0 {
		cfg.SweepOpsPerMinute = defaults.SweepOpsPerMinute
	}
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = defaults.SchedulerInterval
	}
	return &TrackingSynchronizer{
		marketplace: marketplace,
		fulfillment: fulfillment,
		repo:        repo,
		cfg:         cfg,
		limiter:     rate.NewLimiter(rate.Limit(float64(cfg.SweepOpsPerMinute)/60.0), 1),
		logger:      logger.WithField("component", "tracking_sync"),
	}
}

// SyncOrder synchronizes tracking for a single routed order and returns its
// updated record. Already-synced orders are skipped with a typed error and no
// marketplace call is made.
func (s *TrackingSynchronizer) SyncOrder(ctx context.Context, sourceOrderID string) (*models.TrackingRecord, error) {
	record, err := s.repo.GetBySourceOrderID(ctx, sourceOrderID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFulfillmentAPIError, err, "failed to load tracking record")
	}
	if record == nil {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "order %s has not been routed", sourceOrderID)
	}
	if record.Status == models.SyncStatusSynced {
		return record, apperrors.New(apperrors.CodeTrackingAlreadySynced,
			"tracking for order %s was already synced", sourceOrderID)
	}

	return s.sync(ctx, record)
}

// sync performs one synchronization attempt and persists the outcome.
func (s *TrackingSynchronizer) sync(ctx context.Context, record *models.TrackingRecord) (*models.TrackingRecord, error) {
	log := s.logger.WithFields(logrus.Fields{
		"orderId":            record.SourceOrderID,
		"fulfillmentOrderId": record.FulfillmentOrderID,
	})
	now := time.Now()
	record.LastAttemptAt = &now

	shipments, err := s.fulfillment.GetTracking(ctx, record.FulfillmentOrderID)
	if err != nil {
		return record, s.recordFailure(ctx, record, err)
	}

	shipment := firstWithTracking(shipments)
	if shipment == nil {
		// Not shipped yet. Not a failure; the record stays eligible for
		// future sweeps without consuming a retry.
		record.Status = models.SyncStatusNoTrackingYet
		record.LastError = ""
		if err := s.repo.Update(ctx, record); err != nil {
			return record, err
		}
		log.Debug("no tracking available yet")
		return record, nil
	}

	err = s.marketplace.UpdateTracking(ctx, &clients.TrackingUpdate{
		OrderID:        record.SourceOrderID,
		Carrier:        shipment.Carrier,
		TrackingNumber: shipment.TrackingNumber,
		TrackingURL:    shipment.TrackingURL,
	})
	if err != nil {
		return record, s.recordFailure(ctx, record, err)
	}

	record.Status = models.SyncStatusSynced
	record.Carrier = shipment.Carrier
	record.TrackingNumber = shipment.TrackingNumber
	record.LastError = ""
	syncedAt := time.Now()
	record.SyncedAt = &syncedAt
	if err := s.repo.Update(ctx, record); err != nil {
		return record, err
	}
	log.WithField("trackingNumber", shipment.TrackingNumber).Info("tracking synced")
	return record, nil
}

func (s *TrackingSynchronizer) recordFailure(ctx context.Context, record *models.TrackingRecord, cause error) error {
	record.RetryCount++
	record.LastError = cause.Error()
	if record.RetryCount >= s.cfg.MaxRetries {
		record.Status = models.SyncStatusFailed
		s.logger.WithFields(logrus.Fields{
			"orderId":    record.SourceOrderID,
			"retryCount": record.RetryCount,
		}).WithError(cause).Error("tracking sync exhausted retries")
	} else {
		s.logger.WithField("orderId", record.SourceOrderID).WithError(cause).Warn("tracking sync attempt failed")
	}
	if err := s.repo.Update(ctx, record); err != nil {
		s.logger.WithError(err).Error("failed to persist tracking sync failure")
	}
	return cause
}

func firstWithTracking(shipments []models.Shipment) *models.Shipment {
	for i := range shipments {
		if shipments[i].HasTracking() {
			return &shipments[i]
		}
	}
	return nil
}

// SyncAll sweeps every unsynced record, rate limited so one sweep cannot
// saturate the remote APIs. Only one sweep runs at a time.
func (s *TrackingSynchronizer) SyncAll(ctx context.Context) (*SyncReport, error) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeValidationFailed, "a tracking sweep is already in progress")
	}
	s.sweeping = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	report := &SyncReport{StartedAt: time.Now()}

	records, err := s.repo.ListUnsynced(ctx, s.cfg.MaxRetries)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFulfillmentAPIError, err, "failed to list unsynced records")
	}
	report.Total = len(records)

	for i := range records {
		if err := s.limiter.Wait(ctx); err != nil {
			report.FinishedAt = time.Now()
			return report, err
		}

		record := &records[i]
		updated, err := s.sync(ctx, record)
		switch {
		case err != nil:
			report.Failed++
		case updated.Status == models.SyncStatusSynced:
			report.Synced++
		case updated.Status == models.SyncStatusNoTrackingYet:
			report.NoTrackingYet++
		}
	}

	report.FinishedAt = time.Now()
	s.logger.WithFields(logrus.Fields{
		"total":         report.Total,
		"synced":        report.Synced,
		"noTrackingYet": report.NoTrackingYet,
		"failed":        report.Failed,
	}).Info("tracking sweep finished")
	return report, nil
}

// StartScheduler begins periodic sweeps in the background. Starting an
// already-running scheduler is a no-op.
func (s *TrackingSynchronizer) StartScheduler() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.cfg.SchedulerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := s.SyncAll(context.Background()); err != nil {
					s.logger.WithError(err).Warn("scheduled tracking sweep failed")
				}
			}
		}
	}(s.stopCh, s.doneCh)

	s.logger.WithField("interval", s.cfg.SchedulerInterval).Info("tracking scheduler started")
}

// StopScheduler stops periodic sweeps and waits for the scheduler goroutine
// to exit. Stopping an idle scheduler is a no-op.
func (s *TrackingSynchronizer) StopScheduler() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("tracking scheduler stopped")
}

// SchedulerRunning reports whether periodic sweeps are active.
func (s *TrackingSynchronizer) SchedulerRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
