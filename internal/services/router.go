package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/clients"
	"fulfillment-connector-service/internal/models"
	"fulfillment-connector-service/internal/repository"
)

// RouterConfig controls batch routing behavior.
type RouterConfig struct {
	// MaxConcurrent bounds how many orders are in flight at once during
	// batch routing.
	MaxConcurrent int

	// ListPageSize is the page size used when discovering pending orders.
	ListPageSize int
}

// DefaultRouterConfig returns production-ready routing defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MaxConcurrent: 5,
		ListPageSize:  50,
	}
}

// OrderRouter orchestrates the per-order pipeline:
// fetch -> validate -> check_inventory -> transform -> create_fulfillment.
// Each transition either advances or halts with a stage-tagged result; a
// fulfillment request is only sent once validation and inventory gating have
// succeeded for the entire order.
type OrderRouter struct {
	marketplace  clients.MarketplaceAPI
	fulfillment  clients.FulfillmentAPI
	validator    *Validator
	transformer  *Transformer
	gate         *InventoryGate
	skuMap       *SkuMap
	trackingRepo repository.TrackingRepositoryInterface
	cfg          RouterConfig
	logger       *logrus.Entry
}

// NewOrderRouter creates an order router.
func NewOrderRouter(
	marketplace clients.MarketplaceAPI,
	fulfillment clients.FulfillmentAPI,
	validator *Validator,
	transformer *Transformer,
	gate *InventoryGate,
	skuMap *SkuMap,
	trackingRepo repository.TrackingRepositoryInterface,
	cfg RouterConfig,
	logger *logrus.Entry,
) *OrderRouter {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultRouterConfig().MaxConcurrent
	}
	if cfg.ListPageSize <= 0 {
		cfg.ListPageSize = DefaultRouterConfig().ListPageSize
	}
	return &OrderRouter{
		marketplace:  marketplace,
		fulfillment:  fulfillment,
		validator:    validator,
		transformer:  transformer,
		gate:         gate,
		skuMap:       skuMap,
		trackingRepo: trackingRepo,
		cfg:          cfg,
		logger:       logger.WithField("component", "order_router"),
	}
}

// RouteOrder runs one order through the full pipeline and returns its
// stage-tagged result. Each run owns its result construction end to end.
func (r *OrderRouter) RouteOrder(ctx context.Context, orderID string) models.RoutingResult {
	log := r.logger.WithField("orderId", orderID)
	result := models.RoutingResult{OrderID: orderID}

	// At-most-one fulfillment order per source order: a previously routed
	// order short-circuits to its existing pairing.
	if existing, err := r.trackingRepo.GetBySourceOrderID(ctx, orderID); err == nil && existing != nil {
		result.Success = true
		result.Stage = models.StageDone
		result.FulfillmentOrderID = existing.FulfillmentOrderID
		result.Warnings = append(result.Warnings, "order was already routed")
		result.CompletedAt = time.Now()
		return result
	}

	// fetch
	order, err := r.marketplace.GetOrder(ctx, orderID)
	if err != nil {
		return r.fail(&result, models.StageFetch, err)
	}

	// validate
	normalized, warnings, err := r.validator.Validate(order)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		return r.fail(&result, models.StageValidate, err)
	}

	// check_inventory: gate the aggregate demand of the whole order against
	// destination SKUs before anything is committed.
	gateWarnings, err := r.gate.AuthorizeOrder(ctx, r.resolveDemand(normalized.Items))
	result.Warnings = append(result.Warnings, gateWarnings...)
	if err != nil {
		return r.fail(&result, models.StageCheckInventory, err)
	}

	// transform
	request, transformWarnings, err := r.transformer.Transform(normalized)
	result.Warnings = append(result.Warnings, transformWarnings...)
	if err != nil {
		return r.fail(&result, models.StageTransform, err)
	}

	// create_fulfillment
	created, err := r.fulfillment.CreateOrder(ctx, request)
	if err != nil {
		return r.fail(&result, models.StageCreateFulfillment, err)
	}

	record := models.NewTrackingRecord(orderID, created.ID)
	if err := r.trackingRepo.Create(ctx, record); err != nil {
		// The fulfillment order exists; losing its pairing would orphan
		// tracking sync, so surface the failure loudly but keep the result
		// successful.
		log.WithError(err).Error("failed to persist tracking record for routed order")
		result.Warnings = append(result.Warnings, "tracking record could not be persisted")
	}

	result.Success = true
	result.Stage = models.StageDone
	result.FulfillmentOrderID = created.ID
	result.CompletedAt = time.Now()
	log.WithField("fulfillmentOrderId", created.ID).Info("order routed")
	return result
}

// resolveDemand maps items to destination SKUs for gating. Resolution here
// mirrors the transformer's fallback so the gate sees the SKUs that will
// actually be requested.
func (r *OrderRouter) resolveDemand(items []models.SourceLineItem) []models.FulfillmentItem {
	out := make([]models.FulfillmentItem, 0, len(items))
	for _, item := range items {
		sku, ok := r.skuMap.Resolve(item.SKU)
		if !ok {
			sku = item.SKU
		}
		out = append(out, models.FulfillmentItem{SKU: sku, Quantity: item.Quantity})
	}
	return out
}

func (r *OrderRouter) fail(result *models.RoutingResult, stage models.RoutingStage, err error) models.RoutingResult {
	result.Success = false
	result.Stage = stage
	result.Error = err.Error()
	result.ErrorCode = string(apperrors.CodeOf(err))
	result.CompletedAt = time.Now()
	r.logger.WithFields(logrus.Fields{
		"orderId": result.OrderID,
		"stage":   stage,
	}).WithError(err).Warn("order routing failed")
	return *result
}

// RouteOrders routes many orders with bounded concurrency. Individual
// failures do not abort the batch; the report carries a per-order result.
func (r *OrderRouter) RouteOrders(ctx context.Context, orderIDs []string) *models.BatchRoutingReport {
	report := &models.BatchRoutingReport{StartedAt: time.Now()}

	sem := make(chan struct{}, r.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, orderID := range orderIDs {
		// Cancellation boundary: do not start the next order once the
		// context is done; in-flight orders run to completion.
		select {
		case <-ctx.Done():
			mu.Lock()
			report.Add(models.RoutingResult{
				OrderID:     orderID,
				Stage:       models.StageFetch,
				Error:       ctx.Err().Error(),
				CompletedAt: time.Now(),
			})
			mu.Unlock()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.RouteOrder(ctx, id)
			mu.Lock()
			report.Add(res)
			mu.Unlock()
		}(orderID)
	}

	wg.Wait()
	report.FinishedAt = time.Now()

	r.logger.WithFields(logrus.Fields{
		"total":   report.Total,
		"success": report.SuccessCount,
		"failed":  report.FailedCount,
	}).Info("batch routing finished")
	return report
}

// RouteAllPending discovers every ready-to-ship order by paginating the
// marketplace listing until exhausted, then routes them as one batch.
func (r *OrderRouter) RouteAllPending(ctx context.Context) (*models.BatchRoutingReport, error) {
	var orderIDs []string
	pageToken := ""
	for {
		page, err := r.marketplace.ListOrders(ctx, &clients.OrderListOptions{
			Status:    models.OrderStatusAwaitingShipment,
			PageSize:  r.cfg.ListPageSize,
			PageToken: pageToken,
		})
		if err != nil {
			return nil, err
		}
		for _, order := range page.Orders {
			orderIDs = append(orderIDs, order.ID)
		}
		if !page.HasMore || page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	r.logger.WithField("pending", len(orderIDs)).Info("discovered pending orders")
	return r.RouteOrders(ctx, orderIDs), nil
}
