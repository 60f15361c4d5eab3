package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/cache"
	"fulfillment-connector-service/internal/models"
)

// InventorySource is the remote lookup the gate consults on cache misses.
type InventorySource interface {
	GetInventory(ctx context.Context, skus []string) (map[string]int, error)
}

// InventoryGateConfig controls gating behavior.
type InventoryGateConfig struct {
	// SafetyStock is subtracted from the raw remote quantity before the
	// sufficiency comparison, making the gate more conservative than the
	// provider's figure.
	SafetyStock int

	// LowStockThreshold flags SKUs at or below this gated quantity.
	LowStockThreshold int

	// FailOpen, when true, lets an order pass with a warning if the remote
	// inventory lookup fails. The default is fail closed: a lookup failure
	// blocks routing, trading availability for oversell protection.
	FailOpen bool
}

// InventoryGate checks per-SKU available-to-promise quantity before a
// fulfillment request is committed. It is the one place overselling is
// prevented.
type InventoryGate struct {
	source InventorySource
	cache  *cache.InventoryCache
	cfg    InventoryGateConfig
	logger *logrus.Entry
}

// NewInventoryGate creates an inventory gate.
func NewInventoryGate(source InventorySource, invCache *cache.InventoryCache, cfg InventoryGateConfig, logger *logrus.Entry) *InventoryGate {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if invCache == nil {
		invCache = cache.NewInventoryCache(5 * time.Minute)
	}
	return &InventoryGate{
		source: source,
		cache:  invCache,
		cfg:    cfg,
		logger: logger.WithField("component", "inventory_gate"),
	}
}

// Check reports whether the requested quantity of one SKU is available.
func (g *InventoryGate) Check(ctx context.Context, sku string, quantity int) (*models.InventoryCheckResult, error) {
	results, err := g.CheckBatch(ctx, map[string]int{sku: quantity})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// CheckBatch checks several SKU demands at once, amortizing the remote
// lookup across cache misses. Result order follows the sorted SKU list.
func (g *InventoryGate) CheckBatch(ctx context.Context, demands map[string]int) ([]models.InventoryCheckResult, error) {
	if g.source == nil {
		// Construction error, not a routing outcome.
		return nil, fmt.Errorf("inventory gate has no remote source configured")
	}

	skus := make([]string, 0, len(demands))
	for sku := range demands {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	snapshots := make(map[string]models.InventorySnapshot, len(skus))
	cached := make(map[string]bool, len(skus))
	var misses []string
	for _, sku := range skus {
		if snap, ok := g.cache.Get(ctx, sku); ok {
			snapshots[sku] = snap
			cached[sku] = true
		} else {
			misses = append(misses, sku)
		}
	}

	if len(misses) > 0 {
		remote, err := g.source.GetInventory(ctx, misses)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeFulfillmentAPIError, err, "inventory lookup failed")
		}
		for _, sku := range misses {
			// A SKU the provider does not report is treated as zero stock.
			snapshots[sku] = g.cache.Set(ctx, sku, remote[sku])
		}
	}

	results := make([]models.InventoryCheckResult, 0, len(skus))
	for _, sku := range skus {
		snap := snapshots[sku]
		gated := snap.Available - g.cfg.SafetyStock
		if gated < 0 {
			gated = 0
		}
		results = append(results, models.InventoryCheckResult{
			SKU:        sku,
			Requested:  demands[sku],
			Available:  gated,
			Sufficient: gated >= demands[sku],
			LowStock:   gated <= g.cfg.LowStockThreshold,
			FromCache:  cached[sku],
		})
	}
	return results, nil
}

// AuthorizeOrder gates an entire order: aggregate per-SKU demand across all
// items must be available or the order fails with insufficient_inventory
// naming the offending SKUs. A remote lookup failure blocks or passes the
// order per the fail-open configuration.
func (g *InventoryGate) AuthorizeOrder(ctx context.Context, items []models.FulfillmentItem) ([]string, error) {
	demands := make(map[string]int, len(items))
	for _, item := range items {
		demands[item.SKU] += item.Quantity
	}

	results, err := g.CheckBatch(ctx, demands)
	if err != nil {
		if g.cfg.FailOpen {
			g.logger.WithError(err).Warn("inventory lookup failed, failing open")
			return []string{fmt.Sprintf("inventory check skipped: %v", err)}, nil
		}
		return nil, err
	}

	var insufficient []string
	var warnings []string
	for _, res := range results {
		if !res.Sufficient {
			insufficient = append(insufficient, fmt.Sprintf("%s (requested %d, available %d)", res.SKU, res.Requested, res.Available))
		} else if res.LowStock {
			warnings = append(warnings, fmt.Sprintf("SKU %s is low on stock (%d remaining)", res.SKU, res.Available))
		}
	}
	if len(insufficient) > 0 {
		return warnings, apperrors.New(apperrors.CodeInsufficientInventory,
			"insufficient inventory for %s", strings.Join(insufficient, ", "))
	}
	return warnings, nil
}

// ListLowStock batch-checks the given SKUs and returns the ones at or below
// the low-stock threshold. When skus is empty, the current cache contents
// are evaluated instead.
func (g *InventoryGate) ListLowStock(ctx context.Context, skus []string) ([]models.InventoryCheckResult, error) {
	demands := make(map[string]int, len(skus))
	for _, sku := range skus {
		demands[sku] = 0
	}
	if len(demands) == 0 {
		for _, snap := range g.cache.Snapshots() {
			demands[snap.SKU] = 0
		}
	}
	if len(demands) == 0 {
		return nil, nil
	}

	results, err := g.CheckBatch(ctx, demands)
	if err != nil {
		return nil, err
	}

	var low []models.InventoryCheckResult
	for _, res := range results {
		if res.LowStock {
			low = append(low, res)
		}
	}
	return low, nil
}

// CacheTTL exposes the cache TTL for reporting.
func (g *InventoryGate) CacheTTL() time.Duration {
	return g.cache.TTL()
}
