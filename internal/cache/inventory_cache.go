package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"fulfillment-connector-service/internal/models"
)

// InventoryCache caches per-SKU inventory snapshots with a short TTL. A local
// in-process map is always maintained; an optional Redis tier is shared
// across connector instances and consulted on local misses. When Redis is
// unreachable the cache degrades to local-only operation.
type InventoryCache struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	local map[string]models.InventorySnapshot
}

// NewInventoryCache creates a local-only cache.
func NewInventoryCache(ttl time.Duration) *InventoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &InventoryCache{
		ttl:   ttl,
		local: make(map[string]models.InventorySnapshot),
	}
}

// NewInventoryCacheWithRedis creates a cache backed by Redis. A failed ping
// degrades to local-only caching rather than failing construction.
func NewInventoryCacheWithRedis(redisURL string, ttl time.Duration) (*InventoryCache, error) {
	c := NewInventoryCache(ttl)

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return c, nil
	}

	c.client = client
	return c, nil
}

// TTL returns the cache TTL.
func (c *InventoryCache) TTL() time.Duration {
	return c.ttl
}

func (c *InventoryCache) cacheKey(sku string) string {
	return "inventory:" + sku
}

// Get returns the cached snapshot for a SKU, or false when absent or past
// its TTL. Expired local entries are evicted on read.
func (c *InventoryCache) Get(ctx context.Context, sku string) (models.InventorySnapshot, bool) {
	now := time.Now()

	c.mu.RLock()
	snap, ok := c.local[sku]
	c.mu.RUnlock()
	if ok && !snap.Expired(now) {
		return snap, true
	}
	if ok {
		c.mu.Lock()
		delete(c.local, sku)
		c.mu.Unlock()
	}

	if c.client == nil {
		return models.InventorySnapshot{}, false
	}

	data, err := c.client.Get(ctx, c.cacheKey(sku)).Bytes()
	if err != nil {
		// redis.Nil or transport error: treat as a miss.
		return models.InventorySnapshot{}, false
	}
	if err := json.Unmarshal(data, &snap); err != nil || snap.Expired(now) {
		return models.InventorySnapshot{}, false
	}

	c.mu.Lock()
	c.local[sku] = snap
	c.mu.Unlock()
	return snap, true
}

// Set stores a freshly fetched quantity for a SKU and returns the snapshot.
func (c *InventoryCache) Set(ctx context.Context, sku string, available int) models.InventorySnapshot {
	now := time.Now()
	snap := models.InventorySnapshot{
		SKU:       sku,
		Available: available,
		FetchedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.local[sku] = snap
	c.mu.Unlock()

	if c.client != nil {
		if data, err := json.Marshal(snap); err == nil {
			// Best effort; a write failure only costs cross-instance reuse.
			_ = c.client.Set(ctx, c.cacheKey(sku), data, c.ttl).Err()
		}
	}
	return snap
}

// Invalidate removes a SKU from both tiers.
func (c *InventoryCache) Invalidate(ctx context.Context, sku string) {
	c.mu.Lock()
	delete(c.local, sku)
	c.mu.Unlock()

	if c.client != nil {
		_ = c.client.Del(ctx, c.cacheKey(sku)).Err()
	}
}

// Snapshots returns all unexpired local snapshots.
func (c *InventoryCache) Snapshots() []models.InventorySnapshot {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.InventorySnapshot, 0, len(c.local))
	for _, snap := range c.local {
		if !snap.Expired(now) {
			out = append(out, snap)
		}
	}
	return out
}

// Close closes the Redis connection if one is open.
func (c *InventoryCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
