package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// LowStockCache keeps the low-stock listing per owner in redis. The listing
// backs a dashboard widget, so short staleness is acceptable and every
// committed movement invalidates the owner's entry anyway.
type LowStockCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewLowStockCache returns a cache with the given TTL.
func NewLowStockCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *LowStockCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockCache{client: client, ttl: ttl, logger: logger}
}

func lowStockKey(ownerID int64) string {
	return fmt.Sprintf("depotix:lowstock:%d", ownerID)
}

// Get returns the cached listing and whether it was present.
func (c *LowStockCache) Get(ctx context.Context, ownerID int64) ([]Item, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, lowStockKey(ownerID)).Bytes()
	if err != nil {
		return nil, false
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		c.logger.Warn("low-stock cache decode failed", slog.Any("error", err))
		return nil, false
	}
	return items, true
}

// Set stores the listing.
func (c *LowStockCache) Set(ctx context.Context, ownerID int64, items []Item) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, lowStockKey(ownerID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("low-stock cache write failed", slog.Any("error", err))
	}
}

// Invalidate drops the owner's cached listing.
func (c *LowStockCache) Invalidate(ctx context.Context, ownerID int64) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, lowStockKey(ownerID)).Err(); err != nil {
		c.logger.Warn("low-stock cache invalidate failed", slog.Any("error", err))
	}
}
