package cache

import (
	"context"
	"time"

	"github.com/paklog/inventory-service/internal/domain/stock"
)

// NoopStockLevelCache is a stock.StockLevelCache that caches nothing. Used
// when caching is disabled so callers never need a nil check.
type NoopStockLevelCache struct{}

// NewNoopStockLevelCache creates a cache that never hits
func NewNoopStockLevelCache() *NoopStockLevelCache {
	return &NoopStockLevelCache{}
}

// Get always misses
func (NoopStockLevelCache) Get(ctx context.Context, sku string) (*stock.StockLevelView, error) {
	return nil, nil
}

// Set discards the view
func (NoopStockLevelCache) Set(ctx context.Context, view *stock.StockLevelView, ttl time.Duration) error {
	return nil
}

// Delete is a no-op
func (NoopStockLevelCache) Delete(ctx context.Context, skus ...string) error {
	return nil
}

// InvalidateAll is a no-op
func (NoopStockLevelCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (NoopStockLevelCache) Close() error {
	return nil
}

// Ensure NoopStockLevelCache implements StockLevelCache
var _ stock.StockLevelCache = (*NoopStockLevelCache)(nil)
