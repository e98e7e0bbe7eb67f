package stock

import (
	"context"
	"time"
)

// StockLevelView is the read model served by stock level queries and kept in
// the level cache. It is a projection of the aggregate at a point in time;
// writers invalidate it, they never update it in place.
type StockLevelView struct {
	Sku                string           `json:"sku"`
	QuantityOnHand     int64            `json:"quantity_on_hand"`
	QuantityAllocated  int64            `json:"quantity_allocated"`
	AvailableToPromise int64            `json:"available_to_promise"`
	StatusBreakdown    StatusQuantities `json:"status_breakdown"`
	ActiveHoldQuantity int64            `json:"active_hold_quantity,omitempty"`
	Version            int              `json:"version"`
	AsOf               time.Time        `json:"as_of"`
}

// BuildStockLevelView projects an aggregate into its query view at now.
func BuildStockLevelView(ps *ProductStock, now time.Time) *StockLevelView {
	return &StockLevelView{
		Sku:                ps.Sku,
		QuantityOnHand:     ps.QuantityOnHand,
		QuantityAllocated:  ps.QuantityAllocated,
		AvailableToPromise: ps.AvailableToPromiseAt(now),
		StatusBreakdown:    ps.StatusQuantities.Clone(),
		ActiveHoldQuantity: ps.ActiveHoldQuantity(now),
		Version:            ps.Version,
		AsOf:               now,
	}
}

// StockLevelCache caches stock level views by SKU. Implementations must be
// safe for concurrent use. A miss is (nil, nil), never an error.
//
// Cache keys follow the pattern stock_level:{sku}.
type StockLevelCache interface {
	// Get retrieves the cached view for a SKU.
	// Returns nil, nil on a cache miss.
	Get(ctx context.Context, sku string) (*StockLevelView, error)

	// Set stores a view with the specified TTL.
	// If ttl is 0, implementations should use a default TTL.
	Set(ctx context.Context, view *StockLevelView, ttl time.Duration) error

	// Delete removes the cached views for the given SKUs. Missing keys are
	// not an error; writers call this after every committed mutation.
	Delete(ctx context.Context, skus ...string) error

	// InvalidateAll removes every cached view.
	InvalidateAll(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}

// LevelCacheConfig holds configuration for the stock level cache
type LevelCacheConfig struct {
	// LevelTTL is the time-to-live for cached views (default: 5m)
	LevelTTL time.Duration
	// MaxEntries bounds the in-memory implementation (default: 50000)
	MaxEntries int
}

// DefaultLevelCacheConfig returns the default cache configuration
func DefaultLevelCacheConfig() LevelCacheConfig {
	return LevelCacheConfig{
		LevelTTL:   5 * time.Minute,
		MaxEntries: 50000,
	}
}
