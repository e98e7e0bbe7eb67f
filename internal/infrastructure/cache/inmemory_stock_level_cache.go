package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/stock"
)

const levelCleanupInterval = 30 * time.Second

// InMemoryStockLevelCache implements stock.StockLevelCache using in-memory
// storage. Suitable for single-instance deployments and tests; multi-instance
// deployments should use the Redis implementation so invalidations are shared.
type InMemoryStockLevelCache struct {
	views   sync.Map // map[string]*levelEntry
	config  stock.LevelCacheConfig
	logger  *zap.Logger
	stopCh  chan struct{} // Channel to stop the cleanup goroutine
	stopped int32         // Atomic flag to track if cache is stopped
	size    int64

	// Stats for monitoring
	hits   int64
	misses int64
}

// levelEntry wraps a cached view with expiration time
type levelEntry struct {
	view      *stock.StockLevelView
	expiresAt time.Time
}

// isExpired checks if the cache entry has expired
func (e *levelEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryStockLevelCacheOption is a functional option for configuring the cache
type InMemoryStockLevelCacheOption func(*InMemoryStockLevelCache)

// WithInMemoryLevelConfig sets the cache configuration
func WithInMemoryLevelConfig(config stock.LevelCacheConfig) InMemoryStockLevelCacheOption {
	return func(c *InMemoryStockLevelCache) {
		c.config = config
	}
}

// WithInMemoryLevelLogger sets the logger for the cache
func WithInMemoryLevelLogger(logger *zap.Logger) InMemoryStockLevelCacheOption {
	return func(c *InMemoryStockLevelCache) {
		c.logger = logger
	}
}

// NewInMemoryStockLevelCache creates a new in-memory stock level cache.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryStockLevelCache(opts ...InMemoryStockLevelCacheOption) *InMemoryStockLevelCache {
	cache := &InMemoryStockLevelCache{
		config: stock.DefaultLevelCacheConfig(),
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	// Start background cleanup goroutine
	go cache.cleanupExpired()

	return cache
}

// Get retrieves a stock level view from cache
func (c *InMemoryStockLevelCache) Get(ctx context.Context, sku string) (*stock.StockLevelView, error) {
	if value, ok := c.views.Load(sku); ok {
		entry := value.(*levelEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("Cache hit for stock level", zap.String("sku", sku))
			return entry.view, nil
		}
		// Expired, remove from cache
		c.views.Delete(sku)
		atomic.AddInt64(&c.size, -1)
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("Cache miss for stock level", zap.String("sku", sku))
	return nil, nil
}

// Set stores a stock level view in cache
func (c *InMemoryStockLevelCache) Set(ctx context.Context, view *stock.StockLevelView, ttl time.Duration) error {
	if view == nil {
		return nil
	}

	if ttl == 0 {
		ttl = c.config.LevelTTL
	}

	// Bound memory: refuse new entries over the cap, updates still land
	if _, exists := c.views.Load(view.Sku); !exists {
		if c.config.MaxEntries > 0 && atomic.LoadInt64(&c.size) >= int64(c.config.MaxEntries) {
			c.logger.Warn("Stock level cache full, skipping set",
				zap.String("sku", view.Sku),
				zap.Int("max_entries", c.config.MaxEntries))
			return nil
		}
		atomic.AddInt64(&c.size, 1)
	}

	c.views.Store(view.Sku, &levelEntry{
		view:      view,
		expiresAt: time.Now().Add(ttl),
	})

	return nil
}

// Delete removes the cached views for the given SKUs
func (c *InMemoryStockLevelCache) Delete(ctx context.Context, skus ...string) error {
	for _, sku := range skus {
		if _, ok := c.views.LoadAndDelete(sku); ok {
			atomic.AddInt64(&c.size, -1)
		}
	}
	return nil
}

// InvalidateAll removes every cached view
func (c *InMemoryStockLevelCache) InvalidateAll(ctx context.Context) error {
	c.views.Range(func(key, _ any) bool {
		c.views.Delete(key)
		return true
	})
	atomic.StoreInt64(&c.size, 0)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryStockLevelCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns hit/miss counters (for testing/monitoring)
func (c *InMemoryStockLevelCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Size returns the number of live entries (for testing/monitoring)
func (c *InMemoryStockLevelCache) Size() int {
	return int(atomic.LoadInt64(&c.size))
}

// cleanupExpired periodically removes expired entries
func (c *InMemoryStockLevelCache) cleanupExpired() {
	ticker := time.NewTicker(levelCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.views.Range(func(key, value any) bool {
				entry := value.(*levelEntry)
				if entry.isExpired() {
					if _, ok := c.views.LoadAndDelete(key); ok {
						atomic.AddInt64(&c.size, -1)
					}
				}
				return true
			})
		}
	}
}

// Ensure InMemoryStockLevelCache implements StockLevelCache
var _ stock.StockLevelCache = (*InMemoryStockLevelCache)(nil)
