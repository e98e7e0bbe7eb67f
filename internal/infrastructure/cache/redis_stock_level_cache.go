package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/stock"
)

const levelScanBatchSize = 100

// RedisStockLevelCache implements stock.StockLevelCache using Redis
type RedisStockLevelCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	config     stock.LevelCacheConfig
	logger     *zap.Logger
}

// RedisStockLevelCacheOption is a functional option for configuring the cache
type RedisStockLevelCacheOption func(*RedisStockLevelCache)

// WithLevelCacheConfig sets the cache configuration
func WithLevelCacheConfig(config stock.LevelCacheConfig) RedisStockLevelCacheOption {
	return func(c *RedisStockLevelCache) {
		c.config = config
	}
}

// WithLevelCacheLogger sets the logger for the cache
func WithLevelCacheLogger(logger *zap.Logger) RedisStockLevelCacheOption {
	return func(c *RedisStockLevelCache) {
		c.logger = logger
	}
}

// NewRedisStockLevelCache creates a new Redis-based stock level cache
func NewRedisStockLevelCache(cfg RedisConfig, opts ...RedisStockLevelCacheOption) (*RedisStockLevelCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisStockLevelCache{
		client:     client,
		ownsClient: true, // We created this client, so we own it
		config:     stock.DefaultLevelCacheConfig(),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// NewRedisStockLevelCacheWithClient creates a cache with an existing Redis client
// Note: The caller retains ownership of the client and is responsible for closing it
func NewRedisStockLevelCacheWithClient(client *redis.Client, opts ...RedisStockLevelCacheOption) *RedisStockLevelCache {
	cache := &RedisStockLevelCache{
		client:     client,
		ownsClient: false, // Client is shared, don't close it
		config:     stock.DefaultLevelCacheConfig(),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// levelCacheKey generates the cache key for a SKU's level view
func (c *RedisStockLevelCache) levelCacheKey(sku string) string {
	return fmt.Sprintf("stock_level:%s", sku)
}

// Get retrieves a stock level view from cache
func (c *RedisStockLevelCache) Get(ctx context.Context, sku string) (*stock.StockLevelView, error) {
	cacheKey := c.levelCacheKey(sku)

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		// Cache miss
		c.logger.Debug("Cache miss for stock level", zap.String("sku", sku))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Failed to get stock level from cache",
			zap.String("sku", sku),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get level from cache: %w", err)
	}

	var view stock.StockLevelView
	if err := json.Unmarshal(data, &view); err != nil {
		c.logger.Error("Failed to unmarshal stock level view",
			zap.String("sku", sku),
			zap.Error(err))
		// Delete corrupted cache entry
		_ = c.client.Del(ctx, cacheKey)
		return nil, fmt.Errorf("failed to unmarshal level view: %w", err)
	}

	c.logger.Debug("Cache hit for stock level", zap.String("sku", sku))
	return &view, nil
}

// Set stores a stock level view in cache
func (c *RedisStockLevelCache) Set(ctx context.Context, view *stock.StockLevelView, ttl time.Duration) error {
	if view == nil {
		return nil
	}

	if ttl == 0 {
		ttl = c.config.LevelTTL
	}

	cacheKey := c.levelCacheKey(view.Sku)

	data, err := json.Marshal(view)
	if err != nil {
		c.logger.Error("Failed to marshal stock level view",
			zap.String("sku", view.Sku),
			zap.Error(err))
		return fmt.Errorf("failed to marshal level view: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		c.logger.Error("Failed to set stock level in cache",
			zap.String("sku", view.Sku),
			zap.Error(err))
		return fmt.Errorf("failed to set level in cache: %w", err)
	}

	c.logger.Debug("Cached stock level",
		zap.String("sku", view.Sku),
		zap.Duration("ttl", ttl))
	return nil
}

// Delete removes the cached views for the given SKUs
func (c *RedisStockLevelCache) Delete(ctx context.Context, skus ...string) error {
	if len(skus) == 0 {
		return nil
	}

	keys := make([]string, len(skus))
	for i, sku := range skus {
		keys[i] = c.levelCacheKey(sku)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("Failed to delete stock levels from cache",
			zap.Strings("skus", skus),
			zap.Error(err))
		return fmt.Errorf("failed to delete levels from cache: %w", err)
	}

	c.logger.Debug("Deleted stock levels from cache", zap.Strings("skus", skus))
	return nil
}

// InvalidateAll removes all cached stock level views
func (c *RedisStockLevelCache) InvalidateAll(ctx context.Context) error {
	// Use SCAN to find keys to avoid blocking Redis with KEYS command
	var cursor uint64
	var deletedCount int64

	for {
		var keys []string
		var err error
		keys, cursor, err = c.client.Scan(ctx, cursor, "stock_level:*", levelScanBatchSize).Result()
		if err != nil {
			c.logger.Error("Failed to scan stock level keys", zap.Error(err))
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.logger.Error("Failed to delete stock level keys", zap.Error(err))
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deletedCount += deleted
		}

		if cursor == 0 {
			break
		}
	}

	c.logger.Info("Invalidated all stock level cache",
		zap.Int64("deleted_count", deletedCount))
	return nil
}

// Close releases any resources held by the cache
func (c *RedisStockLevelCache) Close() error {
	// Only close client if we own it
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (c *RedisStockLevelCache) GetClient() *redis.Client {
	return c.client
}

// Ensure RedisStockLevelCache implements StockLevelCache
var _ stock.StockLevelCache = (*RedisStockLevelCache)(nil)
