// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// GormInventoryHealthProvider implements InventoryHealthProvider using GORM.
// It queries the stock and outbox tables directly for aggregated figures.
type GormInventoryHealthProvider struct {
	db *gorm.DB
}

// NewGormInventoryHealthProvider creates a new GormInventoryHealthProvider.
func NewGormInventoryHealthProvider(db *gorm.DB) *GormInventoryHealthProvider {
	return &GormInventoryHealthProvider{db: db}
}

// TrackedSkuCount returns the number of SKUs under management.
func (p *GormInventoryHealthProvider) TrackedSkuCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("product_stocks").
		Count(&count).Error

	return count, err
}

// OutOfStockSkuCount returns the number of SKUs whose sellable position is
// exhausted. Same on-hand minus allocated predicate as the out-of-stock
// listing on the query path.
func (p *GormInventoryHealthProvider) OutOfStockSkuCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("product_stocks").
		Where("quantity_on_hand - quantity_allocated <= 0").
		Count(&count).Error

	return count, err
}

// DeadStockSkuCount returns the number of SKUs with no ledger movement since
// the given time. The correlated lookup rides the (sku, timestamp) ledger
// index.
func (p *GormInventoryHealthProvider) DeadStockSkuCount(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("product_stocks").
		Where("NOT EXISTS (SELECT 1 FROM inventory_ledger WHERE inventory_ledger.sku = product_stocks.sku AND inventory_ledger.timestamp >= ?)", since).
		Count(&count).Error

	return count, err
}

// OutboxBacklog returns the outbox row count per status.
func (p *GormInventoryHealthProvider) OutboxBacklog(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string `gorm:"column:status"`
		Count  int64  `gorm:"column:count"`
	}

	var results []statusCount
	err := p.db.WithContext(ctx).
		Table("outbox_events").
		Select("status, COUNT(*) as count").
		Group("status").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Status] = r.Count
	}

	return m, nil
}

// OldestUndeliveredAge returns the age of the oldest outbox row still
// awaiting delivery. Returns zero when the backlog is drained.
func (p *GormInventoryHealthProvider) OldestUndeliveredAge(ctx context.Context) (time.Duration, error) {
	var oldest sql.NullTime
	err := p.db.WithContext(ctx).
		Table("outbox_events").
		Select("MIN(created_at)").
		Where("status IN ?", []string{"PENDING", "PROCESSING", "FAILED"}).
		Scan(&oldest).Error

	if err != nil || !oldest.Valid {
		return 0, err
	}

	age := time.Since(oldest.Time)
	if age < 0 {
		age = 0
	}

	return age, nil
}

// Ensure GormInventoryHealthProvider implements InventoryHealthProvider
var _ InventoryHealthProvider = (*GormInventoryHealthProvider)(nil)
