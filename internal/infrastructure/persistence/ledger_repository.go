package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// GormLedgerRepository implements stock.LedgerRepository using GORM.
// The ledger is append-only: rows are written inside command transactions
// and only ever removed by the retention sweep.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append writes one audit entry
func (r *GormLedgerRepository) Append(ctx context.Context, entry *stock.InventoryLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Find returns a page of ledger entries matching the query
func (r *GormLedgerRepository) Find(ctx context.Context, query stock.LedgerQuery, filter shared.Filter) (*shared.Paginated[stock.InventoryLedgerEntry], error) {
	q := r.db.WithContext(ctx).Model(&stock.InventoryLedgerEntry{})
	q = applyLedgerQuery(q, query)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, LedgerSortFields, "timestamp")
	orderDir := ValidateSortOrder(filter.OrderDir)
	q = q.Order(orderBy + " " + orderDir)

	page, pageSize := normalizePage(filter)
	q = q.Offset((page - 1) * pageSize).Limit(pageSize)

	var items []stock.InventoryLedgerEntry
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// SumQuantityByType sums the signed quantity changes of one change type in
// a time window. Used by the health metrics to report movement volumes.
func (r *GormLedgerRepository) SumQuantityByType(ctx context.Context, changeType stock.ChangeType, from, to time.Time) (int64, error) {
	var result struct {
		Total int64
	}
	q := r.db.WithContext(ctx).
		Model(&stock.InventoryLedgerEntry{}).
		Select("COALESCE(SUM(quantity_change), 0) as total").
		Where("change_type = ?", changeType)
	if !from.IsZero() {
		q = q.Where("timestamp >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("timestamp < ?", to)
	}
	if err := q.Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Total, nil
}

// DistinctSkusSince lists SKUs with ledger activity since the given instant
func (r *GormLedgerRepository) DistinctSkusSince(ctx context.Context, since time.Time) ([]string, error) {
	var skus []string
	if err := r.db.WithContext(ctx).
		Model(&stock.InventoryLedgerEntry{}).
		Distinct("sku").
		Where("timestamp >= ?", since).
		Order("sku ASC").
		Pluck("sku", &skus).Error; err != nil {
		return nil, err
	}
	return skus, nil
}

// DeleteOlderThan removes entries older than the cutoff and reports how
// many rows went away. Called by the retention sweep.
func (r *GormLedgerRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&stock.InventoryLedgerEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// applyLedgerQuery narrows the search; zero fields are ignored
func applyLedgerQuery(q *gorm.DB, query stock.LedgerQuery) *gorm.DB {
	if query.Sku != "" {
		q = q.Where("sku = ?", query.Sku)
	}
	if query.ChangeType != "" {
		q = q.Where("change_type = ?", query.ChangeType)
	}
	if query.OperatorID != "" {
		q = q.Where("operator_id = ?", query.OperatorID)
	}
	if !query.From.IsZero() {
		q = q.Where("timestamp >= ?", query.From)
	}
	if !query.To.IsZero() {
		q = q.Where("timestamp < ?", query.To)
	}
	return q
}

// Ensure GormLedgerRepository implements LedgerRepository
var _ stock.LedgerRepository = (*GormLedgerRepository)(nil)
