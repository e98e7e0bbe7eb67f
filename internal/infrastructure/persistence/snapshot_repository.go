package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// GormSnapshotRepository implements stock.SnapshotRepository using GORM
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

// Save stores an immutable snapshot
func (r *GormSnapshotRepository) Save(ctx context.Context, snapshot *stock.InventorySnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// FindByID finds a snapshot by its ID
func (r *GormSnapshotRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.InventorySnapshot, error) {
	var snap stock.InventorySnapshot
	if err := r.db.WithContext(ctx).First(&snap, "snapshot_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Snapshot not found: "+id.String())
		}
		return nil, err
	}
	return &snap, nil
}

// FindLatestBefore finds the most recent snapshot of a SKU at or before t.
// Returns nil, nil when no snapshot predates t; replay then starts from the
// empty baseline.
func (r *GormSnapshotRepository) FindLatestBefore(ctx context.Context, sku string, t time.Time) (*stock.InventorySnapshot, error) {
	var snap stock.InventorySnapshot
	err := r.db.WithContext(ctx).
		Where("sku = ? AND snapshot_timestamp <= ?", sku, t).
		Order("snapshot_timestamp DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// FindBySku returns a page of a SKU's snapshots
func (r *GormSnapshotRepository) FindBySku(ctx context.Context, sku string, filter shared.Filter) (*shared.Paginated[stock.InventorySnapshot], error) {
	q := r.db.WithContext(ctx).
		Model(&stock.InventorySnapshot{}).
		Where("sku = ?", sku)

	if t, ok := filter.Filters["snapshot_type"]; ok {
		q = q.Where("snapshot_type = ?", t)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, SnapshotSortFields, "snapshot_timestamp")
	orderDir := ValidateSortOrder(filter.OrderDir)
	q = q.Order(orderBy + " " + orderDir)

	page, pageSize := normalizePage(filter)
	q = q.Offset((page - 1) * pageSize).Limit(pageSize)

	var items []stock.InventorySnapshot
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// DeleteOlderThan removes snapshots older than the cutoff, preserving the
// types listed in keepTypes (year-end snapshots are normally kept forever).
func (r *GormSnapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, keepTypes []stock.SnapshotType) (int64, error) {
	q := r.db.WithContext(ctx).Where("snapshot_timestamp < ?", cutoff)
	if len(keepTypes) > 0 {
		q = q.Where("snapshot_type NOT IN ?", keepTypes)
	}
	result := q.Delete(&stock.InventorySnapshot{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormSnapshotRepository implements SnapshotRepository
var _ stock.SnapshotRepository = (*GormSnapshotRepository)(nil)
