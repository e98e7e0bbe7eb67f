package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// GormAssemblyOrderRepository implements stock.AssemblyOrderRepository using GORM
type GormAssemblyOrderRepository struct {
	db *gorm.DB
}

// NewGormAssemblyOrderRepository creates a new GormAssemblyOrderRepository
func NewGormAssemblyOrderRepository(db *gorm.DB) *GormAssemblyOrderRepository {
	return &GormAssemblyOrderRepository{db: db}
}

// Create inserts a new assembly order
func (r *GormAssemblyOrderRepository) Create(ctx context.Context, ao *stock.AssemblyOrder) error {
	return r.db.WithContext(ctx).Create(ao).Error
}

// SaveWithLock saves with optimistic locking on the order's version
func (r *GormAssemblyOrderRepository) SaveWithLock(ctx context.Context, ao *stock.AssemblyOrder) error {
	result := r.db.WithContext(ctx).
		Model(&stock.AssemblyOrder{}).
		Where("order_id = ? AND version = ?", ao.OrderID, ao.Version-1).
		Select("actual_quantity", "components", "status", "started_at",
			"completed_at", "cancelled_at", "version").
		Updates(ao)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Assembly order was modified by another transaction")
	}
	return nil
}

// FindByID finds an assembly order by its ID
func (r *GormAssemblyOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.AssemblyOrder, error) {
	var ao stock.AssemblyOrder
	if err := r.db.WithContext(ctx).First(&ao, "order_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Assembly order not found: "+id.String())
		}
		return nil, err
	}
	return &ao, nil
}

// List returns a page of assembly orders, optionally narrowed to one status
func (r *GormAssemblyOrderRepository) List(ctx context.Context, status stock.AssemblyStatus, filter shared.Filter) (*shared.Paginated[stock.AssemblyOrder], error) {
	q := r.db.WithContext(ctx).Model(&stock.AssemblyOrder{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if kitSku, ok := filter.Filters["kit_sku"].(string); ok && kitSku != "" {
		q = q.Where("kit_sku = ?", kitSku)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, AssemblySortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	q = q.Order(orderBy + " " + orderDir)

	page, pageSize := normalizePage(filter)
	q = q.Offset((page - 1) * pageSize).Limit(pageSize)

	var items []stock.AssemblyOrder
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// Ensure GormAssemblyOrderRepository implements AssemblyOrderRepository
var _ stock.AssemblyOrderRepository = (*GormAssemblyOrderRepository)(nil)
