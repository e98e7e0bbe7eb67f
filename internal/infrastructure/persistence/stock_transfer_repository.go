package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// GormStockTransferRepository implements stock.StockTransferRepository using GORM
type GormStockTransferRepository struct {
	db *gorm.DB
}

// NewGormStockTransferRepository creates a new GormStockTransferRepository
func NewGormStockTransferRepository(db *gorm.DB) *GormStockTransferRepository {
	return &GormStockTransferRepository{db: db}
}

// Create inserts a new transfer
func (r *GormStockTransferRepository) Create(ctx context.Context, t *stock.StockTransfer) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// SaveWithLock saves with optimistic locking on the transfer's version
func (r *GormStockTransferRepository) SaveWithLock(ctx context.Context, t *stock.StockTransfer) error {
	result := r.db.WithContext(ctx).
		Model(&stock.StockTransfer{}).
		Where("transfer_id = ? AND version = ?", t.TransferID, t.Version-1).
		Select("status", "in_transit_at", "actual_quantity_received", "completed_by",
			"completed_at", "cancellation_reason", "cancelled_at", "version").
		Updates(t)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Stock transfer was modified by another transaction")
	}
	return nil
}

// FindByID finds a transfer by its ID
func (r *GormStockTransferRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockTransfer, error) {
	var t stock.StockTransfer
	if err := r.db.WithContext(ctx).First(&t, "transfer_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Stock transfer not found: "+id.String())
		}
		return nil, err
	}
	return &t, nil
}

// List returns a page of transfers, optionally narrowed to one status
func (r *GormStockTransferRepository) List(ctx context.Context, status stock.TransferStatus, filter shared.Filter) (*shared.Paginated[stock.StockTransfer], error) {
	q := r.db.WithContext(ctx).Model(&stock.StockTransfer{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if sku, ok := filter.Filters["sku"].(string); ok && sku != "" {
		q = q.Where("sku = ?", sku)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, TransferSortFields, "initiated_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	q = q.Order(orderBy + " " + orderDir)

	page, pageSize := normalizePage(filter)
	q = q.Offset((page - 1) * pageSize).Limit(pageSize)

	var items []stock.StockTransfer
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// Ensure GormStockTransferRepository implements StockTransferRepository
var _ stock.StockTransferRepository = (*GormStockTransferRepository)(nil)
