package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// productStockColumns are the mutable columns written on every versioned
// save. Selecting them explicitly makes GORM write zero values too, which
// matters when a bucket or the allocation drops back to zero.
var productStockColumns = []string{
	"quantity_on_hand",
	"quantity_allocated",
	"status_quantities",
	"holds",
	"lot_batches",
	"classification",
	"valuation",
	"version",
	"last_updated",
}

// GormProductStockRepository implements stock.ProductStockRepository using GORM
type GormProductStockRepository struct {
	db *gorm.DB
}

// NewGormProductStockRepository creates a new GormProductStockRepository
func NewGormProductStockRepository(db *gorm.DB) *GormProductStockRepository {
	return &GormProductStockRepository{db: db}
}

// FindBySku finds a product stock by its SKU
func (r *GormProductStockRepository) FindBySku(ctx context.Context, sku string) (*stock.ProductStock, error) {
	var ps stock.ProductStock
	if err := r.db.WithContext(ctx).First(&ps, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Product stock not found for SKU: "+sku)
		}
		return nil, err
	}
	return &ps, nil
}

// FindBySkus finds multiple product stocks by their SKUs. SKUs without a
// stock record are simply absent from the result.
func (r *GormProductStockRepository) FindBySkus(ctx context.Context, skus []string) ([]*stock.ProductStock, error) {
	if len(skus) == 0 {
		return []*stock.ProductStock{}, nil
	}

	var items []*stock.ProductStock
	if err := r.db.WithContext(ctx).
		Where("sku IN ?", skus).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// List returns a page of product stocks
func (r *GormProductStockRepository) List(ctx context.Context, filter shared.Filter) (*shared.Paginated[stock.ProductStock], error) {
	query := r.db.WithContext(ctx).Model(&stock.ProductStock{})
	query = r.applyFilters(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, ProductStockSortFields, "sku")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir)

	page, pageSize := normalizePage(filter)
	query = query.Offset((page - 1) * pageSize).Limit(pageSize)

	var items []stock.ProductStock
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// Create inserts a new product stock record
func (r *GormProductStockRepository) Create(ctx context.Context, ps *stock.ProductStock) error {
	if err := r.db.WithContext(ctx).Create(ps).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Product stock already exists for SKU: "+ps.Sku)
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking. The aggregate incremented its
// version in memory, so the row must still carry the previous version; zero
// rows affected means another writer committed first.
func (r *GormProductStockRepository) SaveWithLock(ctx context.Context, ps *stock.ProductStock) error {
	result := r.db.WithContext(ctx).
		Model(&stock.ProductStock{}).
		Where("sku = ? AND version = ?", ps.Sku, ps.Version-1).
		Select(productStockColumns).
		Updates(ps)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Product stock was modified by another transaction")
	}
	return nil
}

// CountSkus counts the distinct SKUs under management
func (r *GormProductStockRepository) CountSkus(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&stock.ProductStock{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumOnHand totals the on-hand quantity across all SKUs. Feeds the
// turnover denominator in the health metrics.
func (r *GormProductStockRepository) SumOnHand(ctx context.Context) (int64, error) {
	var result struct {
		Total int64
	}
	if err := r.db.WithContext(ctx).
		Model(&stock.ProductStock{}).
		Select("COALESCE(SUM(quantity_on_hand), 0) as total").
		Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Total, nil
}

// FindOutOfStockSkus lists SKUs whose sellable position is exhausted.
// Holds live inside the aggregate document, so this uses the on-hand minus
// allocated position; per-SKU ATP (which also subtracts holds) stays exact
// on the single-SKU read path.
func (r *GormProductStockRepository) FindOutOfStockSkus(ctx context.Context) ([]string, error) {
	var skus []string
	if err := r.db.WithContext(ctx).
		Model(&stock.ProductStock{}).
		Where("quantity_on_hand - quantity_allocated <= 0").
		Order("sku ASC").
		Pluck("sku", &skus).Error; err != nil {
		return nil, err
	}
	return skus, nil
}

// applyFilters applies list filters to the query
func (r *GormProductStockRepository) applyFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "sku_prefix":
			if prefix, ok := value.(string); ok && prefix != "" {
				query = query.Where("sku LIKE ?", prefix+"%")
			}
		case "has_stock":
			if value == true {
				query = query.Where("quantity_on_hand > 0")
			}
		case "out_of_stock":
			if value == true {
				query = query.Where("quantity_on_hand - quantity_allocated <= 0")
			}
		case "allocated":
			if value == true {
				query = query.Where("quantity_allocated > 0")
			}
		}
	}
	return query
}

// normalizePage clamps pagination to sane bounds
func normalizePage(filter shared.Filter) (page, pageSize int) {
	page = filter.Page
	if page < 1 {
		page = 1
	}
	pageSize = filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}

// Ensure GormProductStockRepository implements ProductStockRepository
var _ stock.ProductStockRepository = (*GormProductStockRepository)(nil)
