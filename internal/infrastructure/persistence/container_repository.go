package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// GormContainerRepository implements stock.ContainerRepository using GORM
type GormContainerRepository struct {
	db *gorm.DB
}

// NewGormContainerRepository creates a new GormContainerRepository
func NewGormContainerRepository(db *gorm.DB) *GormContainerRepository {
	return &GormContainerRepository{db: db}
}

// Save upserts a container keyed by LPN. Containers are plain movement
// records, so last write wins.
func (r *GormContainerRepository) Save(ctx context.Context, c *stock.Container) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lpn"}},
			DoUpdates: clause.AssignmentColumns([]string{"sku", "quantity", "location", "status", "updated_at"}),
		}).
		Create(c).Error
}

// FindByLPN finds a container by its license plate number
func (r *GormContainerRepository) FindByLPN(ctx context.Context, lpn string) (*stock.Container, error) {
	var c stock.Container
	if err := r.db.WithContext(ctx).First(&c, "lpn = ?", lpn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Container not found: "+lpn)
		}
		return nil, err
	}
	return &c, nil
}

// List returns a page of containers
func (r *GormContainerRepository) List(ctx context.Context, filter shared.Filter) (*shared.Paginated[stock.Container], error) {
	q := r.db.WithContext(ctx).Model(&stock.Container{})
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		q = q.Where("status = ?", status)
	}
	if sku, ok := filter.Filters["sku"].(string); ok && sku != "" {
		q = q.Where("sku = ?", sku)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, ContainerSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	q = q.Order(orderBy + " " + orderDir)

	page, pageSize := normalizePage(filter)
	q = q.Offset((page - 1) * pageSize).Limit(pageSize)

	var items []stock.Container
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// Ensure GormContainerRepository implements ContainerRepository
var _ stock.ContainerRepository = (*GormContainerRepository)(nil)
