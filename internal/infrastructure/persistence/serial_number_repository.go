package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// GormSerialNumberRepository implements stock.SerialNumberRepository using GORM
type GormSerialNumberRepository struct {
	db *gorm.DB
}

// NewGormSerialNumberRepository creates a new GormSerialNumberRepository
func NewGormSerialNumberRepository(db *gorm.DB) *GormSerialNumberRepository {
	return &GormSerialNumberRepository{db: db}
}

// Create registers a serialized unit
func (r *GormSerialNumberRepository) Create(ctx context.Context, sn *stock.SerialNumber) error {
	if err := r.db.WithContext(ctx).Create(sn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Serial number already registered: "+sn.Serial)
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking on the serial's version
func (r *GormSerialNumberRepository) SaveWithLock(ctx context.Context, sn *stock.SerialNumber) error {
	result := r.db.WithContext(ctx).
		Model(&stock.SerialNumber{}).
		Where("serial = ? AND version = ?", sn.Serial, sn.Version-1).
		Select("status", "order_id", "allocated_at", "shipped_at", "version").
		Updates(sn)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Serial number was modified by another transaction")
	}
	return nil
}

// FindBySerial finds a serialized unit by its serial number
func (r *GormSerialNumberRepository) FindBySerial(ctx context.Context, serial string) (*stock.SerialNumber, error) {
	var sn stock.SerialNumber
	if err := r.db.WithContext(ctx).First(&sn, "serial = ?", serial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Serial number not found: "+serial)
		}
		return nil, err
	}
	return &sn, nil
}

// FindBySku returns a page of a SKU's serialized units, optionally narrowed
// to one status
func (r *GormSerialNumberRepository) FindBySku(ctx context.Context, sku string, status stock.SerialStatus, filter shared.Filter) (*shared.Paginated[stock.SerialNumber], error) {
	q := r.db.WithContext(ctx).
		Model(&stock.SerialNumber{}).
		Where("sku = ?", sku)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	orderBy := ValidateSortField(filter.OrderBy, SerialNumberSortFields, "received_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	q = q.Order(orderBy + " " + orderDir)

	page, pageSize := normalizePage(filter)
	q = q.Offset((page - 1) * pageSize).Limit(pageSize)

	var items []stock.SerialNumber
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}

	result := shared.NewPaginated(items, total, page, pageSize)
	return &result, nil
}

// Ensure GormSerialNumberRepository implements SerialNumberRepository
var _ stock.SerialNumberRepository = (*GormSerialNumberRepository)(nil)
