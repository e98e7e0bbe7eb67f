package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paklog/inventory-service/internal/domain/shared"
)

// ProductStockRepository is the persistence port for the stock aggregate.
// Writes are versioned: SaveWithLock compares the stored version against
// the aggregate's previous version and fails with an OPTIMISTIC_LOCK_FAILED
// domain error when another writer got there first. FindBySku returns a
// PRODUCT_STOCK_NOT_FOUND domain error for unknown SKUs.
type ProductStockRepository interface {
	FindBySku(ctx context.Context, sku string) (*ProductStock, error)
	FindBySkus(ctx context.Context, skus []string) ([]*ProductStock, error)
	List(ctx context.Context, filter shared.Filter) (*shared.Paginated[ProductStock], error)
	Create(ctx context.Context, ps *ProductStock) error
	SaveWithLock(ctx context.Context, ps *ProductStock) error
	CountSkus(ctx context.Context) (int64, error)
	SumOnHand(ctx context.Context) (int64, error)
	FindOutOfStockSkus(ctx context.Context) ([]string, error)
}

// LedgerQuery narrows a ledger search. Zero fields are ignored.
type LedgerQuery struct {
	Sku        string
	ChangeType ChangeType
	OperatorID string
	From       time.Time
	To         time.Time
}

// LedgerRepository is the persistence port for audit entries. Appends
// happen inside the command transaction; reads back the audit trail and
// the aggregate sums behind the health metrics.
type LedgerRepository interface {
	Append(ctx context.Context, entry *InventoryLedgerEntry) error
	Find(ctx context.Context, query LedgerQuery, filter shared.Filter) (*shared.Paginated[InventoryLedgerEntry], error)
	SumQuantityByType(ctx context.Context, changeType ChangeType, from, to time.Time) (int64, error)
	DistinctSkusSince(ctx context.Context, since time.Time) ([]string, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotRepository stores immutable point-in-time snapshots
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *InventorySnapshot) error
	FindByID(ctx context.Context, id uuid.UUID) (*InventorySnapshot, error)
	FindLatestBefore(ctx context.Context, sku string, t time.Time) (*InventorySnapshot, error)
	FindBySku(ctx context.Context, sku string, filter shared.Filter) (*shared.Paginated[InventorySnapshot], error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, keepTypes []SnapshotType) (int64, error)
}

// SerialNumberRepository is the persistence port for serialized units
type SerialNumberRepository interface {
	Create(ctx context.Context, sn *SerialNumber) error
	SaveWithLock(ctx context.Context, sn *SerialNumber) error
	FindBySerial(ctx context.Context, serial string) (*SerialNumber, error)
	FindBySku(ctx context.Context, sku string, status SerialStatus, filter shared.Filter) (*shared.Paginated[SerialNumber], error)
}

// StockTransferRepository is the persistence port for transfers
type StockTransferRepository interface {
	Create(ctx context.Context, t *StockTransfer) error
	SaveWithLock(ctx context.Context, t *StockTransfer) error
	FindByID(ctx context.Context, id uuid.UUID) (*StockTransfer, error)
	List(ctx context.Context, status TransferStatus, filter shared.Filter) (*shared.Paginated[StockTransfer], error)
}

// AssemblyOrderRepository is the persistence port for kit builds
type AssemblyOrderRepository interface {
	Create(ctx context.Context, ao *AssemblyOrder) error
	SaveWithLock(ctx context.Context, ao *AssemblyOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*AssemblyOrder, error)
	List(ctx context.Context, status AssemblyStatus, filter shared.Filter) (*shared.Paginated[AssemblyOrder], error)
}

// ContainerRepository is the persistence port for license plates
type ContainerRepository interface {
	Save(ctx context.Context, c *Container) error
	FindByLPN(ctx context.Context, lpn string) (*Container, error)
	List(ctx context.Context, filter shared.Filter) (*shared.Paginated[Container], error)
}
