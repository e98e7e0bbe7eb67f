package persistence

import (
	"context"

	"gorm.io/gorm"

	appstock "github.com/paklog/inventory-service/internal/application/stock"
	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// GormTransactionScope implements appstock.TransactionScope using GORM
// transactions. It provides atomic execution of multiple repository
// operations plus the transactional outbox write.
type GormTransactionScope struct {
	db    *gorm.DB
	saver shared.OutboxEventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope. saver may be
// nil when the caller never emits events (e.g. migration tooling).
func NewGormTransactionScope(db *gorm.DB, saver shared.OutboxEventSaver) *GormTransactionScope {
	return &GormTransactionScope{db: db, saver: saver}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx, saver: s.saver}
		return fn(repos)
	})
}

// gormTransactionalRepositories binds the repositories and the outbox saver
// to one in-flight transaction.
type gormTransactionalRepositories struct {
	tx    *gorm.DB
	saver shared.OutboxEventSaver
}

// StockRepo returns the product stock repository scoped to the current transaction.
func (r *gormTransactionalRepositories) StockRepo() stock.ProductStockRepository {
	return NewGormProductStockRepository(r.tx)
}

// LedgerRepo returns the ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) LedgerRepo() stock.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

// SnapshotRepo returns the snapshot repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SnapshotRepo() stock.SnapshotRepository {
	return NewGormSnapshotRepository(r.tx)
}

// SerialRepo returns the serial number repository scoped to the current transaction.
func (r *gormTransactionalRepositories) SerialRepo() stock.SerialNumberRepository {
	return NewGormSerialNumberRepository(r.tx)
}

// TransferRepo returns the stock transfer repository scoped to the current transaction.
func (r *gormTransactionalRepositories) TransferRepo() stock.StockTransferRepository {
	return NewGormStockTransferRepository(r.tx)
}

// AssemblyRepo returns the assembly order repository scoped to the current transaction.
func (r *gormTransactionalRepositories) AssemblyRepo() stock.AssemblyOrderRepository {
	return NewGormAssemblyOrderRepository(r.tx)
}

// ContainerRepo returns the container repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ContainerRepo() stock.ContainerRepository {
	return NewGormContainerRepository(r.tx)
}

// SaveEvents writes the events as outbox rows inside the current transaction.
func (r *gormTransactionalRepositories) SaveEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if r.saver == nil || len(events) == 0 {
		return nil
	}
	return r.saver.SaveEvents(ctx, r.tx, events...)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appstock.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appstock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
