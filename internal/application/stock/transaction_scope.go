package stock

import (
	"context"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// TransactionScope provides transactional access to stock repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the stock repositories within
// a transaction. All repositories returned share the same underlying
// database transaction.
//
// Aggregate boundary notes:
//   - StockRepo: repository for the ProductStock aggregate root. Holds, lot
//     batches and status buckets live inside the aggregate document and are
//     persisted with it.
//   - LedgerRepo: append-only audit trail. Every quantity change writes a
//     ledger entry in the same transaction as the aggregate save.
//   - SnapshotRepo: point-in-time captures. A snapshot row and its created
//     event commit together.
//   - SerialRepo, TransferRepo, AssemblyRepo, ContainerRepo: secondary
//     aggregates that commit alongside the stock rows they touch.
//
// SaveEvents writes the pending domain events as outbox rows bound to the
// same transaction, which is what makes publishing at-least-once safe: an
// aggregate change and its events are either both durable or neither is.
type TransactionalRepositories interface {
	StockRepo() stock.ProductStockRepository
	LedgerRepo() stock.LedgerRepository
	SnapshotRepo() stock.SnapshotRepository
	SerialRepo() stock.SerialNumberRepository
	TransferRepo() stock.StockTransferRepository
	AssemblyRepo() stock.AssemblyOrderRepository
	ContainerRepo() stock.ContainerRepository
	SaveEvents(ctx context.Context, events ...shared.DomainEvent) error
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing with in-memory repositories.
type NoOpTransactionScope struct {
	stockRepo     stock.ProductStockRepository
	ledgerRepo    stock.LedgerRepository
	snapshotRepo  stock.SnapshotRepository
	serialRepo    stock.SerialNumberRepository
	transferRepo  stock.StockTransferRepository
	assemblyRepo  stock.AssemblyOrderRepository
	containerRepo stock.ContainerRepository
	eventSink     func(ctx context.Context, events ...shared.DomainEvent) error
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given
// repositories. eventSink may be nil, in which case events are discarded.
func NewNoOpTransactionScope(
	stockRepo stock.ProductStockRepository,
	ledgerRepo stock.LedgerRepository,
	snapshotRepo stock.SnapshotRepository,
	serialRepo stock.SerialNumberRepository,
	transferRepo stock.StockTransferRepository,
	assemblyRepo stock.AssemblyOrderRepository,
	containerRepo stock.ContainerRepository,
	eventSink func(ctx context.Context, events ...shared.DomainEvent) error,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		stockRepo:     stockRepo,
		ledgerRepo:    ledgerRepo,
		snapshotRepo:  snapshotRepo,
		serialRepo:    serialRepo,
		transferRepo:  transferRepo,
		assemblyRepo:  assemblyRepo,
		containerRepo: containerRepo,
		eventSink:     eventSink,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// StockRepo returns the product stock repository.
func (s *NoOpTransactionScope) StockRepo() stock.ProductStockRepository {
	return s.stockRepo
}

// LedgerRepo returns the ledger repository.
func (s *NoOpTransactionScope) LedgerRepo() stock.LedgerRepository {
	return s.ledgerRepo
}

// SnapshotRepo returns the snapshot repository.
func (s *NoOpTransactionScope) SnapshotRepo() stock.SnapshotRepository {
	return s.snapshotRepo
}

// SerialRepo returns the serial number repository.
func (s *NoOpTransactionScope) SerialRepo() stock.SerialNumberRepository {
	return s.serialRepo
}

// TransferRepo returns the stock transfer repository.
func (s *NoOpTransactionScope) TransferRepo() stock.StockTransferRepository {
	return s.transferRepo
}

// AssemblyRepo returns the assembly order repository.
func (s *NoOpTransactionScope) AssemblyRepo() stock.AssemblyOrderRepository {
	return s.assemblyRepo
}

// ContainerRepo returns the container repository.
func (s *NoOpTransactionScope) ContainerRepo() stock.ContainerRepository {
	return s.containerRepo
}

// SaveEvents forwards events to the configured sink, if any.
func (s *NoOpTransactionScope) SaveEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if s.eventSink == nil || len(events) == 0 {
		return nil
	}
	return s.eventSink(ctx, events...)
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
