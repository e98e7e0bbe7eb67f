package stock

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// TransferService drives the stock transfer lifecycle. Quantity bookkeeping
// rides on the ProductStock aggregate: units leave the source's books when
// the move goes in transit and arrive when it completes, so in-transit stock
// is on neither side's count and shrinkage surfaces as the difference.
type TransferService struct {
	commands  *CommandService
	transfers stock.StockTransferRepository
	logger    *zap.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(commands *CommandService, transfers stock.StockTransferRepository, logger *zap.Logger) *TransferService {
	return &TransferService{
		commands:  commands,
		transfers: transfers,
		logger:    logger,
	}
}

// InitiateTransfer opens a transfer between two locations. The stock record
// is only checked for existence here; nothing moves until MarkInTransit.
func (s *TransferService) InitiateTransfer(ctx context.Context, req InitiateTransferRequest) (*TransferResponse, error) {
	from, err := req.FromLocation.ToLocation()
	if err != nil {
		return nil, err
	}
	to, err := req.ToLocation.ToLocation()
	if err != nil {
		return nil, err
	}

	var response TransferResponse
	err = s.commands.runTracked(ctx, "transfer.initiate", func(repos TransactionalRepositories) ([]string, error) {
		if _, err := repos.StockRepo().FindBySku(ctx, req.Sku); err != nil {
			return nil, err
		}
		transfer, err := stock.NewStockTransfer(req.Sku, req.Quantity, from, to, req.InitiatedBy)
		if err != nil {
			return nil, err
		}
		if req.ContainerLPN != "" {
			container, err := stock.NewContainer(req.ContainerLPN, from)
			if err != nil {
				return nil, err
			}
			if err := container.Pack(req.Sku, req.Quantity); err != nil {
				return nil, err
			}
			if err := repos.ContainerRepo().Save(ctx, container); err != nil {
				return nil, err
			}
			if err := transfer.AttachContainer(req.ContainerLPN); err != nil {
				return nil, err
			}
		}
		if err := repos.TransferRepo().Create(ctx, transfer); err != nil {
			return nil, err
		}
		if err := repos.SaveEvents(ctx, transfer.GetDomainEvents()...); err != nil {
			return nil, err
		}
		transfer.ClearDomainEvents()
		response = ToTransferResponse(transfer)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// MarkInTransit records the stock leaving the source. The full planned
// quantity comes off on-hand; too little available stock rejects the move.
func (s *TransferService) MarkInTransit(ctx context.Context, transferID uuid.UUID) (*TransferResponse, error) {
	var response TransferResponse
	err := s.commands.runTracked(ctx, "transfer.mark_in_transit", func(repos TransactionalRepositories) ([]string, error) {
		transfer, err := repos.TransferRepo().FindByID(ctx, transferID)
		if err != nil {
			return nil, err
		}
		if err := transfer.MarkInTransit(); err != nil {
			return nil, err
		}
		ps, err := repos.StockRepo().FindBySku(ctx, transfer.Sku)
		if err != nil {
			return nil, err
		}
		if err := ps.AdjustQuantityOnHand(-transfer.Quantity, stock.ReasonTransferOut.String()); err != nil {
			return nil, err
		}
		if err := appendLedger(ctx, repos, transfer.Sku, -transfer.Quantity, stock.ChangeTypeAdjustmentNegative,
			transfer.TransferID.String(), stock.ReasonTransferOut.String(), transfer.InitiatedBy); err != nil {
			return nil, err
		}
		if _, err := persist(ctx, repos, ps, false); err != nil {
			return nil, err
		}
		if err := s.moveContainer(ctx, repos, transfer, containerShip); err != nil {
			return nil, err
		}
		if err := s.saveTransfer(ctx, repos, transfer); err != nil {
			return nil, err
		}
		response = ToTransferResponse(transfer)
		return []string{transfer.Sku}, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// CompleteTransfer books the received quantity onto the destination's
// on-hand count. Receiving less than planned leaves the difference as
// shrinkage on the transfer; receiving zero still completes it.
func (s *TransferService) CompleteTransfer(ctx context.Context, transferID uuid.UUID, req CompleteTransferRequest) (*TransferResponse, error) {
	var response TransferResponse
	err := s.commands.runTracked(ctx, "transfer.complete", func(repos TransactionalRepositories) ([]string, error) {
		transfer, err := repos.TransferRepo().FindByID(ctx, transferID)
		if err != nil {
			return nil, err
		}
		if err := transfer.Complete(req.ActualQuantity, req.CompletedBy); err != nil {
			return nil, err
		}
		var touched []string
		if req.ActualQuantity > 0 {
			ps, err := repos.StockRepo().FindBySku(ctx, transfer.Sku)
			if err != nil {
				return nil, err
			}
			if err := ps.AdjustQuantityOnHand(req.ActualQuantity, stock.ReasonTransferIn.String()); err != nil {
				return nil, err
			}
			if err := appendLedger(ctx, repos, transfer.Sku, req.ActualQuantity, stock.ChangeTypeAdjustmentPositive,
				transfer.TransferID.String(), stock.ReasonTransferIn.String(), req.CompletedBy); err != nil {
				return nil, err
			}
			if _, err := persist(ctx, repos, ps, false); err != nil {
				return nil, err
			}
			touched = []string{transfer.Sku}
		}
		if err := s.moveContainer(ctx, repos, transfer, containerClose); err != nil {
			return nil, err
		}
		if err := s.saveTransfer(ctx, repos, transfer); err != nil {
			return nil, err
		}
		if shrinkage := transfer.Shrinkage(); shrinkage > 0 {
			s.logger.Warn("transfer completed with shrinkage",
				zap.String("transfer_id", transfer.TransferID.String()),
				zap.String("sku", transfer.Sku),
				zap.Int64("planned", transfer.Quantity),
				zap.Int64("received", req.ActualQuantity))
		}
		response = ToTransferResponse(transfer)
		return touched, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// CancelTransfer aborts a transfer. A move already in transit puts its full
// quantity back on the source's books; one still initiated touches nothing.
func (s *TransferService) CancelTransfer(ctx context.Context, transferID uuid.UUID, req CancelTransferRequest) (*TransferResponse, error) {
	var response TransferResponse
	err := s.commands.runTracked(ctx, "transfer.cancel", func(repos TransactionalRepositories) ([]string, error) {
		transfer, err := repos.TransferRepo().FindByID(ctx, transferID)
		if err != nil {
			return nil, err
		}
		wasInTransit := transfer.Status == stock.TransferStatusInTransit
		if err := transfer.Cancel(req.Reason); err != nil {
			return nil, err
		}
		var touched []string
		if wasInTransit {
			ps, err := repos.StockRepo().FindBySku(ctx, transfer.Sku)
			if err != nil {
				return nil, err
			}
			if err := ps.AdjustQuantityOnHand(transfer.Quantity, stock.ReasonReturnToStock.String()); err != nil {
				return nil, err
			}
			if err := appendLedger(ctx, repos, transfer.Sku, transfer.Quantity, stock.ChangeTypeAdjustmentPositive,
				transfer.TransferID.String(), stock.ReasonReturnToStock.String(), transfer.InitiatedBy); err != nil {
				return nil, err
			}
			if _, err := persist(ctx, repos, ps, false); err != nil {
				return nil, err
			}
			touched = []string{transfer.Sku}
		}
		if err := s.moveContainer(ctx, repos, transfer, containerRelease); err != nil {
			return nil, err
		}
		if err := s.saveTransfer(ctx, repos, transfer); err != nil {
			return nil, err
		}
		response = ToTransferResponse(transfer)
		return touched, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// GetTransfer returns one transfer by its identifier
func (s *TransferService) GetTransfer(ctx context.Context, transferID uuid.UUID) (*TransferResponse, error) {
	transfer, err := s.transfers.FindByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	response := ToTransferResponse(transfer)
	return &response, nil
}

// ListTransfers pages through transfers, optionally by status
func (s *TransferService) ListTransfers(ctx context.Context, filter TransferListFilter) (*shared.Paginated[TransferResponse], error) {
	page, err := s.transfers.List(ctx, stock.TransferStatus(filter.Status), shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	})
	if err != nil {
		return nil, err
	}
	result := shared.NewPaginated(ToTransferResponses(page.Items), page.Total, page.Page, page.PageSize)
	return &result, nil
}

type containerMove int

const (
	containerShip containerMove = iota
	containerClose
	containerRelease
)

// moveContainer advances the license plate riding on the transfer, if any.
// Shipping follows MarkInTransit, closing follows Complete (the plate
// settles at the destination), releasing follows Cancel (it settles back at
// the source).
func (s *TransferService) moveContainer(ctx context.Context, repos TransactionalRepositories, transfer *stock.StockTransfer, move containerMove) error {
	if transfer.ContainerLPN == "" {
		return nil
	}
	container, err := repos.ContainerRepo().FindByLPN(ctx, transfer.ContainerLPN)
	if err != nil {
		return err
	}
	switch move {
	case containerShip:
		err = container.Ship()
	case containerClose:
		err = container.Close(transfer.ToLocation)
	case containerRelease:
		err = container.Close(transfer.FromLocation)
	}
	if err != nil {
		return err
	}
	return repos.ContainerRepo().Save(ctx, container)
}

// saveTransfer writes the transfer under its version check and flushes its
// pending events as outbox rows.
func (s *TransferService) saveTransfer(ctx context.Context, repos TransactionalRepositories, transfer *stock.StockTransfer) error {
	if err := repos.TransferRepo().SaveWithLock(ctx, transfer); err != nil {
		return err
	}
	if err := repos.SaveEvents(ctx, transfer.GetDomainEvents()...); err != nil {
		return err
	}
	transfer.ClearDomainEvents()
	return nil
}
