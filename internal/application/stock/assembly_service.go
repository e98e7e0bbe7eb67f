package stock

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paklog/inventory-service/internal/domain/shared"
	"github.com/paklog/inventory-service/internal/domain/stock"
)

// AssemblyService drives kit builds: component stock is reserved while the
// order is open, consumed when the build completes, and the finished kit SKU
// is received in the same transaction. A kit SKU never built before gets its
// stock record created on first completion.
type AssemblyService struct {
	commands   *CommandService
	assemblies stock.AssemblyOrderRepository
	logger     *zap.Logger
}

// NewAssemblyService creates a new AssemblyService
func NewAssemblyService(commands *CommandService, assemblies stock.AssemblyOrderRepository, logger *zap.Logger) *AssemblyService {
	return &AssemblyService{
		commands:   commands,
		assemblies: assemblies,
		logger:     logger,
	}
}

// CreateAssemblyOrder plans a kit build. Nothing is reserved yet; component
// SKUs are only checked once allocation runs.
func (s *AssemblyService) CreateAssemblyOrder(ctx context.Context, req CreateAssemblyOrderRequest) (*AssemblyOrderResponse, error) {
	components := make([]stock.AssemblyComponent, len(req.Components))
	for i, c := range req.Components {
		components[i] = stock.AssemblyComponent{
			Sku:              c.Sku,
			RequiredQuantity: c.RequiredQuantity,
		}
	}

	var response AssemblyOrderResponse
	err := s.commands.runTracked(ctx, "assembly.create", func(repos TransactionalRepositories) ([]string, error) {
		order, err := stock.NewAssemblyOrder(req.KitSku, req.PlannedQuantity, components, req.CreatedBy)
		if err != nil {
			return nil, err
		}
		if err := repos.AssemblyRepo().Create(ctx, order); err != nil {
			return nil, err
		}
		response = ToAssemblyOrderResponse(order)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// AllocateComponents reserves the outstanding component quantities in one
// transaction. Either every component gets its reservation or none does, so
// a short component never strands reservations on the others.
func (s *AssemblyService) AllocateComponents(ctx context.Context, orderID uuid.UUID) (*AssemblyOrderResponse, error) {
	var response AssemblyOrderResponse
	err := s.commands.runTracked(ctx, "assembly.allocate_components", func(repos TransactionalRepositories) ([]string, error) {
		order, err := repos.AssemblyRepo().FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		var touched []string
		var booked []stock.ComponentAllocation
		for _, c := range order.Components {
			remaining := c.RequiredQuantity - c.AllocatedQuantity
			if remaining <= 0 {
				continue
			}
			ps, err := repos.StockRepo().FindBySku(ctx, c.Sku)
			if err != nil {
				return nil, err
			}
			if err := ps.Allocate(remaining); err != nil {
				return nil, err
			}
			if err := appendLedger(ctx, repos, c.Sku, remaining, stock.ChangeTypeAllocation,
				order.OrderID.String(), stock.ChangeReasonAllocation, order.CreatedBy); err != nil {
				return nil, err
			}
			if _, err := persist(ctx, repos, ps, false); err != nil {
				return nil, err
			}
			booked = append(booked, stock.ComponentAllocation{Sku: c.Sku, Quantity: remaining})
			touched = append(touched, c.Sku)
		}
		// An order with nothing outstanding leaves the record untouched, so
		// re-running the allocation is a harmless no-op.
		if len(booked) > 0 {
			if err := order.RecordAllocations(booked); err != nil {
				return nil, err
			}
			if err := s.saveOrder(ctx, repos, order); err != nil {
				return nil, err
			}
		}
		response = ToAssemblyOrderResponse(order)
		return touched, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// StartAssembly moves a fully allocated order onto the floor
func (s *AssemblyService) StartAssembly(ctx context.Context, orderID uuid.UUID) (*AssemblyOrderResponse, error) {
	var response AssemblyOrderResponse
	err := s.commands.runTracked(ctx, "assembly.start", func(repos TransactionalRepositories) ([]string, error) {
		order, err := repos.AssemblyRepo().FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if err := order.Start(); err != nil {
			return nil, err
		}
		if err := s.saveOrder(ctx, repos, order); err != nil {
			return nil, err
		}
		response = ToAssemblyOrderResponse(order)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// CompleteAssembly consumes the reserved components and receives the built
// kits, all in one transaction. Components are consumed in full even when
// fewer kits than planned came out; the loss is scrap, not free stock.
// Building zero kits still burns the components.
func (s *AssemblyService) CompleteAssembly(ctx context.Context, orderID uuid.UUID, req CompleteAssemblyRequest) (*AssemblyOrderResponse, error) {
	var response AssemblyOrderResponse
	err := s.commands.runTracked(ctx, "assembly.complete", func(repos TransactionalRepositories) ([]string, error) {
		order, err := repos.AssemblyRepo().FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if err := order.Complete(req.ActualQuantity); err != nil {
			return nil, err
		}
		var touched []string
		for _, c := range order.Components {
			ps, err := repos.StockRepo().FindBySku(ctx, c.Sku)
			if err != nil {
				return nil, err
			}
			if err := ps.ProcessPick(c.AllocatedQuantity); err != nil {
				return nil, err
			}
			if err := appendLedger(ctx, repos, c.Sku, -c.AllocatedQuantity, stock.ChangeTypePick,
				order.OrderID.String(), stock.ReasonProductionComplete.String(), order.CreatedBy); err != nil {
				return nil, err
			}
			if _, err := persist(ctx, repos, ps, false); err != nil {
				return nil, err
			}
			touched = append(touched, c.Sku)
		}
		if req.ActualQuantity > 0 {
			kit, created, err := loadForUpdate(ctx, repos, order.KitSku, true)
			if err != nil {
				return nil, err
			}
			if err := kit.ReceiveStock(req.ActualQuantity); err != nil {
				return nil, err
			}
			if err := appendLedger(ctx, repos, order.KitSku, req.ActualQuantity, stock.ChangeTypeReceipt,
				order.OrderID.String(), stock.ReasonProductionComplete.String(), order.CreatedBy); err != nil {
				return nil, err
			}
			if _, err := persist(ctx, repos, kit, created); err != nil {
				return nil, err
			}
			touched = append(touched, order.KitSku)
		}
		if err := s.saveOrder(ctx, repos, order); err != nil {
			return nil, err
		}
		if req.ActualQuantity < order.PlannedQuantity {
			s.logger.Warn("assembly completed short",
				zap.String("order_id", order.OrderID.String()),
				zap.String("kit_sku", order.KitSku),
				zap.Int64("planned", order.PlannedQuantity),
				zap.Int64("built", req.ActualQuantity))
		}
		response = ToAssemblyOrderResponse(order)
		return touched, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// CancelAssembly aborts the build and releases any component reservations
func (s *AssemblyService) CancelAssembly(ctx context.Context, orderID uuid.UUID) (*AssemblyOrderResponse, error) {
	var response AssemblyOrderResponse
	err := s.commands.runTracked(ctx, "assembly.cancel", func(repos TransactionalRepositories) ([]string, error) {
		order, err := repos.AssemblyRepo().FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if err := order.Cancel(); err != nil {
			return nil, err
		}
		var touched []string
		for _, c := range order.Components {
			if c.AllocatedQuantity <= 0 {
				continue
			}
			ps, err := repos.StockRepo().FindBySku(ctx, c.Sku)
			if err != nil {
				return nil, err
			}
			if err := ps.Deallocate(c.AllocatedQuantity); err != nil {
				return nil, err
			}
			if err := appendLedger(ctx, repos, c.Sku, -c.AllocatedQuantity, stock.ChangeTypeDeallocation,
				order.OrderID.String(), stock.ChangeReasonDeallocation, order.CreatedBy); err != nil {
				return nil, err
			}
			if _, err := persist(ctx, repos, ps, false); err != nil {
				return nil, err
			}
			touched = append(touched, c.Sku)
		}
		if err := s.saveOrder(ctx, repos, order); err != nil {
			return nil, err
		}
		response = ToAssemblyOrderResponse(order)
		return touched, nil
	})
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// GetAssemblyOrder returns one order by its identifier
func (s *AssemblyService) GetAssemblyOrder(ctx context.Context, orderID uuid.UUID) (*AssemblyOrderResponse, error) {
	order, err := s.assemblies.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	response := ToAssemblyOrderResponse(order)
	return &response, nil
}

// ListAssemblyOrders pages through orders, optionally by status
func (s *AssemblyService) ListAssemblyOrders(ctx context.Context, filter AssemblyListFilter) (*shared.Paginated[AssemblyOrderResponse], error) {
	page, err := s.assemblies.List(ctx, stock.AssemblyStatus(filter.Status), shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	})
	if err != nil {
		return nil, err
	}
	result := shared.NewPaginated(ToAssemblyOrderResponses(page.Items), page.Total, page.Page, page.PageSize)
	return &result, nil
}

// saveOrder writes the order under its version check
func (s *AssemblyService) saveOrder(ctx context.Context, repos TransactionalRepositories, order *stock.AssemblyOrder) error {
	return repos.AssemblyRepo().SaveWithLock(ctx, order)
}
